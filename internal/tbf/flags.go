// SPDX-License-Identifier: MIT

package tbf

// Flag bytes delimiting the sections of a tbf stream. Multi-byte integers
// are unsigned 32-bit big-endian throughout.
const (
	flagSeparator        byte = 0x00
	flagHeaderStart      byte = 0x01
	flagHeaderEnd        byte = 0x02
	flagLayersStart      byte = 0x03
	flagLayersEnd        byte = 0x04
	flagAttrsStart       byte = 0x05
	flagAttrsEnd         byte = 0x06
	flagRelationsStart   byte = 0x07
	flagRelationsEnd     byte = 0x08
	flagLayerStart       byte = 0x09
	flagLayerEnd         byte = 0x0A
	flagChunkFullStart   byte = 0x0B
	flagChunkLinkedStart byte = 0x0C
	flagChunkEnd         byte = 0x0D
	flagRelationStart    byte = 0x0E
	flagRelationEnd      byte = 0x0F
)

// intSize is the wire size of every integer field.
const intSize = 4

func flagName(f byte) string {
	switch f {
	case flagSeparator:
		return "SEPARATOR"
	case flagHeaderStart:
		return "HEADER_START"
	case flagHeaderEnd:
		return "HEADER_END"
	case flagLayersStart:
		return "LAYERS_START"
	case flagLayersEnd:
		return "LAYERS_END"
	case flagAttrsStart:
		return "ATTRS_START"
	case flagAttrsEnd:
		return "ATTRS_END"
	case flagRelationsStart:
		return "RELATIONS_START"
	case flagRelationsEnd:
		return "RELATIONS_END"
	case flagLayerStart:
		return "LAYER_START"
	case flagLayerEnd:
		return "LAYER_END"
	case flagChunkFullStart:
		return "CHUNK_FULL_START"
	case flagChunkLinkedStart:
		return "CHUNK_LINKED_START"
	case flagChunkEnd:
		return "CHUNK_END"
	case flagRelationStart:
		return "RELATION_START"
	case flagRelationEnd:
		return "RELATION_END"
	default:
		return "UNKNOWN"
	}
}
