// SPDX-License-Identifier: MIT

package tbf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
)

// maxCount bounds every count field read from the wire. It keeps a
// malformed or hostile stream from forcing huge allocations before any
// payload bytes back the claim up.
const maxCount = 1 << 20

// Unmarshal decodes a document from a byte slice.
func Unmarshal(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one binary document from r. The error is a *ParseError for
// any malformed input; the decoder never panics on arbitrary bytes.
func Decode(r io.Reader) (*Document, error) {
	d := newDecoder(r)
	if err := d.parseHeader(); err != nil {
		return nil, err
	}
	if err := d.parseLayers(); err != nil {
		return nil, err
	}
	if err := d.parseRelations(); err != nil {
		return nil, err
	}
	if err := d.parseAttrs(); err != nil {
		return nil, err
	}
	return d.doc, nil
}

type decoder struct {
	r       *bufio.Reader
	off     int64
	doc     *Document
	charset encoding.Encoding
}

// newDecoder starts with the default charset so section parsers are usable
// before (or without) a header; parseHeader swaps in the declared one.
func newDecoder(r io.Reader) *decoder {
	charset, _ := lookupCharset(DefaultEncoding)
	return &decoder{r: bufio.NewReader(r), doc: &Document{}, charset: charset}
}

func (d *decoder) parseHeader() error {
	if err := d.expect(flagHeaderStart); err != nil {
		return err
	}
	name, err := d.readUntilSep()
	if err != nil {
		return err
	}
	if err := d.expect(flagHeaderEnd); err != nil {
		return err
	}
	encName := string(name)
	if encName == "" {
		encName = DefaultEncoding
	}
	charset, err := lookupCharset(encName)
	if err != nil {
		return d.failErr("resolve header encoding", err)
	}
	d.charset = charset
	d.doc.Header = Header{Encoding: encName}
	return nil
}

func (d *decoder) parseLayers() error {
	if err := d.expect(flagLayersStart); err != nil {
		return err
	}
	count, err := d.readCount("layer count")
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := d.expect(flagLayerStart); err != nil {
			return err
		}
		raw, err := d.readUntilSep()
		if err != nil {
			return err
		}
		name, err := decodeText(d.charset, raw)
		if err != nil {
			return d.failErr("decode layer name", err)
		}
		objects, err := d.readCount("object count")
		if err != nil {
			return err
		}
		if err := d.expect(flagLayerEnd); err != nil {
			return err
		}
		layer := d.doc.AddLayer(name)
		for j := 0; j < objects; j++ {
			layer.AddObject()
		}
	}
	return d.expect(flagLayersEnd)
}

func (d *decoder) parseRelations() error {
	if err := d.expect(flagRelationsStart); err != nil {
		return err
	}
	groups, err := d.readCount("relation group count")
	if err != nil {
		return err
	}
	for i := 0; i < groups; i++ {
		if err := d.expect(flagRelationStart); err != nil {
			return err
		}
		parentLayer, err := d.readLayerRef()
		if err != nil {
			return err
		}
		childLayer, err := d.readLayerRef()
		if err != nil {
			return err
		}
		pairs, err := d.readCount("relation pair count")
		if err != nil {
			return err
		}
		for j := 0; j < pairs; j++ {
			parent, err := d.readObjectRef(parentLayer)
			if err != nil {
				return err
			}
			child, err := d.readObjectRef(childLayer)
			if err != nil {
				return err
			}
			parent.AddChild(child)
		}
		if err := d.expect(flagRelationEnd); err != nil {
			return err
		}
	}
	return d.expect(flagRelationsEnd)
}

func (d *decoder) parseAttrs() error {
	if err := d.expect(flagAttrsStart); err != nil {
		return err
	}
	chunks, err := d.readCount("chunk count")
	if err != nil {
		return err
	}
	for i := 0; i < chunks; i++ {
		kind, err := d.readByte()
		if err != nil {
			return err
		}
		switch kind {
		case flagChunkFullStart:
			err = d.parseFullChunk()
		case flagChunkLinkedStart:
			err = d.parseLinkedChunk()
		default:
			return d.fail(fmt.Sprintf("unknown chunk type 0x%02X", kind))
		}
		if err != nil {
			return err
		}
	}
	return d.expect(flagAttrsEnd)
}

// parseFullChunk reads one value slot per layer object, in layer order.
// An empty slot means the object has no value for this attribute.
func (d *decoder) parseFullChunk() error {
	layer, name, err := d.readChunkHead()
	if err != nil {
		return err
	}
	for _, obj := range layer.Objects {
		raw, err := d.readUntilSep()
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			continue
		}
		value, err := decodeText(d.charset, raw)
		if err != nil {
			return d.failErr("decode attribute value", err)
		}
		obj.SetAttr(name, value)
	}
	return d.expect(flagChunkEnd)
}

// parseLinkedChunk reads explicit object-id/value entries.
func (d *decoder) parseLinkedChunk() error {
	layer, name, err := d.readChunkHead()
	if err != nil {
		return err
	}
	entries, err := d.readCount("linked chunk entry count")
	if err != nil {
		return err
	}
	for i := 0; i < entries; i++ {
		id, err := d.readInt()
		if err != nil {
			return err
		}
		if id < 0 || id >= len(layer.Objects) {
			return d.fail(fmt.Sprintf("object id %d out of range for layer %d", id, layer.ID))
		}
		raw, err := d.readUntilSep()
		if err != nil {
			return err
		}
		value, err := decodeText(d.charset, raw)
		if err != nil {
			return d.failErr("decode attribute value", err)
		}
		layer.Objects[id].SetAttr(name, value)
	}
	return d.expect(flagChunkEnd)
}

func (d *decoder) readChunkHead() (*Layer, string, error) {
	id, err := d.readInt()
	if err != nil {
		return nil, "", err
	}
	layer := d.doc.Layer(id)
	if layer == nil {
		return nil, "", d.fail(fmt.Sprintf("chunk references unknown layer %d", id))
	}
	raw, err := d.readUntilSep()
	if err != nil {
		return nil, "", err
	}
	name, err := decodeText(d.charset, raw)
	if err != nil {
		return nil, "", d.failErr("decode attribute name", err)
	}
	return layer, name, nil
}

func (d *decoder) readLayerRef() (*Layer, error) {
	id, err := d.readInt()
	if err != nil {
		return nil, err
	}
	layer := d.doc.Layer(id)
	if layer == nil {
		return nil, d.fail(fmt.Sprintf("relation references unknown layer %d", id))
	}
	return layer, nil
}

func (d *decoder) readObjectRef(layer *Layer) (*Object, error) {
	id, err := d.readInt()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(layer.Objects) {
		return nil, d.fail(fmt.Sprintf("object id %d out of range for layer %d", id, layer.ID))
	}
	return layer.Objects[id], nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, d.failErr("unexpected end of stream", err)
	}
	d.off++
	return b, nil
}

func (d *decoder) expect(flag byte) error {
	b, err := d.readByte()
	if err != nil {
		return err
	}
	if b != flag {
		return d.fail(fmt.Sprintf("expected %s (0x%02X), got 0x%02X", flagName(flag), flag, b))
	}
	return nil
}

// readUntilSep consumes bytes up to and including the next separator, or
// up to end of stream, and returns the bytes before it.
func (d *decoder) readUntilSep() ([]byte, error) {
	var out []byte
	for {
		b, err := d.r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, d.failErr("read string", err)
		}
		d.off++
		if b == flagSeparator {
			return out, nil
		}
		out = append(out, b)
	}
}

func (d *decoder) readInt() (int, error) {
	var buf [intSize]byte
	n, err := io.ReadFull(d.r, buf[:])
	d.off += int64(n)
	if err != nil {
		return 0, d.failErr("truncated integer", err)
	}
	return int(binary.BigEndian.Uint32(buf[:])), nil
}

func (d *decoder) readCount(what string) (int, error) {
	n, err := d.readInt()
	if err != nil {
		return 0, err
	}
	if n > maxCount {
		return 0, d.fail(fmt.Sprintf("%s %d exceeds limit %d", what, n, maxCount))
	}
	return n, nil
}

func (d *decoder) fail(msg string) error {
	return &ParseError{Offset: d.off, Msg: msg}
}

func (d *decoder) failErr(msg string, err error) error {
	return &ParseError{Offset: d.off, Msg: msg, Err: err}
}
