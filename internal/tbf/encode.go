// SPDX-License-Identifier: MIT

package tbf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/encoding"
)

// Marshal encodes a document to a byte slice.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the binary form of doc to w. Validation, charset lookup
// and text encoding checks all run before the first byte is written, so
// a failed Encode leaves w untouched.
func Encode(w io.Writer, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	charset, err := lookupCharset(doc.Header.Encoding)
	if err != nil {
		return err
	}

	e := &encoder{w: bufio.NewWriter(w), doc: doc, charset: charset}
	e.collectRelations()
	if err := e.collectAttrs(); err != nil {
		return err
	}
	if err := e.checkText(); err != nil {
		return err
	}

	e.writeHeader()
	e.writeLayers()
	e.writeRelations()
	e.writeAttrs()
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// relationGroup aggregates all parent/child id pairs between one pair of
// layers, in the order the links appear in the document.
type relationGroup struct {
	parentLayer int
	childLayer  int
	pairs       [][2]int
}

// attrChunk collects the values of one attribute name within one layer.
type attrChunk struct {
	layer  int
	name   string
	values map[int][]byte // object id -> encoded value
	order  []int          // object ids in document order
}

type encoder struct {
	w       *bufio.Writer
	doc     *Document
	charset encoding.Encoding

	relations []*relationGroup
	attrs     []*attrChunk

	err error
}

func (e *encoder) collectRelations() {
	index := make(map[[2]int]*relationGroup)
	for _, obj := range e.doc.Objects() {
		for _, child := range obj.Children {
			key := [2]int{obj.Layer, child.Layer}
			g, ok := index[key]
			if !ok {
				g = &relationGroup{parentLayer: obj.Layer, childLayer: child.Layer}
				index[key] = g
				e.relations = append(e.relations, g)
			}
			g.pairs = append(g.pairs, [2]int{obj.ID, child.ID})
		}
	}
}

func (e *encoder) collectAttrs() error {
	for _, layer := range e.doc.Layers {
		byName := make(map[string]*attrChunk)
		var names []string
		for _, obj := range layer.Objects {
			for name, value := range obj.Attrs {
				c, ok := byName[name]
				if !ok {
					c = &attrChunk{layer: layer.ID, name: name, values: make(map[int][]byte)}
					byName[name] = c
					names = append(names, name)
				}
				raw, err := encodeText(e.charset, value)
				if err != nil {
					return err
				}
				c.values[obj.ID] = raw
				c.order = append(c.order, obj.ID)
			}
		}
		// Attr map iteration is unordered; sort for deterministic output.
		sort.Strings(names)
		for _, name := range names {
			c := byName[name]
			sort.Ints(c.order)
			e.attrs = append(e.attrs, c)
		}
	}
	return nil
}

// checkText encodes every layer and attribute name up front. Attribute
// values are already encoded by collectAttrs, so after this pass the
// write phase cannot hit a charset error midway through a flushed stream.
func (e *encoder) checkText() error {
	for _, layer := range e.doc.Layers {
		if _, err := encodeText(e.charset, layer.Name); err != nil {
			return err
		}
	}
	for _, c := range e.attrs {
		if _, err := encodeText(e.charset, c.name); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeHeader() {
	e.writeFlag(flagHeaderStart)
	e.writeRaw([]byte(e.doc.Header.Encoding))
	e.writeSep()
	e.writeFlag(flagHeaderEnd)
}

func (e *encoder) writeLayers() {
	e.writeFlag(flagLayersStart)
	e.writeInt(len(e.doc.Layers))
	for _, layer := range e.doc.Layers {
		e.writeFlag(flagLayerStart)
		e.writeString(layer.Name)
		e.writeSep()
		e.writeInt(len(layer.Objects))
		e.writeFlag(flagLayerEnd)
	}
	e.writeFlag(flagLayersEnd)
}

func (e *encoder) writeRelations() {
	e.writeFlag(flagRelationsStart)
	e.writeInt(len(e.relations))
	for _, g := range e.relations {
		e.writeFlag(flagRelationStart)
		e.writeInt(g.parentLayer)
		e.writeInt(g.childLayer)
		e.writeInt(len(g.pairs))
		for _, pair := range g.pairs {
			e.writeInt(pair[0])
			e.writeInt(pair[1])
		}
		e.writeFlag(flagRelationEnd)
	}
	e.writeFlag(flagRelationsEnd)
}

func (e *encoder) writeAttrs() {
	e.writeFlag(flagAttrsStart)
	e.writeInt(len(e.attrs))
	for _, c := range e.attrs {
		if e.useLinkedChunk(c) {
			attrChunksWritten.WithLabelValues("linked").Inc()
			e.writeLinkedChunk(c)
		} else {
			attrChunksWritten.WithLabelValues("full").Inc()
			e.writeFullChunk(c)
		}
	}
	e.writeFlag(flagAttrsEnd)
}

// useLinkedChunk picks the cheaper wire form: a linked chunk costs an id
// plus a separator per present value, a full chunk one separator per layer
// object. An empty value forces the linked form, since an empty full-chunk
// slot means "absent".
func (e *encoder) useLinkedChunk(c *attrChunk) bool {
	for _, v := range c.values {
		if len(v) == 0 {
			return true
		}
	}
	linked := len(c.values) * (intSize + 1)
	full := len(e.doc.Layers[c.layer].Objects)
	return linked < full
}

func (e *encoder) writeFullChunk(c *attrChunk) {
	e.writeFlag(flagChunkFullStart)
	e.writeInt(c.layer)
	e.writeString(c.name)
	e.writeSep()
	for _, obj := range e.doc.Layers[c.layer].Objects {
		if raw, ok := c.values[obj.ID]; ok {
			e.writeRaw(raw)
		}
		e.writeSep()
	}
	e.writeFlag(flagChunkEnd)
}

func (e *encoder) writeLinkedChunk(c *attrChunk) {
	e.writeFlag(flagChunkLinkedStart)
	e.writeInt(c.layer)
	e.writeString(c.name)
	e.writeSep()
	e.writeInt(len(c.order))
	for _, id := range c.order {
		e.writeInt(id)
		e.writeRaw(c.values[id])
		e.writeSep()
	}
	e.writeFlag(flagChunkEnd)
}

func (e *encoder) writeFlag(f byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(f)
}

func (e *encoder) writeSep() { e.writeFlag(flagSeparator) }

func (e *encoder) writeInt(n int) {
	if e.err != nil {
		return
	}
	if n < 0 || int64(n) > int64(^uint32(0)) {
		e.err = fmt.Errorf("tbf: integer %d out of wire range", n)
		return
	}
	var buf [intSize]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	_, e.err = e.w.Write(buf[:])
}

func (e *encoder) writeString(s string) {
	if e.err != nil {
		return
	}
	raw, err := encodeText(e.charset, s)
	if err != nil {
		e.err = err
		return
	}
	e.writeRaw(raw)
}

func (e *encoder) writeRaw(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}
