// SPDX-License-Identifier: MIT

package tbf

import (
	"bufio"
	"bytes"
	"testing"
)

func newTestEncoder(t *testing.T, doc *Document, buf *bytes.Buffer) *encoder {
	t.Helper()
	charset, err := lookupCharset(doc.Header.Encoding)
	if err != nil {
		t.Fatalf("lookup charset: %v", err)
	}
	return &encoder{w: bufio.NewWriter(buf), doc: doc, charset: charset}
}

func flush(t *testing.T, e *encoder) {
	t.Helper()
	if e.err != nil {
		t.Fatalf("encoder error: %v", e.err)
	}
	if err := e.w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// twoLayerDoc mirrors the writer fixtures: two layers of four unattributed
// objects each.
func twoLayerDoc() *Document {
	doc := NewDocument()
	for _, name := range []string{"Layer 1", "Layer 2"} {
		layer := doc.AddLayer(name)
		for i := 0; i < 4; i++ {
			layer.AddObject()
		}
	}
	return doc
}

func crossLink(doc *Document) {
	l1, l2 := doc.Layers[0], doc.Layers[1]
	l1.Objects[0].AddChild(l2.Objects[1])
	l1.Objects[1].AddChild(l2.Objects[0])
	l1.Objects[2].AddChild(l2.Objects[3])
	l1.Objects[3].AddChild(l2.Objects[2])
}

func TestWriteFlag(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEncoder(t, NewDocument(), &buf)
	e.writeFlag(flagHeaderStart)
	flush(t, e)
	if !bytes.Equal(buf.Bytes(), []byte{0x01}) {
		t.Fatalf("got %x", buf.Bytes())
	}
}

func TestWriteSep(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEncoder(t, NewDocument(), &buf)
	e.writeSep()
	flush(t, e)
	if !bytes.Equal(buf.Bytes(), []byte{0x00}) {
		t.Fatalf("got %x", buf.Bytes())
	}
}

func TestWriteInt(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEncoder(t, NewDocument(), &buf)
	e.writeInt(128)
	flush(t, e)
	if !bytes.Equal(buf.Bytes(), []byte{0x00, 0x00, 0x00, 0x80}) {
		t.Fatalf("got %x", buf.Bytes())
	}
}

func TestWriteString(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEncoder(t, NewDocument(), &buf)
	e.writeString("Hello")
	flush(t, e)
	if buf.String() != "Hello" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEncoder(t, NewDocument(), &buf)
	e.writeHeader()
	flush(t, e)
	if !bytes.Equal(buf.Bytes(), []byte("\x01utf-8\x00\x02")) {
		t.Fatalf("got %q", buf.Bytes())
	}
}

func TestWriteLayers(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEncoder(t, twoLayerDoc(), &buf)
	e.writeLayers()
	flush(t, e)

	want := []byte("\x03" +
		"\x00\x00\x00\x02" +
		"\x09Layer 1\x00\x00\x00\x00\x04\x0A" +
		"\x09Layer 2\x00\x00\x00\x00\x04\x0A" +
		"\x04")
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("layers section:\n got %x\nwant %x", buf.Bytes(), want)
	}
}

func TestCollectRelations(t *testing.T) {
	doc := twoLayerDoc()
	crossLink(doc)

	var buf bytes.Buffer
	e := newTestEncoder(t, doc, &buf)
	e.collectRelations()

	if len(e.relations) != 1 {
		t.Fatalf("relation groups = %d, want 1", len(e.relations))
	}
	g := e.relations[0]
	if g.parentLayer != 0 || g.childLayer != 1 {
		t.Fatalf("group layers = %d/%d", g.parentLayer, g.childLayer)
	}
	want := [][2]int{{0, 1}, {1, 0}, {2, 3}, {3, 2}}
	for i, pair := range want {
		if g.pairs[i] != pair {
			t.Fatalf("pair %d = %v, want %v", i, g.pairs[i], pair)
		}
	}
}

func TestWriteRelations(t *testing.T) {
	doc := twoLayerDoc()
	crossLink(doc)

	var buf bytes.Buffer
	e := newTestEncoder(t, doc, &buf)
	e.collectRelations()
	e.writeRelations()
	flush(t, e)

	want := []byte("\x07" +
		"\x00\x00\x00\x01" +
		"\x0e" +
		"\x00\x00\x00\x00" +
		"\x00\x00\x00\x01" +
		"\x00\x00\x00\x04" +
		"\x00\x00\x00\x00" +
		"\x00\x00\x00\x01" +
		"\x00\x00\x00\x01" +
		"\x00\x00\x00\x00" +
		"\x00\x00\x00\x02" +
		"\x00\x00\x00\x03" +
		"\x00\x00\x00\x03" +
		"\x00\x00\x00\x02" +
		"\x0f" +
		"\x08")
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("relations section:\n got %x\nwant %x", buf.Bytes(), want)
	}
}

func TestCollectAttrs(t *testing.T) {
	doc := twoLayerDoc()
	l1, l2 := doc.Layers[0], doc.Layers[1]
	l1.Objects[0].SetAttr("key1", "val2")
	l1.Objects[1].SetAttr("key2", "val")
	l1.Objects[2].SetAttr("key1", "val4")
	l1.Objects[2].SetAttr("key2", "val3")
	l1.Objects[3].SetAttr("key2", "val")
	l2.Objects[0].SetAttr("key3", "val")
	l2.Objects[1].SetAttr("key4", "val6")
	l2.Objects[2].SetAttr("key2", "val7")
	l2.Objects[3].SetAttr("key4", "val2")

	var buf bytes.Buffer
	e := newTestEncoder(t, doc, &buf)
	if err := e.collectAttrs(); err != nil {
		t.Fatal(err)
	}

	byKey := map[string]*attrChunk{}
	for _, c := range e.attrs {
		byKey[string(rune('0'+c.layer))+c.name] = c
	}
	checks := []struct {
		key   string
		objID int
		value string
	}{
		{"0key1", 0, "val2"},
		{"0key1", 2, "val4"},
		{"0key2", 1, "val"},
		{"0key2", 2, "val3"},
		{"0key2", 3, "val"},
		{"1key2", 2, "val7"},
		{"1key3", 0, "val"},
		{"1key4", 1, "val6"},
		{"1key4", 3, "val2"},
	}
	for _, c := range checks {
		chunk, ok := byKey[c.key]
		if !ok {
			t.Fatalf("missing chunk %q", c.key)
		}
		if got := string(chunk.values[c.objID]); got != c.value {
			t.Fatalf("chunk %q object %d = %q, want %q", c.key, c.objID, got, c.value)
		}
	}
}

func TestWriteAttrs(t *testing.T) {
	doc := NewDocument()
	l1 := doc.AddLayer("Layer 1")
	l1.AddObject().SetAttr("key1", "val2")
	l2 := doc.AddLayer("Layer 2")
	l2.AddObject().SetAttr("key3", "val")
	l2.AddObject().SetAttr("key4", "val2")

	var buf bytes.Buffer
	e := newTestEncoder(t, doc, &buf)
	if err := e.collectAttrs(); err != nil {
		t.Fatal(err)
	}
	e.writeAttrs()
	flush(t, e)

	// All three chunks are cheaper in full form; attr names sort per layer,
	// so the section layout is fully deterministic.
	want := []byte("\x05\x00\x00\x00\x03" +
		"\x0B\x00\x00\x00\x00key1\x00val2\x00\x0D" +
		"\x0B\x00\x00\x00\x01key3\x00val\x00\x00\x0D" +
		"\x0B\x00\x00\x00\x01key4\x00\x00val2\x00\x0D" +
		"\x06")
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("attrs section:\n got %x\nwant %x", buf.Bytes(), want)
	}
}

func TestLinkedChunkChosenForSparseAttrs(t *testing.T) {
	doc := NewDocument()
	layer := doc.AddLayer("tokens")
	for i := 0; i < 10; i++ {
		layer.AddObject()
	}
	layer.Objects[7].SetAttr("pos", "N")

	var buf bytes.Buffer
	e := newTestEncoder(t, doc, &buf)
	if err := e.collectAttrs(); err != nil {
		t.Fatal(err)
	}
	e.writeAttrs()
	flush(t, e)

	// linked overhead 1*5 beats full overhead 10*1
	want := []byte("\x05\x00\x00\x00\x01" +
		"\x0C\x00\x00\x00\x00pos\x00" +
		"\x00\x00\x00\x01" +
		"\x00\x00\x00\x07N\x00" +
		"\x0D" +
		"\x06")
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("attrs section:\n got %x\nwant %x", buf.Bytes(), want)
	}
}

func TestEmptyValueForcesLinkedChunk(t *testing.T) {
	doc := NewDocument()
	layer := doc.AddLayer("tokens")
	layer.AddObject().SetAttr("gloss", "")

	data, err := Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := got.Layers[0].Objects[0].Attr("gloss")
	if !ok || v != "" {
		t.Fatalf("empty value lost: present=%v value=%q", ok, v)
	}
}

func TestEncodeRejectsSeparatorInString(t *testing.T) {
	doc := NewDocument()
	doc.AddLayer("to\x00kens")
	if _, err := Marshal(doc); err == nil {
		t.Fatal("expected error for string containing separator byte")
	}
}

func TestEncodeRejectsInvalidDocument(t *testing.T) {
	doc := NewDocument()
	layer := doc.AddLayer("a")
	obj := layer.AddObject()
	obj.Layer = 3 // claims a layer it is not in
	if _, err := Marshal(doc); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEncodeRejectsUnknownEncoding(t *testing.T) {
	doc := NewDocument()
	doc.Header.Encoding = "no-such-charset"
	if _, err := Marshal(doc); err == nil {
		t.Fatal("expected charset error")
	}
}

func TestEncodeWritesNothingOnCharsetError(t *testing.T) {
	doc := NewDocument()
	doc.Header.Encoding = "iso-8859-1"
	layer := doc.AddLayer("tokens")
	// Enough attribute data to overflow any internal write buffer
	// before the unencodable name would be reached.
	for i := 0; i < 2000; i++ {
		obj := layer.AddObject()
		obj.SetAttr("pos", "NOUN-000000")
	}
	layer.Objects[0].SetAttr("日本語", "x")

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err == nil {
		t.Fatal("expected charset error for unencodable attribute name")
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes before failing, want none", buf.Len())
	}
}
