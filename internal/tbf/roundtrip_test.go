// SPDX-License-Identifier: MIT

package tbf

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildFixtureDocument is the shared fixture: two layers, cross-layer
// relations, mixed dense and sparse attributes.
func buildFixtureDocument() *Document {
	doc := NewDocument()
	words := doc.AddLayer("words")
	morphemes := doc.AddLayer("morphemes")
	for i := 0; i < 4; i++ {
		words.AddObject()
	}
	for i := 0; i < 8; i++ {
		morphemes.AddObject()
	}
	for i, w := range words.Objects {
		w.SetAttr("text", "word"+string(rune('0'+i)))
		w.AddChild(morphemes.Objects[2*i])
		w.AddChild(morphemes.Objects[2*i+1])
	}
	morphemes.Objects[3].SetAttr("gloss", "PL")
	return doc
}

// documentsEqual compares via the JSON form, which resolves the child
// pointers into stable references.
func documentsEqual(t *testing.T, want, got *Document) {
	t.Helper()
	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	gotJSON, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	var wantAny, gotAny any
	if err := json.Unmarshal(wantJSON, &wantAny); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(gotJSON, &gotAny); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantAny, gotAny); diff != "" {
		t.Fatalf("documents differ (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	doc := buildFixtureDocument()
	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	documentsEqual(t, doc, got)
}

func TestRoundTripOriginalFixture(t *testing.T) {
	doc := NewDocument()
	l1 := doc.AddLayer("Layer 1")
	l1.AddObject().SetAttr("key1", "val2")
	l2 := doc.AddLayer("Layer 2")
	l2.AddObject().SetAttr("key3", "val")
	l2.AddObject().SetAttr("key4", "val2")

	data, err := Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	if len(parsed.Layers) != 2 {
		t.Fatalf("layers = %d", len(parsed.Layers))
	}
	if parsed.Layers[0].Name != "Layer 1" || parsed.Layers[1].Name != "Layer 2" {
		t.Fatalf("layer names = %q, %q", parsed.Layers[0].Name, parsed.Layers[1].Name)
	}
	p1, p2 := parsed.Layers[0], parsed.Layers[1]
	if len(p1.Objects) != 1 || p1.Objects[0].ID != 0 || p1.Objects[0].Layer != 0 {
		t.Fatalf("layer 1 objects: %+v", p1.Objects)
	}
	if v, _ := p1.Objects[0].Attr("key1"); v != "val2" {
		t.Fatalf("key1 = %q", v)
	}
	if len(p2.Objects) != 2 {
		t.Fatalf("layer 2 objects = %d", len(p2.Objects))
	}
	if v, _ := p2.Objects[0].Attr("key3"); v != "val" {
		t.Fatalf("key3 = %q", v)
	}
	if v, _ := p2.Objects[1].Attr("key4"); v != "val2" {
		t.Fatalf("key4 = %q", v)
	}
}

func TestRoundTripLatin1(t *testing.T) {
	doc := NewDocument()
	doc.Header.Encoding = "iso-8859-1"
	layer := doc.AddLayer("sætninger")
	layer.AddObject().SetAttr("tekst", "blåbærgrød")

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Header.Encoding != "iso-8859-1" {
		t.Fatalf("encoding = %q", got.Header.Encoding)
	}
	if got.Layers[0].Name != "sætninger" {
		t.Fatalf("layer name = %q", got.Layers[0].Name)
	}
	if v, _ := got.Layers[0].Objects[0].Attr("tekst"); v != "blåbærgrød" {
		t.Fatalf("tekst = %q", v)
	}
}

func TestRoundTripEmptyDocument(t *testing.T) {
	data, err := Marshal(NewDocument())
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Layers) != 0 {
		t.Fatalf("layers = %d", len(got.Layers))
	}
}

func TestJSONRoundTrip(t *testing.T) {
	doc := buildFixtureDocument()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var got Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	documentsEqual(t, doc, &got)

	// And the decoded JSON document must binary-encode cleanly.
	if _, err := Marshal(&got); err != nil {
		t.Fatalf("marshal after json round trip: %v", err)
	}
}

func TestJSONRejectsDanglingChildRef(t *testing.T) {
	blob := `{"header":{"encoding":"utf-8"},"layers":[
		{"id":0,"name":"a","objects":[{"id":0,"children":[{"layer":5,"id":0}]}]}
	]}`
	var doc Document
	if err := json.Unmarshal([]byte(blob), &doc); err == nil {
		t.Fatal("expected error for dangling child reference")
	}
}

func TestSummarize(t *testing.T) {
	doc := buildFixtureDocument()
	stats := doc.Summarize()
	want := Stats{Layers: 2, Objects: 12, Attrs: 5, Relations: 8}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestValidateCatchesBadChild(t *testing.T) {
	doc := NewDocument()
	layer := doc.AddLayer("a")
	obj := layer.AddObject()
	obj.AddChild(&Object{ID: 9, Layer: 9})
	if err := doc.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
