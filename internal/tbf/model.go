// SPDX-License-Identifier: MIT

// Package tbf implements the Typecraft binary format: a compact binary
// serialization for multi-layer annotation documents with cross-layer
// parent/child relations and per-object string attributes.
package tbf

import (
	"fmt"
)

// DefaultEncoding is the charset assumed when a header does not set one.
const DefaultEncoding = "utf-8"

// Header carries stream-level metadata. Encoding names the charset used
// for every string in the body and must be resolvable via the IANA index.
type Header struct {
	Encoding string `json:"encoding"`
}

// Document is an in-memory tbf document: an ordered set of layers whose
// objects may hold attributes and reference objects in other layers as
// children.
type Document struct {
	Header Header   `json:"header"`
	Layers []*Layer `json:"layers"`
}

// NewDocument returns an empty document with the default header.
func NewDocument() *Document {
	return &Document{Header: Header{Encoding: DefaultEncoding}}
}

// AddLayer appends a layer and assigns it the next dense layer id.
func (d *Document) AddLayer(name string) *Layer {
	l := &Layer{ID: len(d.Layers), Name: name}
	d.Layers = append(d.Layers, l)
	return l
}

// Layer returns the layer with the given id, or nil if out of range.
func (d *Document) Layer(id int) *Layer {
	if id < 0 || id >= len(d.Layers) {
		return nil
	}
	return d.Layers[id]
}

// Objects flattens all layer objects in layer order.
func (d *Document) Objects() []*Object {
	var out []*Object
	for _, l := range d.Layers {
		out = append(out, l.Objects...)
	}
	return out
}

// Validate checks the structural invariants the encoder relies on: dense
// layer ids, dense per-layer object ids, and children that resolve to
// objects present in the document.
func (d *Document) Validate() error {
	for i, l := range d.Layers {
		if l == nil {
			return fmt.Errorf("tbf: layer %d is nil", i)
		}
		if l.ID != i {
			return fmt.Errorf("tbf: layer %q has id %d, want %d", l.Name, l.ID, i)
		}
		for j, obj := range l.Objects {
			if obj == nil {
				return fmt.Errorf("tbf: layer %d object %d is nil", i, j)
			}
			if obj.ID != j {
				return fmt.Errorf("tbf: layer %d object has id %d, want %d", i, obj.ID, j)
			}
			if obj.Layer != l.ID {
				return fmt.Errorf("tbf: object %d in layer %d claims layer %d", j, i, obj.Layer)
			}
			for _, child := range obj.Children {
				if child == nil {
					return fmt.Errorf("tbf: layer %d object %d has nil child", i, j)
				}
				cl := d.Layer(child.Layer)
				if cl == nil || child.ID < 0 || child.ID >= len(cl.Objects) {
					return fmt.Errorf("tbf: layer %d object %d references missing object %d/%d",
						i, j, child.Layer, child.ID)
				}
			}
		}
	}
	return nil
}

// Stats summarizes the size of a document.
type Stats struct {
	Layers    int `json:"layers"`
	Objects   int `json:"objects"`
	Attrs     int `json:"attrs"`
	Relations int `json:"relations"`
}

// Summarize counts layers, objects, attribute entries and child links.
func (d *Document) Summarize() Stats {
	s := Stats{Layers: len(d.Layers)}
	for _, l := range d.Layers {
		s.Objects += len(l.Objects)
		for _, obj := range l.Objects {
			s.Attrs += len(obj.Attrs)
			s.Relations += len(obj.Children)
		}
	}
	return s
}

// Layer groups objects under a numeric id (its index within the document)
// and a human-readable name.
type Layer struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	Objects []*Object `json:"objects"`
}

// AddObject appends an object, assigning the next dense object id and
// stamping the owning layer.
func (l *Layer) AddObject() *Object {
	obj := &Object{ID: len(l.Objects), Layer: l.ID}
	l.Objects = append(l.Objects, obj)
	return obj
}

// Object is a single annotated entity. Children reference objects of other
// layers; Attrs holds string key/value annotations.
type Object struct {
	ID       int               `json:"id"`
	Layer    int               `json:"layer"`
	Children []*Object         `json:"-"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// AddChild links a child object to this object.
func (o *Object) AddChild(child *Object) {
	o.Children = append(o.Children, child)
}

// SetAttr sets a string attribute, allocating the map on first use.
func (o *Object) SetAttr(key, value string) {
	if o.Attrs == nil {
		o.Attrs = make(map[string]string)
	}
	o.Attrs[key] = value
}

// Attr returns the attribute value and whether it is present.
func (o *Object) Attr(key string) (string, bool) {
	v, ok := o.Attrs[key]
	return v, ok
}
