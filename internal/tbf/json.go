// SPDX-License-Identifier: MIT

package tbf

import (
	"encoding/json"
	"fmt"
)

// The JSON form mirrors the document structure, except that child links
// serialize as {layer, id} references so the output stays acyclic.

type childRef struct {
	Layer int `json:"layer"`
	ID    int `json:"id"`
}

type objectJSON struct {
	ID       int               `json:"id"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []childRef        `json:"children,omitempty"`
}

type layerJSON struct {
	ID      int          `json:"id"`
	Name    string       `json:"name"`
	Objects []objectJSON `json:"objects"`
}

type documentJSON struct {
	Header Header      `json:"header"`
	Layers []layerJSON `json:"layers"`
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{Header: d.Header, Layers: make([]layerJSON, len(d.Layers))}
	for i, layer := range d.Layers {
		lj := layerJSON{ID: layer.ID, Name: layer.Name, Objects: make([]objectJSON, len(layer.Objects))}
		for j, obj := range layer.Objects {
			oj := objectJSON{ID: obj.ID, Attrs: obj.Attrs}
			for _, child := range obj.Children {
				oj.Children = append(oj.Children, childRef{Layer: child.Layer, ID: child.ID})
			}
			lj.Objects[j] = oj
		}
		out.Layers[i] = lj
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Layer and object ids are
// assigned positionally; child references must resolve to objects present
// in the document.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	doc := Document{Header: in.Header}
	if doc.Header.Encoding == "" {
		doc.Header.Encoding = DefaultEncoding
	}
	for _, lj := range in.Layers {
		layer := doc.AddLayer(lj.Name)
		for _, oj := range lj.Objects {
			obj := layer.AddObject()
			for k, v := range oj.Attrs {
				obj.SetAttr(k, v)
			}
		}
	}
	// Second pass: resolve child references now that all objects exist.
	for li, lj := range in.Layers {
		for oi, oj := range lj.Objects {
			for _, ref := range oj.Children {
				target := doc.Layer(ref.Layer)
				if target == nil || ref.ID < 0 || ref.ID >= len(target.Objects) {
					return fmt.Errorf("tbf: layer %d object %d references missing object %d/%d",
						li, oi, ref.Layer, ref.ID)
				}
				doc.Layers[li].Objects[oi].AddChild(target.Objects[ref.ID])
			}
		}
	}
	*d = doc
	return nil
}
