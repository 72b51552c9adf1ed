// SPDX-License-Identifier: MIT
package telemetry

import (
	"testing"
)

func TestDocumentAttributesOmitsEmpty(t *testing.T) {
	attrs := DocumentAttributes("", "", 2, 12, 256)
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes without id/encoding, got %d", len(attrs))
	}
	attrs = DocumentAttributes("abc", "utf-8", 2, 12, 256)
	if len(attrs) != 5 {
		t.Fatalf("expected 5 attributes with id/encoding, got %d", len(attrs))
	}
}

func TestCodecAttributes(t *testing.T) {
	attrs := CodecAttributes("decode", "tbf")
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Value.AsString() != "decode" || attrs[1].Value.AsString() != "tbf" {
		t.Errorf("unexpected values: %v", attrs)
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(nil, "parse")
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if !attrs[0].Value.AsBool() {
		t.Error("error flag should be true")
	}
}
