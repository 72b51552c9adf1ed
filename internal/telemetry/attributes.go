// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
// HTTP spans are handled by otelhttp and carry their own semantic keys.
const (
	// Document attributes
	DocumentIDKey       = "document.id"
	DocumentEncodingKey = "document.encoding"
	DocumentLayersKey   = "document.layers"
	DocumentObjectsKey  = "document.objects"
	DocumentSizeKey     = "document.size_bytes"

	// Codec attributes
	CodecDirectionKey = "codec.direction"
	CodecFormatKey    = "codec.format"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"
	JobFilesKey    = "job.files"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// DocumentAttributes creates document-related span attributes.
func DocumentAttributes(id, encoding string, layers, objects int, size int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	if id != "" {
		attrs = append(attrs, attribute.String(DocumentIDKey, id))
	}
	if encoding != "" {
		attrs = append(attrs, attribute.String(DocumentEncodingKey, encoding))
	}
	attrs = append(attrs,
		attribute.Int(DocumentLayersKey, layers),
		attribute.Int(DocumentObjectsKey, objects),
		attribute.Int64(DocumentSizeKey, size),
	)
	return attrs
}

// CodecAttributes creates codec-related span attributes. Direction is
// "encode" or "decode", format is "tbf" or "json".
func CodecAttributes(direction, format string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CodecDirectionKey, direction),
		attribute.String(CodecFormatKey, format),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, files int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int(JobFilesKey, files),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
