// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Typecraft/tbf/internal/log"
	"github.com/Typecraft/tbf/internal/metrics"
	"github.com/Typecraft/tbf/internal/store"
	"github.com/Typecraft/tbf/internal/tbf"
	"github.com/Typecraft/tbf/internal/telemetry"
)

const (
	contentTypeTBF  = "application/x-tbf"
	contentTypeJSON = "application/json"
)

// handleCreateDocument stores a document posted as binary tbf or JSON.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	doc, raw, err := readDocument(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	stats := doc.Summarize()
	rec := &store.Record{
		Meta: store.Meta{
			ID:       uuid.New().String(),
			Name:     r.URL.Query().Get("name"),
			Encoding: doc.Header.Encoding,
			Layers:   stats.Layers,
			Objects:  stats.Objects,
			Size:     int64(len(raw)),
		},
		Data: raw,
	}

	start := time.Now()
	err = s.store.Put(r.Context(), rec)
	metrics.ObserveStoreOp("put", start, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.refreshDocumentCount(r)
	annotateSpan(r, rec.Meta)

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "document.created").
		Str("id", rec.ID).
		Int("layers", rec.Layers).
		Int("objects", rec.Objects).
		Int64("size", rec.Size).
		Msg("document stored")

	writeJSON(w, http.StatusCreated, rec.Meta)
}

// handleListDocuments returns metadata for all stored documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metas, err := s.store.List(r.Context())
	metrics.ObserveStoreOp("list", start, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if metas == nil {
		metas = []store.Meta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

// handleGetDocument serves a document as binary tbf, or as JSON when
// the client asks for it via Accept.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	start := time.Now()
	rec, err := s.store.Get(r.Context(), id)
	metrics.ObserveStoreOp("get", start, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	annotateSpan(r, rec.Meta)

	if wantsJSON(r) {
		body, err := s.decodedJSON(r, rec)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	w.Header().Set("Content-Type", contentTypeTBF)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Data)
}

// handleDocumentStats returns stored metadata plus per-section counts.
func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	start := time.Now()
	rec, err := s.store.Get(r.Context(), id)
	metrics.ObserveStoreOp("get", start, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	doc, err := tbf.Unmarshal(rec.Data)
	metrics.IncDecoded(err, len(rec.Data))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		store.Meta
		Stats tbf.Stats `json:"stats"`
	}{Meta: rec.Meta, Stats: doc.Summarize()})
}

// handleDeleteDocument removes a document and its cached decode.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	start := time.Now()
	err := s.store.Delete(r.Context(), id)
	metrics.ObserveStoreOp("delete", start, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.refreshDocumentCount(r)

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "document.deleted").
		Str("id", id).
		Msg("document deleted")

	w.WriteHeader(http.StatusNoContent)
}

// handleConvert translates between the binary and JSON forms without
// touching the store.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	doc, raw, err := readDocument(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	if wantsJSON(r) {
		span.SetAttributes(telemetry.CodecAttributes("decode", "json")...)
		body, err := json.Marshal(doc)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	span.SetAttributes(telemetry.CodecAttributes("encode", "tbf")...)
	w.Header().Set("Content-Type", contentTypeTBF)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// readDocument reads the request body and returns both the document and
// its binary form, decoding from JSON or tbf based on Content-Type.
func readDocument(r *http.Request) (*tbf.Document, []byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, err
	}
	if len(body) == 0 {
		return nil, nil, errBadRequest("empty request body")
	}

	ct := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}

	switch ct {
	case contentTypeJSON:
		doc := tbf.NewDocument()
		if err := json.Unmarshal(body, doc); err != nil {
			return nil, nil, errBadRequest("invalid document JSON: " + err.Error())
		}
		raw, err := tbf.Marshal(doc)
		metrics.IncEncoded(err, len(raw))
		if err != nil {
			return nil, nil, errBadRequest(err.Error())
		}
		return doc, raw, nil

	case contentTypeTBF, "", "application/octet-stream":
		doc, err := tbf.Unmarshal(body)
		metrics.IncDecoded(err, len(body))
		if err != nil {
			return nil, nil, err
		}
		return doc, body, nil

	default:
		return nil, nil, errBadRequest("unsupported content type: " + ct)
	}
}

// decodedJSON returns the JSON form of a stored document, caching the
// result keyed by id and update time. Concurrent decodes of the same
// record collapse into one.
func (s *Server) decodedJSON(r *http.Request, rec *store.Record) ([]byte, error) {
	ctx := r.Context()
	key := fmt.Sprintf("doc:%s:%d", rec.ID, rec.UpdatedAt.UnixNano())

	if body, ok := s.cache.Get(ctx, key); ok {
		metrics.IncCache(true)
		return body, nil
	}
	metrics.IncCache(false)

	v, err, _ := s.sf.Do(key, func() (any, error) {
		doc, err := tbf.Unmarshal(rec.Data)
		metrics.IncDecoded(err, len(rec.Data))
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, key, body, s.cfg.Get().Cache.TTL.Std())
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// refreshDocumentCount updates the stored-documents gauge after a write.
func (s *Server) refreshDocumentCount(r *http.Request) {
	if metas, err := s.store.List(r.Context()); err == nil {
		metrics.RecordDocumentCount(len(metas))
	}
}

// annotateSpan records document metadata on the active span, if any.
func annotateSpan(r *http.Request, meta store.Meta) {
	trace.SpanFromContext(r.Context()).SetAttributes(
		telemetry.DocumentAttributes(meta.ID, meta.Encoding, meta.Layers, meta.Objects, meta.Size)...)
}

// wantsJSON reports whether the client prefers the JSON form.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), contentTypeJSON)
}

// badRequestError marks client errors from request parsing.
type badRequestError string

func errBadRequest(msg string) error { return badRequestError(msg) }

func (e badRequestError) Error() string { return string(e) }

// respondError maps domain errors onto HTTP status codes.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		maxErr *http.MaxBytesError
		perr   *tbf.ParseError
		breq   badRequestError
	)
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.As(err, &perr):
		trace.SpanFromContext(r.Context()).SetAttributes(telemetry.ErrorAttributes(err, "parse")...)
		writeError(w, http.StatusBadRequest, perr.Error())
	case errors.As(err, &breq):
		writeError(w, http.StatusBadRequest, breq.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
