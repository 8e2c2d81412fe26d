// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for reading identity, filters and bodies
// from API requests.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"finboard/internal/apperr"
	"finboard/internal/store"
)

const (
	// HeaderTabID selects the tab workspace within a session.
	HeaderTabID = "X-Tab-ID"
	// DefaultTabID is used when a client sends no tab header.
	DefaultTabID = "default"

	maxBodyBytes = 1 << 20
	maxTabIDLen  = 64
)

// bearerToken returns the token of an "Authorization: Bearer" header, or "".
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// tabID returns the sanitized tab header, or DefaultTabID.
func tabID(r *http.Request) string {
	id := sanitizeInput(r.Header.Get(HeaderTabID))
	if id == "" {
		return DefaultTabID
	}
	if len(id) > maxTabIDLen {
		id = id[:maxTabIDLen]
	}
	return id
}

// parseFilter turns the query string into a filter checked against schema.
// Repeated keys keep the first value.
func parseFilter[T store.Record](r *http.Request, schema store.Schema[T]) (store.Filter, error) {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil, nil
	}
	f := make(store.Filter, len(q))
	for k, vs := range q {
		if v := sanitizeInput(vs[0]); v != "" {
			f[k] = v
		}
	}
	if err := schema.CheckFilter(f); err != nil {
		return nil, err
	}
	if len(f) == 0 {
		return nil, nil
	}
	return f, nil
}

// decodeJSON reads a single JSON document of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.New(apperr.CodeInvalidInput, "request body too large")
		case errors.Is(err, io.EOF):
			return apperr.New(apperr.CodeInvalidInput, "request body is empty")
		default:
			return apperr.Wrap(apperr.CodeInvalidInput, fmt.Sprintf("malformed JSON: %v", err), err)
		}
	}
	if dec.More() {
		return apperr.New(apperr.CodeInvalidInput, "request body must hold a single JSON value")
	}
	return nil
}
