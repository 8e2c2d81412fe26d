// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses.
// Every handler answers through it so status, headers and error envelopes
// stay consistent.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"finboard/internal/apperr"
	"finboard/internal/resource"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// errorBody is the envelope of every error answer.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates an error answer with an explicit code.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// ErrorFrom maps err onto its status and public message. Internal errors never leak their text.
func ErrorFrom(err error) *ResponseBuilder {
	status := apperr.HTTPStatus(err)
	detail := describe(err)
	b := ErrorResponse(status, detail.Code, detail.Message)
	if status == http.StatusUnauthorized {
		b.Header("WWW-Authenticate", `Bearer realm="finboard"`)
	}
	return b
}

func describe(err error) errorDetail {
	var e *apperr.Error
	if errors.As(err, &e) && e.Code != apperr.CodeInternal {
		return errorDetail{Code: e.Code, Message: e.Message}
	}
	return errorDetail{Code: apperr.CodeInternal, Message: "internal error"}
}

// stateBody is the wire form of a resource state.
type stateBody struct {
	Data      any          `json:"data"`
	Loading   bool         `json:"loading"`
	Loaded    bool         `json:"loaded"`
	Phase     string       `json:"phase"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
	Error     *errorDetail `json:"error,omitempty"`
}

func stateOf[D any](st resource.State[D], data any) stateBody {
	body := stateBody{
		Data:    data,
		Loading: st.Loading,
		Loaded:  st.Loaded,
		Phase:   st.Phase.String(),
	}
	if !st.UpdatedAt.IsZero() {
		ts := st.UpdatedAt
		body.UpdatedAt = &ts
	}
	if st.Err != nil {
		d := describe(st.Err)
		body.Error = &d
	}
	return body
}

// StateResponse answers with the state of a resource.
func StateResponse[D any](st resource.State[D]) *ResponseBuilder {
	return NewResponse().JSON(stateOf(st, st.Data))
}
