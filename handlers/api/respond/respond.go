// Package respond holds the JSON error and status conventions shared by the
// API handlers.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"design-studio/core"
	"design-studio/designs"
	"design-studio/document"
	"design-studio/editor"
	"design-studio/export"
	"design-studio/middleware"
	"design-studio/pricing"
	"design-studio/uploads"
)

// MaxDocumentBytes bounds request bodies that carry a document.
const MaxDocumentBytes = 32 << 20

// ErrBadRequest marks malformed input: bad JSON, bad query values.
var ErrBadRequest = errors.New("bad request")

func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// Status maps an error to the HTTP status the API reports for it.
func Status(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrDecode) && !document.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound), document.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, uploads.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, uploads.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case document.IsValidation(err),
		errors.Is(err, editor.ErrLocked),
		errors.Is(err, export.ErrCanvasTooLarge),
		errors.Is(err, designs.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrInvalidRequest),
		errors.Is(err, pricing.ErrUnknownProduct),
		errors.Is(err, pricing.ErrUnknownMaterial):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Fail logs err and writes it with the mapped status. Server errors hide the
// cause behind msg; client errors show it.
func Fail(w http.ResponseWriter, r *http.Request, err error, msg string, fields logrus.Fields) {
	status := Status(err)
	entry := logrus.WithFields(fields).WithField("error", err)
	if status >= http.StatusInternalServerError {
		entry.Error(msg)
		Error(w, r, status, msg)
		return
	}
	entry.Warn(msg)
	Error(w, r, status, err.Error())
}

// UserID returns the authenticated subject, writing 401 when there is none.
func UserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.Claims(r)
	if !ok {
		Error(w, r, http.StatusUnauthorized, "User claims not found")
		return "", false
	}
	return claims.Subject, true
}

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxDocumentBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrBadRequest, err)
	}
	if len(data) > MaxDocumentBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrBadRequest, MaxDocumentBytes)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// IntQuery parses an optional integer query parameter.
func IntQuery(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return n, nil
}

// FloatQuery parses an optional number query parameter.
func FloatQuery(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadRequest, name)
	}
	return v, nil
}

// ParseDocument decodes a request document. A record without canvas size
// takes the preset size of productType.
func ParseDocument(raw json.RawMessage, productType string) (*document.Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: document is required", ErrBadRequest)
	}
	var opts []document.Option
	if p, ok := document.LookupPreset(productType); ok {
		opts = p.Options()
	}
	doc, err := document.Decode(raw, opts...)
	if err != nil {
		return nil, err
	}
	if doc.CanvasWidth <= 0 || doc.CanvasHeight <= 0 {
		return nil, fmt.Errorf("%w: canvas size is required", ErrBadRequest)
	}
	for i := range doc.Pages {
		for _, e := range doc.Pages[i].Elements {
			if err := e.Validate(); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

// EncodeDocument is the response form of doc.
func EncodeDocument(doc *document.Document) (json.RawMessage, error) {
	data, err := document.Encode(doc)
	return json.RawMessage(data), err
}
