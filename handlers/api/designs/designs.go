package designs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"design-studio/core"
	"design-studio/document"
	"design-studio/export"
	"design-studio/handlers/api/respond"
)

// Service is the part of designs.Service the handlers use.
type Service interface {
	List(ctx context.Context, userID string) ([]*core.Design, error)
	Load(ctx context.Context, userID, id string) (*core.Design, *document.Document, error)
	Save(ctx context.Context, userID, id, name string, doc *document.Document) (*core.Design, error)
	Delete(ctx context.Context, userID, id string) error
}

type saveRequest struct {
	Name        string          `json:"name"`
	ProductType string          `json:"productType"`
	Document    json.RawMessage `json:"document"`
}

type designResponse struct {
	*core.Design
	Document json.RawMessage `json:"document"`
	// Warning is set when the stored record could not be read and an empty
	// page was returned instead.
	Warning string `json:"warning,omitempty"`
}

func response(design *core.Design, doc *document.Document) (designResponse, error) {
	raw, err := respond.EncodeDocument(doc)
	if err != nil {
		return designResponse{}, err
	}
	meta := *design
	meta.Data = nil
	return designResponse{Design: &meta, Document: raw}, nil
}

func HandleList(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}

		list, err := svc.List(r.Context(), userID)
		if err != nil {
			respond.Fail(w, r, err, "Failed to list designs", logrus.Fields{"userID": userID})
			return
		}
		// If the user has no designs, return an empty slice instead of null.
		if list == nil {
			list = []*core.Design{}
		}
		render.JSON(w, r, list)
	}
}

func HandleGet(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		fields := logrus.Fields{"userID": userID, "id": id}

		design, doc, err := svc.Load(r.Context(), userID, id)
		if err != nil && !errors.Is(err, document.ErrDecode) {
			respond.Fail(w, r, err, "Failed to load design", fields)
			return
		}
		resp, encErr := response(design, doc)
		if encErr != nil {
			respond.Fail(w, r, encErr, "Failed to encode design", fields)
			return
		}
		if err != nil {
			resp.Warning = "stored design could not be read; an empty page was loaded"
		}
		render.JSON(w, r, resp)
	}
}

// HandleSave creates a design on POST and replaces one on PUT /{id}.
func HandleSave(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		fields := logrus.Fields{"userID": userID, "id": id}

		var req saveRequest
		if err := respond.DecodeJSON(r, &req); err != nil {
			respond.Fail(w, r, err, "Invalid design body", fields)
			return
		}
		doc, err := respond.ParseDocument(req.Document, req.ProductType)
		if err != nil {
			respond.Fail(w, r, err, "Invalid design document", fields)
			return
		}

		design, err := svc.Save(r.Context(), userID, id, req.Name, doc)
		if err != nil {
			respond.Fail(w, r, err, "Failed to save design", fields)
			return
		}
		resp, err := response(design, doc)
		if err != nil {
			respond.Fail(w, r, err, "Failed to encode design", fields)
			return
		}
		if id == "" {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, resp)
	}
}

func HandleDelete(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if err := svc.Delete(r.Context(), userID, id); err != nil {
			respond.Fail(w, r, err, "Failed to delete design", logrus.Fields{"userID": userID, "id": id})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename is a download name for name in format f.
func Filename(name string, f export.Format) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(name, "-"), "-.")
	if base == "" {
		base = "design"
	}
	return base + "." + string(f)
}

// ExportOptions reads page and dpi query parameters on top of defaults.
func ExportOptions(r *http.Request, defaults export.Options) (int, export.Options, error) {
	page, err := respond.IntQuery(r, "page", 0)
	if err != nil {
		return 0, defaults, err
	}
	dpi, err := respond.FloatQuery(r, "dpi", defaults.DPI)
	if err != nil {
		return 0, defaults, err
	}
	if dpi < 0 || dpi > 600 {
		return 0, defaults, fmt.Errorf("%w: dpi must be between 0 and 600", respond.ErrBadRequest)
	}
	opts := defaults
	opts.DPI = dpi
	return page, opts, nil
}

// WriteExport renders doc into a buffer first so a failed render can still
// report an error status.
func WriteExport(w http.ResponseWriter, r *http.Request, doc *document.Document, f export.Format, page int, opts export.Options, name string) error {
	var buf bytes.Buffer
	if err := export.Write(r.Context(), doc, f, page, opts, &buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, Filename(name, f)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}

// HandleExport renders a stored design: GET /{id}/export/{format}?page=&dpi=.
func HandleExport(svc Service, defaults export.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		fields := logrus.Fields{"userID": userID, "id": id, "format": chi.URLParam(r, "format")}

		f, err := export.ParseFormat(chi.URLParam(r, "format"))
		if err != nil {
			respond.Fail(w, r, fmt.Errorf("%w: %v", respond.ErrBadRequest, err), "Unsupported export format", fields)
			return
		}
		page, opts, err := ExportOptions(r, defaults)
		if err != nil {
			respond.Fail(w, r, err, "Invalid export options", fields)
			return
		}
		design, doc, err := svc.Load(r.Context(), userID, id)
		if err != nil {
			respond.Fail(w, r, err, "Failed to load design", fields)
			return
		}
		if err := WriteExport(w, r, doc, f, page, opts, design.Name); err != nil {
			respond.Fail(w, r, err, "Failed to export design", fields)
			return
		}
		logrus.WithFields(fields).Info("Design exported successfully")
	}
}
