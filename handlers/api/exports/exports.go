package exports

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"design-studio/export"
	"design-studio/handlers/api/designs"
	"design-studio/handlers/api/respond"
)

type exportRequest struct {
	Name        string          `json:"name"`
	ProductType string          `json:"productType"`
	Document    json.RawMessage `json:"document"`
}

// HandleExport renders a document sent in the body:
// POST /api/export/{format}?page=&dpi=.
func HandleExport(defaults export.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := logrus.Fields{"format": chi.URLParam(r, "format")}

		f, err := export.ParseFormat(chi.URLParam(r, "format"))
		if err != nil {
			respond.Fail(w, r, fmt.Errorf("%w: %v", respond.ErrBadRequest, err), "Unsupported export format", fields)
			return
		}
		page, opts, err := designs.ExportOptions(r, defaults)
		if err != nil {
			respond.Fail(w, r, err, "Invalid export options", fields)
			return
		}

		var req exportRequest
		if err := respond.DecodeJSON(r, &req); err != nil {
			respond.Fail(w, r, err, "Invalid export body", fields)
			return
		}
		doc, err := respond.ParseDocument(req.Document, req.ProductType)
		if err != nil {
			respond.Fail(w, r, err, "Invalid export document", fields)
			return
		}
		fields["pages"] = doc.PageCount()

		if err := designs.WriteExport(w, r, doc, f, page, opts, req.Name); err != nil {
			respond.Fail(w, r, err, "Failed to export document", fields)
			return
		}
		logrus.WithFields(fields).Info("Document exported successfully")
	}
}
