package templates

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"design-studio/handlers/api/respond"
	"design-studio/templates"
)

// Library is the part of templates.Library the handlers use.
type Library interface {
	List(productType string) []templates.Summary
	Get(name string) (templates.Template, bool)
}

// HandleList returns template summaries, filtered by ?productType= when set.
func HandleList(lib Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := lib.List(r.URL.Query().Get("productType"))
		if list == nil {
			list = []templates.Summary{}
		}
		render.JSON(w, r, list)
	}
}

func HandleGet(lib Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		t, ok := lib.Get(name)
		if !ok {
			logrus.WithField("name", name).Warn("Template not found")
			respond.Error(w, r, http.StatusNotFound, "Template not found")
			return
		}
		render.JSON(w, r, t)
	}
}
