package presets

import (
	"net/http"

	"github.com/go-chi/render"

	"design-studio/document"
)

// HandleList returns the product canvases a design can start from.
func HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, document.Presets())
	}
}
