package uploads

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"design-studio/editor"
	"design-studio/handlers/api/respond"
	"design-studio/uploads"
)

// HandleUpload stores the multipart field "file" and returns its URL.
func HandleUpload(up editor.Uploader, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = uploads.DefaultMaxBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		fields := logrus.Fields{"userID": userID}

		// Leave room for the multipart framing around the file.
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = fmt.Errorf("%w: %v", uploads.ErrTooLarge, err)
			} else {
				err = fmt.Errorf("%w: %v", respond.ErrBadRequest, err)
			}
			respond.Fail(w, r, err, "Invalid upload", fields)
			return
		}
		defer file.Close()
		fields["filename"] = header.Filename

		url, err := up.Upload(r.Context(), header.Filename, file)
		if err != nil {
			respond.Fail(w, r, err, "Failed to store upload", fields)
			return
		}
		logrus.WithFields(fields).WithField("url", url).Info("Upload accepted")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"url": url})
	}
}
