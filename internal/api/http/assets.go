package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-courses/internal/storage"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// PUT /courses/{courseID}/image  (multipart, field "file")
func UploadCourseImageHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, storage.MaxBlobSize+1<<20)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		ext := strings.ToLower(path.Ext(hdr.Filename))
		if !imageExts[ext] {
			http.Error(w, "unsupported image type", http.StatusBadRequest)
			return
		}
		key, err := d.Blobs.Put(r.Context(), "courses/"+courseID+"/image"+ext, f)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Courses.SetImage(r.Context(), courseID, key); err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key})
	}
}

// GET /assets/*
func GetAssetHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		rc, err := d.Blobs.Get(r.Context(), key)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		defer rc.Close()
		if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if _, err := io.Copy(w, rc); err != nil {
			d.Log.WithError(err).WithField("key", key).Warn("asset copy interrupted")
		}
	}
}
