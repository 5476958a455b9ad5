package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"storecheck/internal/models"
	"storecheck/internal/photostore"

	"github.com/google/uuid"
)

// maxPhotoBytes caps a single upload. Field photos come from phone cameras;
// 15 MiB leaves headroom for uncompressed originals.
const maxPhotoBytes = 15 << 20

var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true,
}

// UploadPhoto handles POST /api/uploads
//
// Accepts a multipart form with a "photo" file field and responds with the
// stored path. The client records that path as the answer's photoValue;
// the bytes themselves never travel through the visit payload.
func (s *Server) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		respondError(w, http.StatusBadRequest, "upload too large or malformed; photos must be under 15 MB")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, `multipart field "photo" is required`)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !photoExtensions[ext] {
		respondError(w, http.StatusBadRequest, "unsupported photo format; use jpg, png, webp, or heic")
		return
	}

	key := fmt.Sprintf("visits/%s%s", uuid.NewString(), ext)
	if _, err := s.Photos.Save(key, file); err != nil {
		s.logger().Error("save photo", "key", key, "err", err)
		respondError(w, http.StatusInternalServerError, "could not store photo")
		return
	}

	respond(w, http.StatusCreated, models.UploadResponse{Path: "/uploads/" + key})
}

// ServePhoto handles GET /uploads/{path...}
func (s *Server) ServePhoto(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("path")

	f, err := s.Photos.Open(key)
	if err != nil {
		if errors.Is(err, photostore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "photo not found")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid photo path")
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(w, f)
}
