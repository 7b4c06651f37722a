package handlers

import (
	"bufio"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/event-checkin-api/api"
	"github.com/linesmerrill/event-checkin-api/config"
	"github.com/linesmerrill/event-checkin-api/services"
)

const maxPhotoBytes = 10 << 20

var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Photo exported for testing purposes
type Photo struct {
	Svc *services.Photos
}

// UploadPhotoHandler stores the image sent in the photo field of a multipart form
func (p Photo) UploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	file, _, err := r.FormFile("photo")
	if err != nil {
		config.ErrorStatus("failed to read photo", http.StatusBadRequest, w, err)
		return
	}
	defer file.Close()

	body := bufio.NewReader(file)
	head, _ := body.Peek(512)
	if contentType := http.DetectContentType(head); !photoTypes[contentType] {
		config.ErrorStatus("unsupported image type "+contentType, http.StatusUnsupportedMediaType, w, nil)
		return
	}

	photo, err := p.Svc.UploadPhoto(r.Context(), mux.Vars(r)["eventId"], api.UserID(r), body)
	if err != nil {
		respondError(w, "failed to upload photo", err)
		return
	}
	respond(w, http.StatusCreated, photo)
}

// PhotosHandler lists the album of an event, newest first
func (p Photo) PhotosHandler(w http.ResponseWriter, r *http.Request) {
	photos, err := p.Svc.ListPhotos(r.Context(), mux.Vars(r)["eventId"], api.UserID(r))
	if err != nil {
		respondError(w, "failed to list photos", err)
		return
	}
	respond(w, http.StatusOK, photos)
}

// DeletePhotoHandler removes a photo from the album
func (p Photo) DeletePhotoHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := p.Svc.DeletePhoto(r.Context(), vars["eventId"], vars["photoId"], api.UserID(r)); err != nil {
		respondError(w, "failed to delete photo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
