package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// multipart bodies above this size spill to temporary files
const maxMemory = 8 << 20

// MediaHandler serves media uploads and record management.
type MediaHandler struct {
	service  simplemedia.Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewMediaHandler creates a media handler. A nil logger uses slog.Default.
func NewMediaHandler(service simplemedia.Service, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes returns the router for media endpoints
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	h.register(r)
	return r
}

func (h *MediaHandler) register(r chi.Router) {
	r.Route("/owners/{owner_type}/{owner_id}", func(r chi.Router) {
		r.Post("/images", h.UploadImage)
		r.Post("/videos", h.UploadVideo)
		r.Get("/media", h.ListMedia)
	})

	r.Get("/media/{id}", h.GetMedia)
	r.Patch("/media/{id}", h.UpdateMedia)
	r.Delete("/media/{id}", h.DeleteMedia)
}

// MediaResponse is the response body for a media asset
type MediaResponse struct {
	ID           string                 `json:"id"`
	OwnerType    string                 `json:"owner_type"`
	OwnerID      int64                  `json:"owner_id"`
	Kind         string                 `json:"kind"`
	Source       string                 `json:"source"`
	PrimaryPath  string                 `json:"primary_path"`
	Caption      string                 `json:"caption,omitempty"`
	MimeType     string                 `json:"mime_type,omitempty"`
	Width        *int                   `json:"width,omitempty"`
	Height       *int                   `json:"height,omitempty"`
	ByteSize     int64                  `json:"byte_size"`
	DisplayOrder int                    `json:"display_order"`
	Flags        []string               `json:"flags"`
	URLs         *simplemedia.MediaURLs `json:"urls,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// UpdateMediaRequest is the request body for PATCH /media/{id}
type UpdateMediaRequest struct {
	Caption      *string   `json:"caption,omitempty" validate:"omitempty,max=500"`
	Flags        *[]string `json:"flags,omitempty" validate:"omitempty,dive,min=1,max=64"`
	DisplayOrder *int      `json:"display_order,omitempty" validate:"omitempty,min=0"`
}

// uploadForm holds the non-file multipart fields.
type uploadForm struct {
	IntendedUse string   `validate:"omitempty,oneof=general hero slider"`
	Caption     string   `validate:"max=500"`
	Flags       []string `validate:"dive,min=1,max=64"`
	URL         string   `validate:"omitempty,url"`
}

func (h *MediaHandler) toResponse(r *http.Request, asset *simplemedia.MediaAsset) MediaResponse {
	resp := MediaResponse{
		ID:           asset.ID.String(),
		OwnerType:    string(asset.OwnerType),
		OwnerID:      asset.OwnerID,
		Kind:         string(asset.Kind),
		Source:       string(asset.Source),
		PrimaryPath:  asset.PrimaryPath,
		Caption:      asset.Caption,
		MimeType:     asset.MimeType,
		Width:        asset.Width,
		Height:       asset.Height,
		ByteSize:     asset.ByteSize,
		DisplayOrder: asset.DisplayOrder,
		Flags:        make([]string, 0, len(asset.Flags)),
		CreatedAt:    asset.CreatedAt,
		UpdatedAt:    asset.UpdatedAt,
	}
	for _, f := range asset.Flags {
		resp.Flags = append(resp.Flags, string(f))
	}
	urls, err := h.service.MediaURLs(r.Context(), asset)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to resolve media URLs", "media_id", asset.ID, "err", err)
	} else {
		resp.URLs = urls
	}
	return resp
}

func ownerFromRequest(r *http.Request) (simplemedia.Owner, error) {
	ownerType, err := simplemedia.ParseOwnerType(chi.URLParam(r, "owner_type"))
	if err != nil {
		return simplemedia.Owner{}, err
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "owner_id"), 10, 64)
	if err != nil || id <= 0 {
		return simplemedia.Owner{}, errors.New("invalid owner ID")
	}
	return simplemedia.Owner{Type: ownerType, ID: id}, nil
}

func (h *MediaHandler) parseUpload(w http.ResponseWriter, r *http.Request) (simplemedia.Owner, *uploadForm, bool) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		if errors.Is(err, simplemedia.ErrUnknownOwnerType) {
			writeServiceError(w, r, err)
		} else {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		}
		return owner, nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, simplemedia.MaxVideoBytes+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return owner, nil, false
		}
		writeError(w, r, http.StatusBadRequest, "invalid_request", "expected multipart/form-data")
		return owner, nil, false
	}

	form := &uploadForm{
		IntendedUse: r.FormValue("intended_use"),
		Caption:     r.FormValue("caption"),
		URL:         strings.TrimSpace(r.FormValue("url")),
	}
	for _, v := range r.MultipartForm.Value["flags"] {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				form.Flags = append(form.Flags, f)
			}
		}
	}
	if err := h.validate.Struct(form); err != nil {
		writeValidationErrors(w, r, err)
		return owner, nil, false
	}
	return owner, form, true
}

func toFlags(values []string) []simplemedia.Flag {
	out := make([]simplemedia.Flag, 0, len(values))
	for _, v := range values {
		out = append(out, simplemedia.Flag(v))
	}
	return out
}

// UploadImage accepts a multipart image upload
func (h *MediaHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	owner, form, ok := h.parseUpload(w, r)
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "file is required")
		return
	}
	defer file.Close()

	use, _ := simplemedia.ParseIntendedUse(form.IntendedUse)
	asset, err := h.service.UploadImage(r.Context(), simplemedia.UploadImageRequest{
		Owner:       owner,
		Filename:    header.Filename,
		Reader:      file,
		IntendedUse: use,
		Caption:     form.Caption,
		Flags:       toFlags(form.Flags),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "image uploaded", "media_id", asset.ID, "owner_type", owner.Type, "owner_id", owner.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.toResponse(r, asset))
}

// UploadVideo accepts a multipart video file or a video URL
func (h *MediaHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	owner, form, ok := h.parseUpload(w, r)
	if !ok {
		return
	}

	req := simplemedia.UploadVideoRequest{
		Owner:   owner,
		URL:     form.URL,
		Caption: form.Caption,
		Flags:   toFlags(form.Flags),
	}
	if form.URL == "" {
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			req.Filename = header.Filename
			req.Reader = file
		}
	}

	asset, err := h.service.UploadVideo(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "video uploaded", "media_id", asset.ID, "source", asset.Source)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.toResponse(r, asset))
}

// ListMedia lists an owner's media in display order
func (h *MediaHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		if errors.Is(err, simplemedia.ErrUnknownOwnerType) {
			writeServiceError(w, r, err)
		} else {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		}
		return
	}

	assets, err := h.service.ListMedia(r.Context(), owner)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]MediaResponse, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, h.toResponse(r, a))
	}
	render.JSON(w, r, resp)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid media ID")
		return uuid.Nil, false
	}
	return id, true
}

// GetMedia returns one media asset
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	asset, err := h.service.GetMedia(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, h.toResponse(r, asset))
}

// UpdateMedia changes caption, flags or display order
func (h *MediaHandler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "request body cannot be empty")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, err)
		return
	}

	update := simplemedia.UpdateMediaRequest{
		ID:           id,
		Caption:      req.Caption,
		DisplayOrder: req.DisplayOrder,
	}
	if req.Flags != nil {
		flags := toFlags(*req.Flags)
		update.Flags = &flags
	}

	asset, err := h.service.UpdateMedia(r.Context(), update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, h.toResponse(r, asset))
}

// DeleteMedia removes a media asset and its derivatives
func (h *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMediaByID(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "media deleted", "media_id", id)
	w.WriteHeader(http.StatusNoContent)
}
