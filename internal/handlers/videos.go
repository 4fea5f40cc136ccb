package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bixapp/bix/internal/catalog"
	"github.com/bixapp/bix/internal/logging"
	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/upload"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	multipartMemory = 32 << 20
)

// VideoHandler serves the feed, search, discovery and upload endpoints.
type VideoHandler struct {
	Library        CatalogSource
	Accounts       AccountService
	Uploads        VideoUploader
	MaxUploadBytes int64
}

// Feed handles GET /api/v1/videos?offset=&limit=.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page := c.Page(offset, limit)
	resp := feedResponse{Videos: page, Total: c.Len()}
	if offset+len(page) < c.Len() {
		next := offset + len(page)
		resp.NextOffset = &next
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Search handles GET /api/v1/videos/search?q=.
func (h VideoHandler) Search(w http.ResponseWriter, r *http.Request) {
	c, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	respondJSON(r.Context(), w, http.StatusOK, searchResponse{Query: query, Videos: c.Search(query)})
}

// Discover handles GET /api/v1/videos/discover?q=, bucketing the search results.
func (h VideoHandler) Discover(w http.ResponseWriter, r *http.Request) {
	c, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	respondJSON(r.Context(), w, http.StatusOK, discoverResponse{Query: query, Categories: c.Discover(query)})
}

// Get handles GET /api/v1/videos/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	record, found := c.Get(chi.URLParam(r, "id"))
	if !found {
		respondError(r.Context(), w, http.StatusNotFound, "video not found")
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, record)
}

// Upload handles multipart POST /api/v1/videos for an authenticated creator.
// Form fields: video (file), caption, tags, sound.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Uploads == nil || h.Accounts == nil {
		logger.Error("upload dependencies unavailable", "hasUploads", h.Uploads != nil, "hasAccounts", h.Accounts != nil)
		respondError(ctx, w, http.StatusInternalServerError, "upload service unavailable")
		return
	}

	userID := logging.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, upload.ErrNoAuthor.Error())
		return
	}

	user, err := h.Accounts.Lookup(ctx, userID)
	if err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 100 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, upload.ErrTooLarge.Error())
			return
		}
		logger.Warn("invalid upload form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid upload form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, upload.ErrNoFile.Error())
		return
	}
	defer file.Close()

	lastQuarter := 0
	record, err := h.Uploads.Upload(ctx, upload.Request{
		Author: upload.Author{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			AvatarURL:   user.AvatarURL,
		},
		FileName: header.Filename,
		Size:     header.Size,
		Body:     file,
		Caption:  r.FormValue("caption"),
		Tags:     r.FormValue("tags"),
		Sound:    r.FormValue("sound"),
		Progress: func(fraction float64) {
			if quarter := int(math.Floor(fraction * 4)); quarter > lastQuarter {
				lastQuarter = quarter
				logger.Debug("upload progress", "percent", quarter*25)
			}
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrTooLarge):
			respondError(ctx, w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, upload.ErrNotVideo), errors.Is(err, upload.ErrCaptionRequired), errors.Is(err, upload.ErrNoFile):
			respondError(ctx, w, http.StatusBadRequest, err.Error())
		case errors.Is(err, upload.ErrNoAuthor):
			respondError(ctx, w, http.StatusUnauthorized, err.Error())
		default:
			logger.Error("upload failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "upload failed, please try again")
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, record)
}

func (h VideoHandler) snapshot(w http.ResponseWriter, r *http.Request) (*catalog.Catalog, bool) {
	ctx := r.Context()
	if h.Library == nil {
		logging.FromContext(ctx).Error("video library unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "video library unavailable")
		return nil, false
	}
	c, err := h.Library.Snapshot(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("load catalog", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load videos")
		return nil, false
	}
	return c, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

type feedResponse struct {
	Videos     []models.VideoRecord `json:"videos"`
	Total      int                  `json:"total"`
	NextOffset *int                 `json:"nextOffset,omitempty"`
}

type searchResponse struct {
	Query  string               `json:"query"`
	Videos []models.VideoRecord `json:"videos"`
}

type discoverResponse struct {
	Query      string             `json:"query"`
	Categories []catalog.Category `json:"categories"`
}
