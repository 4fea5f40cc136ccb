package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ProfileHandler serves creator profiles.
type ProfileHandler struct {
	Library  CatalogSource
	Profiles ProfileDirectory
}

// Get handles GET /api/v1/profiles/{handle}.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Profiles == nil {
		respondError(ctx, w, http.StatusInternalServerError, "profile directory unavailable")
		return
	}

	c, ok := VideoHandler{Library: h.Library}.snapshot(w, r)
	if !ok {
		return
	}

	profile, found := h.Profiles.Lookup(c, chi.URLParam(r, "handle"))
	if !found {
		respondError(ctx, w, http.StatusNotFound, "profile not found")
		return
	}
	respondJSON(ctx, w, http.StatusOK, profile)
}
