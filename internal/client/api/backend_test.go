package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/session"
)

// fakeBackend serves the subset of the Bix API the client talks to.
type fakeBackend struct {
	mu sync.Mutex

	password     string
	user         userPayload
	accessToken  string
	refreshToken string
	revoked      []string
	refreshes    int
	meCalls      int

	uploadFields map[string]string
	uploadBody   []byte

	sent []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()

	b := &fakeBackend{
		password:     "hunter22",
		user:         userPayload{ID: "user-1", Email: "ana@bix.app", DisplayName: "Ana"},
		accessToken:  "access-1",
		refreshToken: "refresh-1",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", b.login)
	mux.HandleFunc("POST /api/v1/auth/signup", b.login)
	mux.HandleFunc("POST /api/v1/auth/refresh", b.refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", b.logout)
	mux.HandleFunc("POST /api/v1/auth/password-reset", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/v1/auth/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.meCalls++
		user := b.user
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, meResponse{User: user})
	}))
	mux.HandleFunc("GET /api/v1/videos", func(w http.ResponseWriter, r *http.Request) {
		next := 2
		writeJSON(w, http.StatusOK, FeedPage{
			Videos:     []models.VideoRecord{{ID: "v-" + r.URL.Query().Get("offset")}, {ID: "v-next"}},
			Total:      5,
			NextOffset: &next,
		})
	})
	mux.HandleFunc("GET /api/v1/videos/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"query":  r.URL.Query().Get("q"),
			"videos": []models.VideoRecord{{ID: "match", Caption: r.URL.Query().Get("q")}},
		})
	})
	mux.HandleFunc("GET /api/v1/videos/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		writeJSON(w, http.StatusOK, models.VideoRecord{ID: r.PathValue("id")})
	})
	mux.HandleFunc("POST /api/v1/videos", b.authed(b.upload))
	mux.HandleFunc("GET /api/v1/inbox/conversations", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"conversations": []models.Conversation{{ID: "c-1", PeerUsername: "sam"}}})
	}))
	mux.HandleFunc("POST /api/v1/inbox/conversations/{id}/messages", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.TrimSpace(req.Text) == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		b.mu.Lock()
		b.sent = append(b.sent, req.Text)
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"message": models.Message{ID: "m-1", ConversationID: r.PathValue("id"), Text: req.Text}})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		want := "Bearer " + b.accessToken
		b.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if req["email"] != b.user.Email {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no account", "code": auth.CategoryUserNotFound.Code()})
		return
	}
	if req["password"] != b.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad password", "code": auth.CategoryWrongPassword.Code()})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: b.user, Tokens: b.tokensLocked()})
}

func (b *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if req["refreshToken"] != b.refreshToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unable to refresh session"})
		return
	}
	b.refreshes++
	b.accessToken = "access-refreshed"
	b.refreshToken = "refresh-rotated"
	writeJSON(w, http.StatusOK, map[string]any{"tokens": b.tokensLocked()})
}

func (b *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.revoked = append(b.revoked, req["refreshToken"])
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video file is required"})
		return
	}
	defer file.Close()
	body, _ := io.ReadAll(file)

	b.mu.Lock()
	b.uploadBody = body
	b.uploadFields = map[string]string{
		"caption":  r.FormValue("caption"),
		"tags":     r.FormValue("tags"),
		"sound":    r.FormValue("sound"),
		"filename": header.Filename,
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, models.VideoRecord{ID: "new-video", Caption: r.FormValue("caption")})
}

// expireAccess makes the current access token stale so the next call needs a refresh.
func (b *fakeBackend) expireAccess() {
	b.mu.Lock()
	b.accessToken = "access-2"
	b.mu.Unlock()
}

func (b *fakeBackend) tokensLocked() models.SessionTokens {
	now := time.Now().UTC()
	return models.SessionTokens{
		AccessToken:      b.accessToken,
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:     b.refreshToken,
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func storeCredentials(t *testing.T, storage session.Storage, creds Credentials) {
	t.Helper()
	raw, err := json.Marshal(creds)
	if err != nil {
		t.Fatalf("marshal credentials: %v", err)
	}
	if err := storage.Set(CredentialsKey, string(raw)); err != nil {
		t.Fatalf("store credentials: %v", err)
	}
}
