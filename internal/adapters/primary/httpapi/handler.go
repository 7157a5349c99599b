// Package httpapi serves feeds, profiles and posts as JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jupiterclapton/cenackle-feed/internal/auth"
	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/paginator"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

type Handler struct {
	service ports.FeedService
}

func NewHandler(service ports.FeedService) *Handler {
	return &Handler{service: service}
}

// Routes expects the auth middleware to run in front of it.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed", h.globalFeed)
	mux.HandleFunc("GET /follow", h.followFeed)
	mux.HandleFunc("GET /groups/{slug}", h.groupFeed)
	mux.HandleFunc("GET /profiles/{username}", h.profile)
	mux.HandleFunc("POST /profiles/{username}/follow", h.follow)
	mux.HandleFunc("DELETE /profiles/{username}/follow", h.unfollow)
	mux.HandleFunc("GET /posts/{id}", h.postDetail)
	mux.HandleFunc("POST /admin/cache/flush", h.flushCache)
	return mux
}

func (h *Handler) globalFeed(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, domain.GlobalFeed())
}

func (h *Handler) groupFeed(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, domain.GroupFeed(r.PathValue("slug")))
}

func (h *Handler) followFeed(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	h.serveFeed(w, r, domain.FollowFeed(viewer.ID))
}

func (h *Handler) serveFeed(w http.ResponseWriter, r *http.Request, selector domain.Selector) {
	page, err := h.service.Feed(r.Context(), selector, viewerID(r.Context()), pageParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), r.PathValue("username"), viewerID(r.Context()), pageParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.service.FollowUsername(r.Context(), viewer.ID, r.PathValue("username")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.service.UnfollowUsername(r.Context(), viewer.ID, r.PathValue("username")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, domain.ErrNotFound)
		return
	}

	detail, err := h.service.PostDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDetailResponse(detail))
}

func (h *Handler) flushCache(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if !viewer.IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin role required"})
		return
	}

	if err := h.service.FlushCache(r.Context()); err != nil {
		// The local cache is already empty; only the broadcast failed.
		slog.Warn("Cache flush broadcast failed", "error", err)
	}
	slog.Info("🧹 Page cache flushed on request", "viewer_id", viewer.ID)
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func pageParam(r *http.Request) int {
	return paginator.ParsePageNumber(r.URL.Query().Get("page"))
}

func viewerID(ctx context.Context) *int64 {
	viewer, ok := auth.ForContext(ctx)
	if !ok {
		return nil
	}
	id := viewer.ID
	return &id
}

func requireViewer(w http.ResponseWriter, r *http.Request) (auth.Viewer, bool) {
	viewer, ok := auth.ForContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
	}
	return viewer, ok
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		slog.Error("Store unavailable", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
	default:
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
