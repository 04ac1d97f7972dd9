package handlers

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/session"
)

// Dashboard greets the signed-in user with links to the feature areas.
// Signed-out callers are redirected to the login route without any profile
// being loaded.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v := h.openView(ctx, sessionToken(r), nil, nil)
	defer v.close()

	s, err := v.settle(ctx)
	if err != nil {
		h.logger.Error("session did not resolve", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Session unavailable. Please try again.")
		return
	}
	if s.Status == session.StatusSignedOut {
		route := h.loginRoute
		if redirects := v.Redirects(); len(redirects) > 0 {
			route = redirects[0]
		}
		http.Redirect(w, r, route, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, models.DashboardResponse{
		User:    s.User,
		Links:   models.DashboardLinks,
		Message: s.Message,
	})
}
