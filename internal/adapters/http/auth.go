package http

import (
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Sevewell/enty/internal/adapters/oidc"
	"github.com/google/uuid"
)

const loginFlowTTL = 10 * time.Minute

type apiLoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		u, token, err := h.access.LoginWithSession(r.Context(), req.Email, req.Password, h.opts.SessionTTL)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "mode": "session"})
		return
	}

	u, token, err := h.access.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "token": token, "mode": "token"})
}

func (h *Handler) handleAPIWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	perms := make([]string, 0, len(identity.Permissions))
	for p := range identity.Permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          identity.User.ID,
		"email":       identity.User.Email,
		"name":        identity.User.Name,
		"permissions": perms,
	})
}

func (h *Handler) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := bearerToken(r); ok {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	h.endSession(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return
	}
	if identity, ok := h.authenticateRequest(r); ok {
		h.access.WriteAudit(r.Context(), &identity.User.ID, "auth.logout", "user", &identity.User.ID, nil)
	}
	if err := h.access.LogoutSession(r.Context(), c.Value); err != nil {
		h.log.Warn("logout failed", "error", err)
	}
	h.clearCookie(w, sessionCookieName)
}

// handleOIDCLogin starts the authorization-code flow. State, nonce and the
// PKCE verifier travel in a short-lived cookie until the callback.
func (h *Handler) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "external login is not configured"})
		return
	}
	state, nonce, verifier := uuid.NewString(), uuid.NewString(), oidc.NewVerifier()
	target, err := h.oidc.AuthCodeURL(r.Context(), state, nonce, verifier)
	if err != nil {
		h.log.Error("oidc login start failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "identity provider unavailable"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     loginCookieName,
		Value:    strings.Join([]string{state, nonce, verifier}, "."),
		Path:     "/auth",
		MaxAge:   int(loginFlowTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.opts.CookieSecure,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "external login is not configured"})
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": e, "description": q.Get("error_description")})
		return
	}

	c, err := r.Cookie(loginCookieName)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "login flow expired"})
		return
	}
	h.clearCookie(w, loginCookieName)
	parts := strings.Split(c.Value, ".")
	if len(parts) != 3 || subtle.ConstantTimeCompare([]byte(parts[0]), []byte(q.Get("state"))) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "state mismatch"})
		return
	}
	nonce, verifier := parts[1], parts[2]

	ext, err := h.oidc.Exchange(r.Context(), q.Get("code"), verifier, nonce)
	if err != nil {
		h.log.Warn("oidc callback rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "login failed"})
		return
	}
	_, token, err := h.access.LoginExternal(r.Context(), ext, h.opts.SessionTTL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
