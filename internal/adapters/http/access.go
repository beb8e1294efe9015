package http

import "net/http"

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   uint   `json:"role_id"`
}

type assignRoleRequest struct {
	UserID uint `json:"user_id"`
	RoleID uint `json:"role_id"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.access.ListUsers(r.Context(), r.URL.Query().Get("q"), queryLimit(r, 500))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.access.CreateUser(r.Context(), req.Email, req.Password, req.RoleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "access.user.create", "user", &v.ID, map[string]any{"role_id": req.RoleID})
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	items, err := h.access.ListRoles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.access.AssignRole(r.Context(), req.UserID, req.RoleID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "access.role.assign", "user", &req.UserID, map[string]any{"role_id": req.RoleID})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	items, err := h.access.ListAuditLogs(r.Context(), queryLimit(r, 500))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
