package http

import (
	"net/http"

	"github.com/Sevewell/enty/internal/application"
)

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req application.ConnectInput
	if !decodeBody(w, r, &req) {
		return
	}
	edge, err := h.graph.Connect(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "graph.relation.create", "relation", &edge.ID, map[string]any{
		"relation_class_id": edge.RelationClassID,
		"from_entity_id":    edge.FromEntityID,
		"to_entity_id":      edge.ToEntityID,
	})
	writeJSON(w, http.StatusCreated, edge)
}

func (h *Handler) handleGetRelation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	edge, err := h.graph.GetRelation(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.graph.Disconnect(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "graph.relation.delete", "relation", &id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
