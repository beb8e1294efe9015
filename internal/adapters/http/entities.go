package http

import (
	"net/http"
	"strings"

	"github.com/Sevewell/enty/internal/application"
	"github.com/Sevewell/enty/internal/domain"
)

type createEntityRequest struct {
	EntityClassID uint `json:"entity_class_id"`
	application.EntityInput
}

func (h *Handler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	classID, ok := queryID(w, r, "entity_class_id")
	if !ok {
		return
	}
	items, err := h.graph.BrowseEntities(r.Context(), classID, h.asOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := h.graph.CreateEntity(r.Context(), req.EntityClassID, req.EntityInput)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "graph.entity.create", "entity", &sub.Entity.ID, submissionMetadata(sub))
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleEntityDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.graph.EntityDetail(r.Context(), id, h.asOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req application.EntityInput
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := h.graph.UpdateEntity(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "graph.entity.update", "entity", &id, submissionMetadata(sub))
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.graph.DeleteEntity(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "graph.entity.delete", "entity", &id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleEntityValues returns the values effective on the view date, or the
// latest recorded values when latest=true.
func (h *Handler) handleEntityValues(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var (
		values []domain.AttributeValue
		err    error
	)
	if r.URL.Query().Get("latest") == "true" {
		values, err = h.graph.GetLatestValues(r.Context(), id)
	} else {
		values, err = h.graph.GetAllValuesAsOf(r.Context(), id, h.asOf(r))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (h *Handler) handleEntityLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	links, err := h.graph.ListLinksAsOf(r.Context(), id, h.asOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// handleEntityRelations lists outgoing (default) or incoming relations.
func (h *Handler) handleEntityRelations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asOf := h.asOf(r)
	var (
		edges []domain.RelationEdge
		err   error
	)
	switch strings.ToLower(r.URL.Query().Get("direction")) {
	case "", "out", "outgoing":
		edges, err = h.graph.ListOutgoing(r.Context(), id, &asOf)
	case "in", "incoming":
		edges, err = h.graph.ListIncoming(r.Context(), id, &asOf)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "direction must be out or in"})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func submissionMetadata(sub domain.Submission) map[string]any {
	return map[string]any{"facts": len(sub.Facts), "warnings": len(sub.Warnings)}
}
