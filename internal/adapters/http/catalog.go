package http

import (
	"net/http"

	"github.com/Sevewell/enty/internal/application"
)

type titleRequest struct {
	Title string `json:"title"`
}

func (h *Handler) handleListEntityClasses(w http.ResponseWriter, r *http.Request) {
	items, err := h.graph.ListEntityClasses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateEntityClass(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.graph.CreateEntityClass(r.Context(), req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.entity_class.create", "entity_class", &v.ID, map[string]any{"title": v.Title})
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleGetEntityClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.graph.GetEntityClass(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpdateEntityClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req titleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.graph.UpdateEntityClass(r.Context(), id, req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.entity_class.update", "entity_class", &v.ID, map[string]any{"title": v.Title})
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteEntityClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.graph.DeleteEntityClass(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.entity_class.delete", "entity_class", &id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListAttributeClasses(w http.ResponseWriter, r *http.Request) {
	classID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	items, err := h.graph.ListAttributeClasses(r.Context(), classID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateAttributeClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req application.AttributeClassInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.graph.CreateAttributeClass(r.Context(), classID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.attribute_class.create", "attribute_class", &v.ID, map[string]any{"entity_class_id": classID, "data_type": v.DataType})
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUpdateAttributeClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	attrID, ok := pathID(w, r, "attrID")
	if !ok {
		return
	}
	var req application.AttributeClassInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.graph.UpdateAttributeClass(r.Context(), classID, attrID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.attribute_class.update", "attribute_class", &v.ID, nil)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteAttributeClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	attrID, ok := pathID(w, r, "attrID")
	if !ok {
		return
	}
	if err := h.graph.DeleteAttributeClass(r.Context(), classID, attrID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.attribute_class.delete", "attribute_class", &attrID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListRelationClasses(w http.ResponseWriter, r *http.Request) {
	classID, ok := queryID(w, r, "entity_class_id")
	if !ok {
		return
	}
	items, err := h.graph.ListRelationClasses(r.Context(), classID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateRelationClass(w http.ResponseWriter, r *http.Request) {
	var req application.RelationClassInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.graph.CreateRelationClass(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.relation_class.create", "relation_class", &v.ID, map[string]any{"title": v.Title})
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleGetRelationClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.graph.GetRelationClass(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpdateRelationClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req application.RelationClassInput
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.graph.UpdateRelationClass(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.relation_class.update", "relation_class", &v.ID, nil)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteRelationClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.graph.DeleteRelationClass(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "catalog.relation_class.delete", "relation_class", &id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
