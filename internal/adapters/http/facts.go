package http

import (
	"net/http"

	"github.com/Sevewell/enty/internal/domain"
)

type recordFactRequest struct {
	EntityID         uint         `json:"entity_id"`
	AttributeClassID uint         `json:"attribute_class_id"`
	Value            string       `json:"value"`
	DateEvent        *domain.Date `json:"date_event"`
}

type recordFactsRequest struct {
	EntityID  uint            `json:"entity_id"`
	Values    map[uint]string `json:"values"`
	DateEvent *domain.Date    `json:"date_event"`
}

type correctFactRequest struct {
	Value     string       `json:"value"`
	DateEvent *domain.Date `json:"date_event"`
}

func (h *Handler) handleRecordFact(w http.ResponseWriter, r *http.Request) {
	var req recordFactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	fact, err := h.graph.RecordFact(r.Context(), req.EntityID, req.AttributeClassID, req.Value, req.DateEvent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "graph.fact.record", "fact", &fact.ID, map[string]any{"entity_id": fact.EntityID, "attribute_class_id": fact.AttributeClassID})
	writeJSON(w, http.StatusCreated, fact)
}

func (h *Handler) handleRecordFacts(w http.ResponseWriter, r *http.Request) {
	var req recordFactsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := h.graph.RecordFacts(r.Context(), req.EntityID, req.Values, req.DateEvent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "graph.fact.record_batch", "entity", &req.EntityID, submissionMetadata(sub))
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleValueAsOf(w http.ResponseWriter, r *http.Request) {
	entityID, ok := requiredQueryID(w, r, "entity_id")
	if !ok {
		return
	}
	attrID, ok := requiredQueryID(w, r, "attribute_class_id")
	if !ok {
		return
	}
	asOf := h.asOf(r)
	fact, found, err := h.graph.GetValueAsOf(r.Context(), entityID, attrID, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := map[string]any{"as_of": asOf, "found": found}
	if found {
		out["fact"] = fact
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleFactHistory(w http.ResponseWriter, r *http.Request) {
	entityID, ok := requiredQueryID(w, r, "entity_id")
	if !ok {
		return
	}
	attrID, ok := requiredQueryID(w, r, "attribute_class_id")
	if !ok {
		return
	}
	facts, err := h.graph.FactHistory(r.Context(), entityID, attrID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facts)
}

func (h *Handler) handleCorrectFact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req correctFactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	fact, err := h.graph.CorrectFact(r.Context(), id, req.Value, req.DateEvent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "history.fact.correct", "fact", &fact.ID, map[string]any{"entity_id": fact.EntityID, "attribute_class_id": fact.AttributeClassID})
	writeJSON(w, http.StatusOK, fact)
}
