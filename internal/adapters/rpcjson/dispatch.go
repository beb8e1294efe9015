package rpcjson

import (
	"context"
	"strings"

	"github.com/Sevewell/enty/internal/application"
	"github.com/Sevewell/enty/internal/domain"
)

type idParams struct {
	ID uint `json:"id"`
}

type titleParams struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type attributeParams struct {
	EntityClassID uint `json:"entity_class_id"`
	ID            uint `json:"id"`
	application.AttributeClassInput
}

type relationClassParams struct {
	ID uint `json:"id"`
	application.RelationClassInput
}

type viewParams struct {
	ID            uint   `json:"id"`
	EntityClassID *uint  `json:"entity_class_id"`
	AsOf          string `json:"as_of"`
	ViewDate      string `json:"view_date"`
	Latest        bool   `json:"latest"`
	Direction     string `json:"direction"`
}

type entityParams struct {
	ID            uint `json:"id"`
	EntityClassID uint `json:"entity_class_id"`
	application.EntityInput
}

type factParams struct {
	ID               uint            `json:"id"`
	EntityID         uint            `json:"entity_id"`
	AttributeClassID uint            `json:"attribute_class_id"`
	Value            string          `json:"value"`
	Values           map[uint]string `json:"values"`
	DateEvent        *domain.Date    `json:"date_event"`
	AsOf             string          `json:"as_of"`
}

type userParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserID   uint   `json:"user_id"`
	RoleID   uint   `json:"role_id"`
	Q        string `json:"q"`
	Limit    int    `json:"limit"`
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidRequest, Message: "invalid request"}, ID: req.ID}
	}

	read, write := domain.PermEntityRead, domain.PermEntityWrite
	catalog, manage := domain.PermCatalogWrite, domain.PermAccessManage

	switch req.Method {
	case "auth.login":
		return s.handleAuthLogin(ctx, req)
	case "auth.whoami":
		return call(ctx, s, req, "", func(id domain.Identity, _ struct{}) (any, error) {
			perms := make([]string, 0, len(id.Permissions))
			for p := range id.Permissions {
				perms = append(perms, p)
			}
			return map[string]any{"id": id.User.ID, "email": id.User.Email, "permissions": perms}, nil
		})
	case "settings.get":
		return call(ctx, s, req, read, func(_ domain.Identity, _ struct{}) (any, error) {
			return map[string]any{
				"linkage_mode":     s.graph.LinkageMode(),
				"temporal_scoping": s.graph.TemporalScoping(),
				"today":            s.graph.Today(),
			}, nil
		})

	case "catalog.entity_class.list":
		return call(ctx, s, req, read, func(_ domain.Identity, _ struct{}) (any, error) {
			return s.graph.ListEntityClasses(ctx)
		})
	case "catalog.entity_class.get":
		return call(ctx, s, req, read, func(_ domain.Identity, p idParams) (any, error) {
			return s.graph.GetEntityClass(ctx, p.ID)
		})
	case "catalog.entity_class.create":
		return call(ctx, s, req, catalog, func(id domain.Identity, p titleParams) (any, error) {
			out, err := s.graph.CreateEntityClass(ctx, p.Title)
			if err == nil {
				s.audit(ctx, id, "catalog.entity_class.create", "entity_class", &out.ID, map[string]any{"title": out.Title})
			}
			return out, err
		})
	case "catalog.entity_class.update":
		return call(ctx, s, req, catalog, func(id domain.Identity, p titleParams) (any, error) {
			out, err := s.graph.UpdateEntityClass(ctx, p.ID, p.Title)
			if err == nil {
				s.audit(ctx, id, "catalog.entity_class.update", "entity_class", &out.ID, map[string]any{"title": out.Title})
			}
			return out, err
		})
	case "catalog.entity_class.delete":
		return call(ctx, s, req, catalog, func(id domain.Identity, p idParams) (any, error) {
			if err := s.graph.DeleteEntityClass(ctx, p.ID); err != nil {
				return nil, err
			}
			s.audit(ctx, id, "catalog.entity_class.delete", "entity_class", &p.ID, nil)
			return map[string]any{"ok": true}, nil
		})

	case "catalog.attribute_class.list":
		return call(ctx, s, req, read, func(_ domain.Identity, p attributeParams) (any, error) {
			return s.graph.ListAttributeClasses(ctx, p.EntityClassID)
		})
	case "catalog.attribute_class.create":
		return call(ctx, s, req, catalog, func(id domain.Identity, p attributeParams) (any, error) {
			out, err := s.graph.CreateAttributeClass(ctx, p.EntityClassID, p.AttributeClassInput)
			if err == nil {
				s.audit(ctx, id, "catalog.attribute_class.create", "attribute_class", &out.ID, map[string]any{"entity_class_id": p.EntityClassID, "data_type": out.DataType})
			}
			return out, err
		})
	case "catalog.attribute_class.update":
		return call(ctx, s, req, catalog, func(id domain.Identity, p attributeParams) (any, error) {
			out, err := s.graph.UpdateAttributeClass(ctx, p.EntityClassID, p.ID, p.AttributeClassInput)
			if err == nil {
				s.audit(ctx, id, "catalog.attribute_class.update", "attribute_class", &out.ID, nil)
			}
			return out, err
		})
	case "catalog.attribute_class.delete":
		return call(ctx, s, req, catalog, func(id domain.Identity, p attributeParams) (any, error) {
			if err := s.graph.DeleteAttributeClass(ctx, p.EntityClassID, p.ID); err != nil {
				return nil, err
			}
			s.audit(ctx, id, "catalog.attribute_class.delete", "attribute_class", &p.ID, nil)
			return map[string]any{"ok": true}, nil
		})

	case "catalog.relation_class.list":
		return call(ctx, s, req, read, func(_ domain.Identity, p viewParams) (any, error) {
			return s.graph.ListRelationClasses(ctx, p.EntityClassID)
		})
	case "catalog.relation_class.get":
		return call(ctx, s, req, read, func(_ domain.Identity, p idParams) (any, error) {
			return s.graph.GetRelationClass(ctx, p.ID)
		})
	case "catalog.relation_class.create":
		return call(ctx, s, req, catalog, func(id domain.Identity, p relationClassParams) (any, error) {
			out, err := s.graph.CreateRelationClass(ctx, p.RelationClassInput)
			if err == nil {
				s.audit(ctx, id, "catalog.relation_class.create", "relation_class", &out.ID, map[string]any{"title": out.Title})
			}
			return out, err
		})
	case "catalog.relation_class.update":
		return call(ctx, s, req, catalog, func(id domain.Identity, p relationClassParams) (any, error) {
			out, err := s.graph.UpdateRelationClass(ctx, p.ID, p.RelationClassInput)
			if err == nil {
				s.audit(ctx, id, "catalog.relation_class.update", "relation_class", &out.ID, nil)
			}
			return out, err
		})
	case "catalog.relation_class.delete":
		return call(ctx, s, req, catalog, func(id domain.Identity, p idParams) (any, error) {
			if err := s.graph.DeleteRelationClass(ctx, p.ID); err != nil {
				return nil, err
			}
			s.audit(ctx, id, "catalog.relation_class.delete", "relation_class", &p.ID, nil)
			return map[string]any{"ok": true}, nil
		})

	case "entities.list":
		return call(ctx, s, req, read, func(_ domain.Identity, p viewParams) (any, error) {
			return s.graph.BrowseEntities(ctx, p.EntityClassID, s.asOf(p.AsOf, p.ViewDate))
		})
	case "entities.get":
		return call(ctx, s, req, read, func(_ domain.Identity, p viewParams) (any, error) {
			return s.graph.EntityDetail(ctx, p.ID, s.asOf(p.AsOf, p.ViewDate))
		})
	case "entities.create":
		return call(ctx, s, req, write, func(id domain.Identity, p entityParams) (any, error) {
			out, err := s.graph.CreateEntity(ctx, p.EntityClassID, p.EntityInput)
			if err == nil {
				s.audit(ctx, id, "graph.entity.create", "entity", &out.Entity.ID, submissionMetadata(out))
			}
			return out, err
		})
	case "entities.update":
		return call(ctx, s, req, write, func(id domain.Identity, p entityParams) (any, error) {
			out, err := s.graph.UpdateEntity(ctx, p.ID, p.EntityInput)
			if err == nil {
				s.audit(ctx, id, "graph.entity.update", "entity", &p.ID, submissionMetadata(out))
			}
			return out, err
		})
	case "entities.delete":
		return call(ctx, s, req, write, func(id domain.Identity, p idParams) (any, error) {
			if err := s.graph.DeleteEntity(ctx, p.ID); err != nil {
				return nil, err
			}
			s.audit(ctx, id, "graph.entity.delete", "entity", &p.ID, nil)
			return map[string]any{"ok": true}, nil
		})
	case "entities.values":
		return call(ctx, s, req, read, func(_ domain.Identity, p viewParams) (any, error) {
			if p.Latest {
				return s.graph.GetLatestValues(ctx, p.ID)
			}
			return s.graph.GetAllValuesAsOf(ctx, p.ID, s.asOf(p.AsOf, p.ViewDate))
		})
	case "entities.links":
		return call(ctx, s, req, read, func(_ domain.Identity, p viewParams) (any, error) {
			return s.graph.ListLinksAsOf(ctx, p.ID, s.asOf(p.AsOf, p.ViewDate))
		})
	case "entities.relations":
		return call(ctx, s, req, read, func(_ domain.Identity, p viewParams) (any, error) {
			asOf := s.asOf(p.AsOf, p.ViewDate)
			if strings.HasPrefix(strings.ToLower(p.Direction), "in") {
				return s.graph.ListIncoming(ctx, p.ID, &asOf)
			}
			return s.graph.ListOutgoing(ctx, p.ID, &asOf)
		})

	case "facts.record":
		return call(ctx, s, req, write, func(id domain.Identity, p factParams) (any, error) {
			out, err := s.graph.RecordFact(ctx, p.EntityID, p.AttributeClassID, p.Value, p.DateEvent)
			if err == nil {
				s.audit(ctx, id, "graph.fact.record", "fact", &out.ID, map[string]any{"entity_id": out.EntityID, "attribute_class_id": out.AttributeClassID})
			}
			return out, err
		})
	case "facts.record_batch":
		return call(ctx, s, req, write, func(id domain.Identity, p factParams) (any, error) {
			out, err := s.graph.RecordFacts(ctx, p.EntityID, p.Values, p.DateEvent)
			if err == nil {
				s.audit(ctx, id, "graph.fact.record_batch", "entity", &p.EntityID, submissionMetadata(out))
			}
			return out, err
		})
	case "facts.value":
		return call(ctx, s, req, read, func(_ domain.Identity, p factParams) (any, error) {
			asOf := s.asOf(p.AsOf, "")
			fact, found, err := s.graph.GetValueAsOf(ctx, p.EntityID, p.AttributeClassID, asOf)
			if err != nil {
				return nil, err
			}
			out := map[string]any{"as_of": asOf, "found": found}
			if found {
				out["fact"] = fact
			}
			return out, nil
		})
	case "facts.history":
		return call(ctx, s, req, read, func(_ domain.Identity, p factParams) (any, error) {
			return s.graph.FactHistory(ctx, p.EntityID, p.AttributeClassID)
		})
	case "facts.correct":
		return call(ctx, s, req, domain.PermHistoryCorrect, func(id domain.Identity, p factParams) (any, error) {
			out, err := s.graph.CorrectFact(ctx, p.ID, p.Value, p.DateEvent)
			if err == nil {
				s.audit(ctx, id, "history.fact.correct", "fact", &out.ID, map[string]any{"entity_id": out.EntityID, "attribute_class_id": out.AttributeClassID})
			}
			return out, err
		})

	case "relations.connect":
		return call(ctx, s, req, write, func(id domain.Identity, p application.ConnectInput) (any, error) {
			out, err := s.graph.Connect(ctx, p)
			if err == nil {
				s.audit(ctx, id, "graph.relation.create", "relation", &out.ID, map[string]any{"relation_class_id": out.RelationClassID})
			}
			return out, err
		})
	case "relations.get":
		return call(ctx, s, req, read, func(_ domain.Identity, p idParams) (any, error) {
			return s.graph.GetRelation(ctx, p.ID)
		})
	case "relations.disconnect":
		return call(ctx, s, req, write, func(id domain.Identity, p idParams) (any, error) {
			if err := s.graph.Disconnect(ctx, p.ID); err != nil {
				return nil, err
			}
			s.audit(ctx, id, "graph.relation.delete", "relation", &p.ID, nil)
			return map[string]any{"ok": true}, nil
		})

	case "access.users.list":
		return call(ctx, s, req, manage, func(_ domain.Identity, p userParams) (any, error) {
			return s.access.ListUsers(ctx, p.Q, p.Limit)
		})
	case "access.users.create":
		return call(ctx, s, req, manage, func(id domain.Identity, p userParams) (any, error) {
			out, err := s.access.CreateUser(ctx, p.Email, p.Password, p.RoleID)
			if err == nil {
				s.audit(ctx, id, "access.user.create", "user", &out.ID, map[string]any{"role_id": p.RoleID})
			}
			return out, err
		})
	case "access.roles.list":
		return call(ctx, s, req, manage, func(_ domain.Identity, _ struct{}) (any, error) {
			return s.access.ListRoles(ctx)
		})
	case "access.roles.assign":
		return call(ctx, s, req, manage, func(id domain.Identity, p userParams) (any, error) {
			if err := s.access.AssignRole(ctx, p.UserID, p.RoleID); err != nil {
				return nil, err
			}
			s.audit(ctx, id, "access.role.assign", "user", &p.UserID, map[string]any{"role_id": p.RoleID})
			return map[string]any{"ok": true}, nil
		})
	case "audit.logs":
		return call(ctx, s, req, manage, func(_ domain.Identity, p userParams) (any, error) {
			return s.access.ListAuditLogs(ctx, p.Limit)
		})
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeMethodNotFound, Message: "method not found"}, ID: req.ID}
	}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.access.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeUnauthorized, Message: "invalid credentials"}, ID: req.ID}
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "token": token}, ID: req.ID}
}

func (s *Server) asOf(raw, alias string) domain.Date {
	if strings.TrimSpace(raw) == "" {
		raw = alias
	}
	return s.graph.ResolveAsOf(raw)
}

func submissionMetadata(sub domain.Submission) map[string]any {
	return map[string]any{"facts": len(sub.Facts), "warnings": len(sub.Warnings)}
}
