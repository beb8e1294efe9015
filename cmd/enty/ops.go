package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// operation names one server call on both transports. Path placeholders
// like {id} are filled from, and removed from, the params.
type operation struct {
	Method string
	Verb   string
	Path   string
}

var (
	opLogin    = operation{"auth.login", http.MethodPost, "/api/auth/login"}
	opWhoAmI   = operation{"auth.whoami", http.MethodGet, "/api/auth/whoami"}
	opSettings = operation{"settings.get", http.MethodGet, "/api/catalog/settings"}

	opEntityClassList   = operation{"catalog.entity_class.list", http.MethodGet, "/api/catalog/entity-classes"}
	opEntityClassCreate = operation{"catalog.entity_class.create", http.MethodPost, "/api/catalog/entity-classes"}
	opEntityClassUpdate = operation{"catalog.entity_class.update", http.MethodPut, "/api/catalog/entity-classes/{id}"}
	opEntityClassDelete = operation{"catalog.entity_class.delete", http.MethodDelete, "/api/catalog/entity-classes/{id}"}

	opAttributeClassList   = operation{"catalog.attribute_class.list", http.MethodGet, "/api/catalog/entity-classes/{entity_class_id}/attributes"}
	opAttributeClassCreate = operation{"catalog.attribute_class.create", http.MethodPost, "/api/catalog/entity-classes/{entity_class_id}/attributes"}
	opAttributeClassUpdate = operation{"catalog.attribute_class.update", http.MethodPut, "/api/catalog/entity-classes/{entity_class_id}/attributes/{id}"}
	opAttributeClassDelete = operation{"catalog.attribute_class.delete", http.MethodDelete, "/api/catalog/entity-classes/{entity_class_id}/attributes/{id}"}

	opRelationClassList   = operation{"catalog.relation_class.list", http.MethodGet, "/api/catalog/relation-classes"}
	opRelationClassCreate = operation{"catalog.relation_class.create", http.MethodPost, "/api/catalog/relation-classes"}
	opRelationClassUpdate = operation{"catalog.relation_class.update", http.MethodPut, "/api/catalog/relation-classes/{id}"}
	opRelationClassDelete = operation{"catalog.relation_class.delete", http.MethodDelete, "/api/catalog/relation-classes/{id}"}

	opEntityList      = operation{"entities.list", http.MethodGet, "/api/entities"}
	opEntityGet       = operation{"entities.get", http.MethodGet, "/api/entities/{id}"}
	opEntityCreate    = operation{"entities.create", http.MethodPost, "/api/entities"}
	opEntityUpdate    = operation{"entities.update", http.MethodPut, "/api/entities/{id}"}
	opEntityDelete    = operation{"entities.delete", http.MethodDelete, "/api/entities/{id}"}
	opEntityValues    = operation{"entities.values", http.MethodGet, "/api/entities/{id}/values"}
	opEntityLinks     = operation{"entities.links", http.MethodGet, "/api/entities/{id}/links"}
	opEntityRelations = operation{"entities.relations", http.MethodGet, "/api/entities/{id}/relations"}

	opFactRecord  = operation{"facts.record", http.MethodPost, "/api/facts"}
	opFactBatch   = operation{"facts.record_batch", http.MethodPost, "/api/facts/batch"}
	opFactValue   = operation{"facts.value", http.MethodGet, "/api/facts/value"}
	opFactHistory = operation{"facts.history", http.MethodGet, "/api/facts/history"}
	opFactCorrect = operation{"facts.correct", http.MethodPut, "/api/facts/{id}"}

	opRelationConnect    = operation{"relations.connect", http.MethodPost, "/api/relations"}
	opRelationGet        = operation{"relations.get", http.MethodGet, "/api/relations/{id}"}
	opRelationDisconnect = operation{"relations.disconnect", http.MethodDelete, "/api/relations/{id}"}

	opUsersList   = operation{"access.users.list", http.MethodGet, "/api/access/users"}
	opUsersCreate = operation{"access.users.create", http.MethodPost, "/api/access/users"}
	opRolesList   = operation{"access.roles.list", http.MethodGet, "/api/access/roles"}
	opAssignRole  = operation{"access.roles.assign", http.MethodPost, "/api/access/assign-role"}
	opAuditLogs   = operation{"audit.logs", http.MethodGet, "/api/audit/logs"}
)

// invoke runs op over the configured transport. nil params are dropped.
func invoke(ctx context.Context, cfg profile, op operation, params map[string]any, out any) error {
	clean := make(map[string]any, len(params)+1)
	for k, v := range params {
		if v != nil {
			clean[k] = v
		}
	}

	if cfg.Transport == "uds" {
		clean["token"] = cfg.Token
		return newRPCClient(cfg.Socket).call(ctx, op.Method, clean, out)
	}

	path := op.Path
	for k, v := range clean {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprint(v)))
			delete(clean, k)
		}
	}

	client := newAPIClient(cfg.Server, cfg.Token)
	switch op.Verb {
	case http.MethodGet, http.MethodDelete:
		q := url.Values{}
		for k, v := range clean {
			q.Set(k, fmt.Sprint(v))
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		return client.request(ctx, op.Verb, path, nil, out)
	default:
		return client.request(ctx, op.Verb, path, clean, out)
	}
}
