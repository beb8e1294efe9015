package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Sevewell/enty/internal/application"
	"github.com/Sevewell/enty/internal/config"
	"github.com/Sevewell/enty/internal/domain"
	"github.com/Sevewell/enty/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	sessionCookieName = "enty_session"
	loginCookieName   = "enty_oidc"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityProvider runs the browser side of an external login.
type IdentityProvider interface {
	AuthCodeURL(ctx context.Context, state, nonce, verifier string) (string, error)
	Exchange(ctx context.Context, code, verifier, nonce string) (domain.ExternalIdentity, error)
}

type Options struct {
	SessionTTL   time.Duration
	CookieSecure bool
	ProviderName string
}

type Handler struct {
	graph  *application.GraphService
	access *application.AccessService
	oidc   IdentityProvider
	log    *logger.Logger
	opts   Options
}

// NewRouter wires the JSON API. oidc may be nil, which turns browser login off.
func NewRouter(graph *application.GraphService, access *application.AccessService, oidc IdentityProvider, log *logger.Logger, opts Options) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = config.DefaultSessionTTL
	}
	h := &Handler{graph: graph, access: access, oidc: oidc, log: log, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/", h.handleIndex)
	r.Get("/healthz", h.handleHealth)
	r.Get("/auth/login", h.handleOIDCLogin)
	r.Get("/auth/callback", h.handleOIDCCallback)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/logout", h.handleLogout)

	read := h.requireAuthAPI(domain.PermEntityRead)
	write := h.requireAuthAPI(domain.PermEntityWrite)
	catalog := h.requireAuthAPI(domain.PermCatalogWrite)
	correct := h.requireAuthAPI(domain.PermHistoryCorrect)
	manage := h.requireAuthAPI(domain.PermAccessManage)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", h.handleAPILogin)
		api.With(read).Get("/auth/whoami", h.handleAPIWhoAmI)
		api.With(read).Post("/auth/logout", h.handleAPILogout)

		api.With(read).Get("/catalog/settings", h.handleSettings)
		api.With(read).Get("/catalog/entity-classes", h.handleListEntityClasses)
		api.With(catalog).Post("/catalog/entity-classes", h.handleCreateEntityClass)
		api.With(read).Get("/catalog/entity-classes/{id}", h.handleGetEntityClass)
		api.With(catalog).Put("/catalog/entity-classes/{id}", h.handleUpdateEntityClass)
		api.With(catalog).Delete("/catalog/entity-classes/{id}", h.handleDeleteEntityClass)
		api.With(read).Get("/catalog/entity-classes/{id}/attributes", h.handleListAttributeClasses)
		api.With(catalog).Post("/catalog/entity-classes/{id}/attributes", h.handleCreateAttributeClass)
		api.With(catalog).Put("/catalog/entity-classes/{id}/attributes/{attrID}", h.handleUpdateAttributeClass)
		api.With(catalog).Delete("/catalog/entity-classes/{id}/attributes/{attrID}", h.handleDeleteAttributeClass)
		api.With(read).Get("/catalog/relation-classes", h.handleListRelationClasses)
		api.With(catalog).Post("/catalog/relation-classes", h.handleCreateRelationClass)
		api.With(read).Get("/catalog/relation-classes/{id}", h.handleGetRelationClass)
		api.With(catalog).Put("/catalog/relation-classes/{id}", h.handleUpdateRelationClass)
		api.With(catalog).Delete("/catalog/relation-classes/{id}", h.handleDeleteRelationClass)

		api.With(read).Get("/entities", h.handleListEntities)
		api.With(write).Post("/entities", h.handleCreateEntity)
		api.With(read).Get("/entities/{id}", h.handleEntityDetail)
		api.With(write).Put("/entities/{id}", h.handleUpdateEntity)
		api.With(write).Delete("/entities/{id}", h.handleDeleteEntity)
		api.With(read).Get("/entities/{id}/values", h.handleEntityValues)
		api.With(read).Get("/entities/{id}/links", h.handleEntityLinks)
		api.With(read).Get("/entities/{id}/relations", h.handleEntityRelations)

		api.With(write).Post("/facts", h.handleRecordFact)
		api.With(write).Post("/facts/batch", h.handleRecordFacts)
		api.With(read).Get("/facts/value", h.handleValueAsOf)
		api.With(read).Get("/facts/history", h.handleFactHistory)
		api.With(correct).Put("/facts/{id}", h.handleCorrectFact)

		api.With(write).Post("/relations", h.handleConnect)
		api.With(read).Get("/relations/{id}", h.handleGetRelation)
		api.With(write).Delete("/relations/{id}", h.handleDisconnect)

		api.With(manage).Get("/access/users", h.handleListUsers)
		api.With(manage).Post("/access/users", h.handleCreateUser)
		api.With(manage).Get("/access/roles", h.handleListRoles)
		api.With(manage).Post("/access/assign-role", h.handleAssignRole)
		api.With(manage).Get("/audit/logs", h.handleListAuditLogs)
	})

	return r
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"name":             "enty",
		"linkage_mode":     h.graph.LinkageMode(),
		"temporal_scoping": h.graph.TemporalScoping(),
		"oidc_login":       h.oidc != nil,
	}
	if h.oidc != nil {
		out["login_url"] = "/auth/login"
		out["provider"] = h.opts.ProviderName
	}
	if identity, ok := h.authenticateRequest(r); ok {
		out["user"] = identity.User
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"linkage_mode":     h.graph.LinkageMode(),
		"temporal_scoping": h.graph.TemporalScoping(),
		"today":            h.graph.Today(),
	})
}
