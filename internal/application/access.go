package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/Sevewell/enty/internal/logger"
	"golang.org/x/crypto/bcrypt"
)

type AccessService struct {
	repo domain.AccessRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewAccessService(repo domain.AccessRepository, log *logger.Logger) *AccessService {
	if log == nil {
		log = logger.Nop()
	}
	return &AccessService{repo: repo, log: log, now: time.Now}
}

// rolePermissions is the built-in grant table seeded on every start.
var rolePermissions = []struct {
	key         string
	name        string
	permissions []string
}{
	{domain.RoleAdmin, "Administrator", []string{domain.PermAll}},
	{domain.RoleEditor, "Editor", []string{domain.PermEntityRead, domain.PermEntityWrite}},
	{domain.RoleViewer, "Viewer", []string{domain.PermEntityRead}},
}

var extraPermissions = []string{domain.PermCatalogWrite, domain.PermHistoryCorrect, domain.PermAccessManage}

func unauthorized(message string) error {
	return apperrors.Mark(apperrors.New(message), apperrors.ErrUnauthorized)
}

// BootstrapAccess seeds roles and permissions and creates the initial
// administrator when no user exists yet.
func (s *AccessService) BootstrapAccess(ctx context.Context, email, password string) error {
	for _, role := range rolePermissions {
		roleID, err := s.repo.CreateRoleIfMissing(ctx, role.key, role.name)
		if err != nil {
			return err
		}
		for _, key := range role.permissions {
			permID, err := s.repo.CreatePermissionIfMissing(ctx, key)
			if err != nil {
				return err
			}
			if err := s.repo.GrantPermissionToRole(ctx, roleID, permID); err != nil {
				return err
			}
		}
	}
	for _, key := range extraPermissions {
		if _, err := s.repo.CreatePermissionIfMissing(ctx, key); err != nil {
			return err
		}
	}
	return s.BootstrapAdmin(ctx, email, password)
}

func (s *AccessService) BootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return apperrors.Invalid("bootstrap", "admin email and password are required")
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	u, err := s.repo.CreateUser(ctx, domain.User{Email: email, Name: "Administrator", PasswordHash: hash})
	if err != nil {
		return err
	}

	adminRoleID, err := s.repo.CreateRoleIfMissing(ctx, domain.RoleAdmin, "Administrator")
	if err != nil {
		return err
	}
	permID, err := s.repo.CreatePermissionIfMissing(ctx, domain.PermAll)
	if err != nil {
		return err
	}
	if err := s.repo.GrantPermissionToRole(ctx, adminRoleID, permID); err != nil {
		return err
	}
	if err := s.repo.AssignRoleToUser(ctx, u.ID, adminRoleID); err != nil {
		return err
	}

	s.log.Info("bootstrap admin created", "user_id", u.ID, "email", u.Email)
	return s.repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &u.ID, Action: "auth.bootstrap_admin", TargetType: "user", TargetID: &u.ID, Metadata: map[string]any{"note": "initial admin created"}})
}

func (s *AccessService) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}
	plain, err := s.CreateSessionForUser(ctx, u.ID, ttl)
	if err != nil {
		return domain.User{}, "", err
	}
	s.WriteAudit(ctx, &u.ID, "auth.login.session", "user", &u.ID, map[string]any{"method": "password"})
	return u, plain, nil
}

// LoginExternal signs in a user vouched for by the identity provider. The
// first login creates the account with the viewer role; later logins refresh
// the profile.
func (s *AccessService) LoginExternal(ctx context.Context, ext domain.ExternalIdentity, ttl time.Duration) (domain.User, string, error) {
	if strings.TrimSpace(ext.Subject) == "" {
		return domain.User{}, "", unauthorized("identity provider returned no subject")
	}

	u, created, err := s.upsertExternalUser(ctx, ext)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, err := s.CreateSessionForUser(ctx, u.ID, ttl)
	if err != nil {
		return domain.User{}, "", err
	}
	s.WriteAudit(ctx, &u.ID, "auth.login.oidc", "user", &u.ID, map[string]any{"subject": ext.Subject, "first_login": created})
	return u, plain, nil
}

func (s *AccessService) upsertExternalUser(ctx context.Context, ext domain.ExternalIdentity) (domain.User, bool, error) {
	u, err := s.repo.GetUserBySubject(ctx, ext.Subject)
	if err == nil {
		email := ext.Email
		if strings.TrimSpace(email) == "" {
			email = u.Email
		}
		u, err = s.repo.UpdateUserProfile(ctx, domain.User{ID: u.ID, Subject: ext.Subject, Email: email, Name: ext.Name, Picture: ext.Picture})
		return u, false, err
	}
	if !apperrors.IsNotFound(err) {
		return domain.User{}, false, err
	}

	// A local account with the same email, typically the bootstrap admin,
	// is linked to the subject instead of duplicated.
	if strings.TrimSpace(ext.Email) != "" {
		existing, err := s.repo.GetUserByEmail(ctx, ext.Email)
		if err == nil && existing.Subject == "" {
			u, err = s.repo.UpdateUserProfile(ctx, domain.User{ID: existing.ID, Subject: ext.Subject, Email: ext.Email, Name: ext.Name, Picture: ext.Picture})
			return u, false, err
		}
		if err != nil && !apperrors.IsNotFound(err) {
			return domain.User{}, false, err
		}
	}

	email := ext.Email
	if strings.TrimSpace(email) == "" {
		email = ext.Subject
	}
	u, err = s.repo.CreateUser(ctx, domain.User{Subject: ext.Subject, Email: email, Name: ext.Name, Picture: ext.Picture})
	if err != nil {
		return domain.User{}, false, err
	}
	role, err := s.repo.GetRoleByKey(ctx, domain.RoleViewer)
	if err != nil {
		return domain.User{}, false, err
	}
	if err := s.repo.AssignRoleToUser(ctx, u.ID, role.ID); err != nil {
		return domain.User{}, false, err
	}
	s.log.Info("user created from identity provider", "user_id", u.ID, "subject", ext.Subject)
	return u, true, nil
}

func (s *AccessService) CreateSessionForUser(ctx context.Context, userID uint, ttl time.Duration) (string, error) {
	plain, hash, err := newTokenPair()
	if err != nil {
		return "", err
	}
	_, err = s.repo.CreateSession(ctx, domain.AuthSession{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: s.now().UTC().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}

func (s *AccessService) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := s.now().UTC().Add(*ttl)
		expiresAt = &t
	}

	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	s.WriteAudit(ctx, &u.ID, "auth.login.api_token", "user", &u.ID, map[string]any{"token_name": defaultString(tokenName, "cli")})
	return u, plain, nil
}

func (s *AccessService) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, unauthorized("unauthorized")
	}
	if session.ExpiresAt.Before(s.now().UTC()) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, unauthorized("session expired")
	}

	return s.identityByUserID(ctx, session.UserID)
}

func (s *AccessService) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	apit, err := s.repo.GetAPITokenByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, unauthorized("unauthorized")
	}
	if apit.ExpiresAt != nil && apit.ExpiresAt.Before(s.now().UTC()) {
		return domain.Identity{}, unauthorized("token expired")
	}

	return s.identityByUserID(ctx, apit.UserID)
}

func (s *AccessService) LogoutSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, hashToken(token))
}

func (s *AccessService) Can(identity domain.Identity, permission string) bool {
	if _, ok := identity.Permissions[domain.PermAll]; ok {
		return true
	}
	_, ok := identity.Permissions[permission]
	return ok
}

// WriteAudit records an audit entry. Failures are logged, never returned.
func (s *AccessService) WriteAudit(ctx context.Context, actorUserID *uint, action, targetType string, targetID *uint, metadata map[string]any) {
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.Error("audit log write failed", "action", action, "error", err)
	}
}

func (s *AccessService) CreateUser(ctx context.Context, email, password string, roleID uint) (domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return domain.User{}, apperrors.Invalid("email", "is required")
	}
	if strings.TrimSpace(password) == "" {
		return domain.User{}, apperrors.Invalid("password", "is required")
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, apperrors.Duplicate("email", "a user with this email already exists")
	} else if !apperrors.IsNotFound(err) {
		return domain.User{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.repo.CreateUser(ctx, domain.User{Email: email, PasswordHash: hash})
	if err != nil {
		return domain.User{}, err
	}
	if roleID != 0 {
		if err := s.repo.AssignRoleToUser(ctx, u.ID, roleID); err != nil {
			return domain.User{}, err
		}
	}
	return u, nil
}

func (s *AccessService) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListUsers(ctx, query, limit)
}

func (s *AccessService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *AccessService) AssignRole(ctx context.Context, userID, roleID uint) error {
	if userID == 0 {
		return apperrors.Invalid("user_id", "is required")
	}
	if roleID == 0 {
		return apperrors.Invalid("role_id", "is required")
	}
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.repo.AssignRoleToUser(ctx, userID, roleID)
}

func (s *AccessService) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *AccessService) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil || u.PasswordHash == "" {
		return domain.User{}, unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, unauthorized("invalid credentials")
	}
	return u, nil
}

func (s *AccessService) identityByUserID(ctx context.Context, userID uint) (domain.Identity, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, unauthorized("unauthorized")
	}
	permList, err := s.repo.GetPermissionsByUserID(ctx, userID)
	if err != nil {
		return domain.Identity{}, err
	}
	permMap := make(map[string]struct{}, len(permList))
	for _, p := range permList {
		permMap[p] = struct{}{}
	}
	return domain.Identity{User: u, Permissions: permMap}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
