package application

import (
	"context"
	"testing"
	"time"

	"github.com/Sevewell/enty/internal/adapters/db/gormstore"
	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/Sevewell/enty/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccess(t *testing.T) *AccessService {
	t.Helper()
	svc := NewAccessService(gormstore.NewAccessRepository(openDB(t)), logger.Nop())
	require.NoError(t, svc.BootstrapAccess(context.Background(), "admin@enty.local", "secret"))
	return svc
}

func TestBootstrapAdminHasEveryPermission(t *testing.T) {
	ctx := context.Background()
	svc := newAccess(t)

	_, token, err := svc.LoginWithAPIToken(ctx, "ADMIN@enty.local", "secret", "", nil)
	require.NoError(t, err)

	identity, err := svc.AuthenticateBearerToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, svc.Can(identity, domain.PermHistoryCorrect))
	assert.True(t, svc.Can(identity, domain.PermAccessManage))

	require.NoError(t, svc.BootstrapAccess(ctx, "other@enty.local", "x"))
	users, err := svc.ListUsers(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, users, 1, "bootstrap runs only on an empty user table")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newAccess(t)

	_, _, err := svc.LoginWithSession(ctx, "admin@enty.local", "wrong", time.Hour)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = svc.AuthenticateSession(ctx, "not-a-token")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestExpiredSessionIsRejected(t *testing.T) {
	ctx := context.Background()
	svc := newAccess(t)

	_, token, err := svc.LoginWithSession(ctx, "admin@enty.local", "secret", time.Hour)
	require.NoError(t, err)
	_, err = svc.AuthenticateSession(ctx, token)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.AuthenticateSession(ctx, token)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestExternalLoginCreatesViewerThenRefreshesProfile(t *testing.T) {
	ctx := context.Background()
	svc := newAccess(t)

	u, token, err := svc.LoginExternal(ctx, domain.ExternalIdentity{Subject: "sub-42", Name: "Ana", Email: "ana@example.com"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "sub-42", u.Subject)

	identity, err := svc.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	assert.True(t, svc.Can(identity, domain.PermEntityRead))
	assert.False(t, svc.Can(identity, domain.PermEntityWrite))
	assert.False(t, svc.Can(identity, domain.PermCatalogWrite))

	again, _, err := svc.LoginExternal(ctx, domain.ExternalIdentity{Subject: "sub-42", Name: "Ana Maria", Email: "ana@example.com"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Ana Maria", again.Name)

	_, _, err = svc.LoginExternal(ctx, domain.ExternalIdentity{Name: "nobody"}, time.Hour)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestExternalLoginLinksBootstrapAdminByEmail(t *testing.T) {
	ctx := context.Background()
	svc := newAccess(t)

	u, token, err := svc.LoginExternal(ctx, domain.ExternalIdentity{Subject: "admin-sub", Email: "admin@enty.local", Name: "Admin"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "admin-sub", u.Subject)

	identity, err := svc.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	assert.True(t, svc.Can(identity, domain.PermAll))
}

func TestCreateUserAndAssignRole(t *testing.T) {
	ctx := context.Background()
	svc := newAccess(t)

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	var editorID uint
	for _, r := range roles {
		if r.Key == domain.RoleEditor {
			editorID = r.ID
		}
	}
	require.NotZero(t, editorID)

	u, err := svc.CreateUser(ctx, "ed@example.com", "pw", editorID)
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "ED@example.com", "pw", 0)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, token, err := svc.LoginWithAPIToken(ctx, "ed@example.com", "pw", "ci", nil)
	require.NoError(t, err)
	identity, err := svc.AuthenticateBearerToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.User.ID)
	assert.True(t, svc.Can(identity, domain.PermEntityWrite))

	assert.True(t, apperrors.IsInvalid(svc.AssignRole(ctx, 0, editorID)))
	assert.True(t, apperrors.IsNotFound(svc.AssignRole(ctx, 999, editorID)))

	logs, err := svc.ListAuditLogs(ctx, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}
