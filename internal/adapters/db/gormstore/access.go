package gormstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Sevewell/enty/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AccessRepository struct {
	db *gorm.DB
}

var _ domain.AccessRepository = (*AccessRepository)(nil)

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUser(m UserModel) domain.User {
	u := domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		Picture:      m.Picture,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Subject != nil {
		u.Subject = *m.Subject
	}
	return u
}

func subjectPtr(subject string) *string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil
	}
	return &subject
}

func (r *AccessRepository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{
		Subject:      subjectPtr(value.Subject),
		Email:        normalizeEmail(value.Email),
		Name:         strings.TrimSpace(value.Name),
		Picture:      strings.TrimSpace(value.Picture),
		PasswordHash: value.PasswordHash,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, duplicate(err, "email", "user already exists")
	}
	return toUser(m), nil
}

// UpdateUserProfile refreshes the provider-owned profile fields.
func (r *AccessRepository) UpdateUserProfile(ctx context.Context, value domain.User) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, value.ID).Error; err != nil {
		return domain.User{}, notFound(err, "user")
	}
	err := r.db.WithContext(ctx).Model(&m).Updates(map[string]any{
		"subject": subjectPtr(value.Subject),
		"email":   normalizeEmail(value.Email),
		"name":    strings.TrimSpace(value.Name),
		"picture": strings.TrimSpace(value.Picture),
	}).Error
	if err != nil {
		return domain.User{}, duplicate(err, "email", "user already exists")
	}
	return r.GetUserByID(ctx, m.ID)
}

func (r *AccessRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func (r *AccessRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&m).Error; err != nil {
		return domain.User{}, notFound(err, "user")
	}
	return toUser(m), nil
}

func (r *AccessRepository) GetUserBySubject(ctx context.Context, subject string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("subject = ?", strings.TrimSpace(subject)).First(&m).Error; err != nil {
		return domain.User{}, notFound(err, "user")
	}
	return toUser(m), nil
}

func (r *AccessRepository) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.User{}, notFound(err, "user")
	}
	return toUser(m), nil
}

func (r *AccessRepository) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{})
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("email LIKE ? OR name LIKE ?", like, like)
	}
	rows := make([]UserModel, 0)
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		result = append(result, toUser(m))
	}
	return result, nil
}

func (r *AccessRepository) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, err
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *AccessRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, notFound(err, "session")
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *AccessRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error
}

func (r *AccessRepository) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *AccessRepository) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, notFound(err, "api token")
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *AccessRepository) CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error) {
	m := RoleModel{Key: key, Name: name}
	err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *AccessRepository) GetRoleByKey(ctx context.Context, key string) (domain.Role, error) {
	var m RoleModel
	if err := r.db.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).First(&m).Error; err != nil {
		return domain.Role{}, notFound(err, "role")
	}
	return domain.Role{ID: m.ID, Key: m.Key, Name: m.Name, CreatedAt: m.CreatedAt}, nil
}

func (r *AccessRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows := make([]RoleModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Role, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Role{ID: m.ID, Key: m.Key, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func (r *AccessRepository) CreatePermissionIfMissing(ctx context.Context, key string) (uint, error) {
	m := PermissionModel{Key: key}
	err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *AccessRepository) GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error {
	m := RolePermissionModel{RoleID: roleID, PermissionID: permissionID}
	return r.db.WithContext(ctx).Where("role_id = ? AND permission_id = ?", roleID, permissionID).FirstOrCreate(&m).Error
}

func (r *AccessRepository) AssignRoleToUser(ctx context.Context, userID, roleID uint) error {
	m := UserRoleModel{UserID: userID, RoleID: roleID}
	return r.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).FirstOrCreate(&m).Error
}

func (r *AccessRepository) GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error) {
	type row struct{ Key string }
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT DISTINCT p.key
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = ?
`, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.Key)
	}
	return result, nil
}

func (r *AccessRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{ActorUserID: value.ActorUserID, Action: value.Action, TargetType: value.TargetType, TargetID: value.TargetID}
	if len(value.Metadata) > 0 {
		raw, err := json.Marshal(value.Metadata)
		if err != nil {
			return err
		}
		m.Metadata = datatypes.JSON(raw)
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *AccessRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	type row struct {
		ID             uint
		ActorUserID    *uint
		ActorUserEmail string
		Action         string
		TargetType     string
		TargetID       *uint
		Metadata       datatypes.JSON
		CreatedAt      time.Time
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.email, '') AS actor_user_email,
       a.action,
       a.target_type,
       a.target_id,
       a.metadata,
       a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
ORDER BY a.id DESC
LIMIT ?
`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.AuditRecord, 0, len(rows))
	for _, m := range rows {
		rec := domain.AuditRecord{
			ID:             m.ID,
			ActorUserID:    m.ActorUserID,
			ActorUserEmail: m.ActorUserEmail,
			Action:         m.Action,
			TargetType:     m.TargetType,
			TargetID:       m.TargetID,
			CreatedAt:      m.CreatedAt,
		}
		if len(m.Metadata) > 0 {
			_ = json.Unmarshal(m.Metadata, &rec.Metadata)
		}
		result = append(result, rec)
	}
	return result, nil
}
