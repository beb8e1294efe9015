package gormstore

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type EntityClassModel struct {
	ID    uint   `gorm:"primaryKey"`
	Title string `gorm:"not null;uniqueIndex"`
}

func (EntityClassModel) TableName() string { return "entity_class" }

type AttributeClassModel struct {
	ID            uint   `gorm:"primaryKey"`
	Title         string `gorm:"not null;index:idx_attr_class_title,unique"`
	EntityClassID uint   `gorm:"not null;index:idx_attr_class_title,unique"`
	DataType      string `gorm:"not null"`
	OrderDisplay  *int
}

func (AttributeClassModel) TableName() string { return "attribute_class" }

type RelationClassModel struct {
	ID                uint   `gorm:"primaryKey"`
	Title             string `gorm:"not null"`
	FromEntityClassID uint   `gorm:"not null"`
	ToEntityClassID   uint   `gorm:"not null"`
}

func (RelationClassModel) TableName() string { return "relation_class" }

// Dates are nullable ISO strings at this layer; see nullDate and datePtr.
type EntityInstanceModel struct {
	ID            uint   `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	EntityClassID uint   `gorm:"not null;index"`
	DateIn        sql.NullString
	DateOut       sql.NullString
}

func (EntityInstanceModel) TableName() string { return "entity_instance" }

type AttributeFactModel struct {
	ID               uint   `gorm:"primaryKey"`
	Value            string `gorm:"not null"`
	AttributeClassID uint   `gorm:"not null"`
	EntityInstanceID uint   `gorm:"not null"`
	DateEvent        sql.NullString
}

func (AttributeFactModel) TableName() string { return "attribute_instance" }

type RelationInstanceModel struct {
	ID              uint `gorm:"primaryKey"`
	RelationClassID uint `gorm:"not null"`
	EntityFromID    uint `gorm:"not null;index"`
	EntityToID      uint `gorm:"not null;index"`
	DateEvent       sql.NullString
}

func (RelationInstanceModel) TableName() string { return "relation_instance" }

type UserModel struct {
	ID           uint `gorm:"primaryKey"`
	Subject      *string
	Email        string `gorm:"not null;uniqueIndex"`
	Name         string `gorm:"not null;default:''"`
	Picture      string `gorm:"not null;default:''"`
	PasswordHash string `gorm:"not null;default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type RoleModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (RoleModel) TableName() string { return "roles" }

type PermissionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (PermissionModel) TableName() string { return "permissions" }

type UserRoleModel struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index:idx_user_role,unique"`
	RoleID    uint `gorm:"not null;index:idx_user_role,unique"`
	CreatedAt time.Time
}

func (UserRoleModel) TableName() string { return "user_roles" }

type RolePermissionModel struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"not null;index:idx_role_perm,unique"`
	PermissionID uint `gorm:"not null;index:idx_role_perm,unique"`
	CreatedAt    time.Time
}

func (RolePermissionModel) TableName() string { return "role_permissions" }

type AuditLogModel struct {
	ID          uint `gorm:"primaryKey"`
	ActorUserID *uint
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null"`
	TargetID    *uint
	Metadata    datatypes.JSON
	CreatedAt   time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
