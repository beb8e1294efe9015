package domain

import (
	"strconv"
	"strings"
	"time"
)

// DataTypeEntity marks an attribute class whose values are references to
// other entity instances, stored as the decimal instance id.
const DataTypeEntity = "ENTITY"

type EntityClass struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type AttributeClass struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	EntityClassID uint   `json:"entity_class_id"`
	DataType      string `json:"data_type"`
	OrderDisplay  *int   `json:"order_display,omitempty"`
}

func (a AttributeClass) IsReference() bool {
	return IsReferenceType(a.DataType)
}

func IsReferenceType(dataType string) bool {
	return strings.EqualFold(strings.TrimSpace(dataType), DataTypeEntity)
}

type RelationClass struct {
	ID                uint   `json:"id"`
	Title             string `json:"title"`
	FromEntityClassID uint   `json:"from_entity_class_id"`
	ToEntityClassID   uint   `json:"to_entity_class_id"`
	FromClassTitle    string `json:"from_class_title,omitempty"`
	ToClassTitle      string `json:"to_class_title,omitempty"`
}

type Entity struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	EntityClassID uint   `json:"entity_class_id"`
	ClassTitle    string `json:"class_title,omitempty"`
	DateIn        *Date  `json:"date_in"`
	DateOut       *Date  `json:"date_out"`
}

// Fact is one recorded value of an attribute for an entity. Facts are
// appended, never rewritten, except through an explicit history correction.
type Fact struct {
	ID               uint   `json:"id"`
	Value            string `json:"value"`
	AttributeClassID uint   `json:"attribute_class_id"`
	EntityID         uint   `json:"entity_id"`
	DateEvent        *Date  `json:"date_event"`
}

// AttributeValue is the fact selected for one attribute class as of a date,
// joined with its class definition.
type AttributeValue struct {
	AttributeClassID uint    `json:"attribute_class_id"`
	AttributeTitle   string  `json:"attribute_title"`
	DataType         string  `json:"data_type"`
	OrderDisplay     *int    `json:"order_display,omitempty"`
	FactID           uint    `json:"fact_id"`
	Value            string  `json:"value"`
	DateEvent        *Date   `json:"date_event"`
	ReferenceTitle   *string `json:"reference_title,omitempty"`
}

func (v AttributeValue) IsReference() bool {
	return IsReferenceType(v.DataType)
}

// ReferenceID parses the stored value of an ENTITY-typed attribute.
func (v AttributeValue) ReferenceID() (uint, bool) {
	if !v.IsReference() {
		return 0, false
	}
	return ParseEntityRef(v.Value)
}

// ParseEntityRef parses a stored entity reference value.
func ParseEntityRef(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type RelationInstance struct {
	ID              uint  `json:"id"`
	RelationClassID uint  `json:"relation_class_id"`
	FromEntityID    uint  `json:"from_entity_id"`
	ToEntityID      uint  `json:"to_entity_id"`
	DateEvent       *Date `json:"date_event"`
}

// RelationEdge is a relation instance enriched with the titles of both
// endpoints and of its relation class.
type RelationEdge struct {
	ID              uint   `json:"id"`
	RelationClassID uint   `json:"relation_class_id"`
	RelationTitle   string `json:"relation_title"`
	FromEntityID    uint   `json:"from_entity_id"`
	FromTitle       string `json:"from_title"`
	ToEntityID      uint   `json:"to_entity_id"`
	ToTitle         string `json:"to_title"`
	DateEvent       *Date  `json:"date_event"`
}

type EntityDetail struct {
	Entity     Entity           `json:"entity"`
	Class      EntityClass      `json:"class"`
	AsOf       *Date            `json:"as_of"`
	Attributes []AttributeValue `json:"attributes"`
	References []AttributeValue `json:"references"`
	Outgoing   []RelationEdge   `json:"outgoing"`
	Incoming   []RelationEdge   `json:"incoming"`
}

// Warning reports one attribute of a submission that was not recorded.
type Warning struct {
	AttributeClassID uint   `json:"attribute_class_id"`
	Message          string `json:"message"`
}

// Submission is the outcome of a best-effort multi-attribute write.
type Submission struct {
	Entity   Entity    `json:"entity"`
	Facts    []Fact    `json:"facts"`
	Warnings []Warning `json:"warnings"`
}

type User struct {
	ID           uint      `json:"id"`
	Subject      string    `json:"subject,omitempty"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Picture      string    `json:"picture,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExternalIdentity is what the identity provider vouches for after login.
type ExternalIdentity struct {
	Subject string
	Name    string
	Email   string
	Picture string
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type AuditLog struct {
	ID          uint
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    *uint
	Metadata    map[string]any
	CreatedAt   time.Time
}

type Identity struct {
	User        User
	Permissions map[string]struct{}
}

type Role struct {
	ID        uint      `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditRecord struct {
	ID             uint           `json:"id"`
	ActorUserID    *uint          `json:"actor_user_id"`
	ActorUserEmail string         `json:"actor_user_email"`
	Action         string         `json:"action"`
	TargetType     string         `json:"target_type"`
	TargetID       *uint          `json:"target_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

const (
	PermEntityRead     = "entity.read"
	PermEntityWrite    = "entity.write"
	PermCatalogWrite   = "catalog.write"
	PermHistoryCorrect = "history.correct"
	PermAccessManage   = "access.manage"
	PermAll            = "*"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)
