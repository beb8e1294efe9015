package domain

import "context"

// GraphRepository stores the catalog, entity instances, the attribute fact
// log and relation instances. A nil asOf on fact and relation reads means
// "latest known", with no date bound.
type GraphRepository interface {
	CreateEntityClass(ctx context.Context, value EntityClass) (EntityClass, error)
	UpdateEntityClass(ctx context.Context, value EntityClass) (EntityClass, error)
	DeleteEntityClass(ctx context.Context, id uint) error
	GetEntityClass(ctx context.Context, id uint) (EntityClass, error)
	ListEntityClasses(ctx context.Context) ([]EntityClass, error)
	EntityClassTitleExists(ctx context.Context, title string, excludeID uint) (bool, error)

	CreateAttributeClass(ctx context.Context, value AttributeClass) (AttributeClass, error)
	UpdateAttributeClass(ctx context.Context, value AttributeClass) (AttributeClass, error)
	DeleteAttributeClass(ctx context.Context, id uint) error
	GetAttributeClass(ctx context.Context, id uint) (AttributeClass, error)
	ListAttributeClasses(ctx context.Context, entityClassID uint) ([]AttributeClass, error)
	AttributeClassTitleExists(ctx context.Context, entityClassID uint, title string, excludeID uint) (bool, error)

	CreateRelationClass(ctx context.Context, value RelationClass) (RelationClass, error)
	UpdateRelationClass(ctx context.Context, value RelationClass) (RelationClass, error)
	DeleteRelationClass(ctx context.Context, id uint) error
	GetRelationClass(ctx context.Context, id uint) (RelationClass, error)
	ListRelationClasses(ctx context.Context, entityClassID *uint) ([]RelationClass, error)
	RelationClassTitleExists(ctx context.Context, title string, fromClassID, toClassID uint, excludeID uint) (bool, error)

	CreateEntity(ctx context.Context, value Entity) (Entity, error)
	UpdateEntity(ctx context.Context, value Entity) (Entity, error)
	DeleteEntity(ctx context.Context, id uint) error
	GetEntity(ctx context.Context, id uint) (Entity, error)
	ListEntities(ctx context.Context, entityClassID *uint) ([]Entity, error)
	ListEntitiesAsOf(ctx context.Context, entityClassID *uint, asOf Date) ([]Entity, error)

	RecordFact(ctx context.Context, value Fact) (Fact, error)
	GetFact(ctx context.Context, id uint) (Fact, error)
	GetValueAsOf(ctx context.Context, entityID, attributeClassID uint, asOf *Date) (Fact, bool, error)
	GetAllValuesAsOf(ctx context.Context, entityID uint, asOf *Date) ([]AttributeValue, error)
	FactHistory(ctx context.Context, entityID, attributeClassID uint) ([]Fact, error)
	CorrectFact(ctx context.Context, id uint, value string, dateEvent *Date) (Fact, error)

	CreateRelation(ctx context.Context, value RelationInstance) (RelationInstance, error)
	DeleteRelation(ctx context.Context, id uint) error
	GetRelation(ctx context.Context, id uint) (RelationEdge, error)
	ListOutgoing(ctx context.Context, entityID uint, asOf *Date) ([]RelationEdge, error)
	ListIncoming(ctx context.Context, entityID uint, asOf *Date) ([]RelationEdge, error)
}

// AccessRepository stores users, roles, sessions, API tokens and the audit log.
type AccessRepository interface {
	CreateUser(ctx context.Context, value User) (User, error)
	UpdateUserProfile(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserBySubject(ctx context.Context, subject string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)

	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)

	CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error)
	GetRoleByKey(ctx context.Context, key string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreatePermissionIfMissing(ctx context.Context, key string) (uint, error)
	GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error
	AssignRoleToUser(ctx context.Context, userID, roleID uint) error
	GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error)

	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)
}
