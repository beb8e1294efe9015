package gormstore

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/Sevewell/enty/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "enty_test.db")

	db, err := Open(DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := RunMigrations(ctx, db, nil); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func date(t *testing.T, raw string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(raw)
	if err != nil {
		t.Fatalf("parse date %q: %v", raw, err)
	}
	return d
}

func datep(t *testing.T, raw string) *domain.Date {
	d := date(t, raw)
	return &d
}

type fixture struct {
	repo   *GraphRepository
	class  domain.EntityClass
	salary domain.AttributeClass
	alice  domain.Entity
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	repo := NewGraphRepository(openTestDB(t))

	class, err := repo.CreateEntityClass(ctx, domain.EntityClass{Title: "Employee"})
	if err != nil {
		t.Fatalf("create entity class: %v", err)
	}
	one := 1
	salary, err := repo.CreateAttributeClass(ctx, domain.AttributeClass{Title: "Salary", EntityClassID: class.ID, DataType: "NUMBER", OrderDisplay: &one})
	if err != nil {
		t.Fatalf("create attribute class: %v", err)
	}
	alice, err := repo.CreateEntity(ctx, domain.Entity{Title: "Alice", EntityClassID: class.ID, DateIn: datep(t, "2024-01-01")})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	return fixture{repo: repo, class: class, salary: salary, alice: alice}
}

func (f fixture) record(t *testing.T, value string, eventDate *domain.Date) domain.Fact {
	t.Helper()
	fact, err := f.repo.RecordFact(context.Background(), domain.Fact{
		Value:            value,
		AttributeClassID: f.salary.ID,
		EntityID:         f.alice.ID,
		DateEvent:        eventDate,
	})
	if err != nil {
		t.Fatalf("record fact %q: %v", value, err)
	}
	return fact
}

func (f fixture) valueAsOf(t *testing.T, raw string) (string, bool) {
	t.Helper()
	fact, ok, err := f.repo.GetValueAsOf(context.Background(), f.alice.ID, f.salary.ID, datep(t, raw))
	if err != nil {
		t.Fatalf("get value as of %s: %v", raw, err)
	}
	return fact.Value, ok
}

func TestSalaryHistoryResolvesAsOf(t *testing.T) {
	f := newFixture(t)
	f.record(t, "50000", datep(t, "2024-01-01"))
	f.record(t, "60000", datep(t, "2024-07-01"))

	if got, ok := f.valueAsOf(t, "2024-03-01"); !ok || got != "50000" {
		t.Fatalf("expected 50000 as of 2024-03-01, got %q (found=%v)", got, ok)
	}
	if got, ok := f.valueAsOf(t, "2024-08-01"); !ok || got != "60000" {
		t.Fatalf("expected 60000 as of 2024-08-01, got %q (found=%v)", got, ok)
	}
	if _, ok := f.valueAsOf(t, "2023-12-31"); ok {
		t.Fatalf("expected no value before the first event")
	}
}

func TestRecordFactNeverRewritesEarlierRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.record(t, "A", datep(t, "2024-01-01"))
	f.record(t, "B", datep(t, "2024-02-01"))
	f.record(t, "C", nil)

	history, err := f.repo.FactHistory(ctx, f.alice.ID, f.salary.ID)
	if err != nil {
		t.Fatalf("fact history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(history))
	}
	if history[0].ID != first.ID || history[0].Value != "A" || history[0].DateEvent.String() != "2024-01-01" {
		t.Fatalf("first fact changed: %+v", history[0])
	}
	if history[2].DateEvent != nil {
		t.Fatalf("expected undated fact to keep a nil event date, got %v", history[2].DateEvent)
	}
}

func TestSameEventDateResolvesToLaterRecording(t *testing.T) {
	f := newFixture(t)
	f.record(t, "A", datep(t, "2024-01-01"))
	f.record(t, "B", datep(t, "2024-01-01"))

	if got, _ := f.valueAsOf(t, "2024-01-01"); got != "B" {
		t.Fatalf("expected later recording to win, got %q", got)
	}
}

func TestUndatedFactQualifiesForEveryDate(t *testing.T) {
	f := newFixture(t)
	f.record(t, "dated", datep(t, "2024-06-01"))
	f.record(t, "undated", nil)

	if got, _ := f.valueAsOf(t, "1990-01-01"); got != "undated" {
		t.Fatalf("expected undated fact before any dated fact, got %q", got)
	}

	latest, ok, err := f.repo.GetValueAsOf(context.Background(), f.alice.ID, f.salary.ID, nil)
	if err != nil || !ok {
		t.Fatalf("latest value: ok=%v err=%v", ok, err)
	}
	if latest.Value != "undated" {
		t.Fatalf("expected latest known value to be the last recorded, got %q", latest.Value)
	}
}

func TestQueryAgreesWithInMemorySelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := []*domain.Date{
		datep(t, "2024-05-01"), nil, datep(t, "2024-01-01"),
		datep(t, "2024-05-01"), datep(t, "2024-09-15"), datep(t, "2024-03-01"),
	}
	for i, ev := range events {
		f.record(t, string(rune('a'+i)), ev)
	}

	history, err := f.repo.FactHistory(ctx, f.alice.ID, f.salary.ID)
	if err != nil {
		t.Fatalf("fact history: %v", err)
	}

	for _, raw := range []string{"2023-01-01", "2024-01-01", "2024-04-30", "2024-05-01", "2024-09-14", "2025-01-01"} {
		want, wantOK := domain.LatestAsOf(history, date(t, raw))
		got, gotOK, err := f.repo.GetValueAsOf(ctx, f.alice.ID, f.salary.ID, datep(t, raw))
		if err != nil {
			t.Fatalf("get value as of %s: %v", raw, err)
		}
		if gotOK != wantOK || got.ID != want.ID {
			t.Fatalf("as of %s: query picked %d (%v), in-memory picked %d (%v)", raw, got.ID, gotOK, want.ID, wantOK)
		}

		values, err := f.repo.GetAllValuesAsOf(ctx, f.alice.ID, datep(t, raw))
		if err != nil {
			t.Fatalf("get all values as of %s: %v", raw, err)
		}
		if wantOK && (len(values) != 1 || values[0].FactID != want.ID) {
			t.Fatalf("as of %s: batched read disagrees: %+v", raw, values)
		}
		if !wantOK && len(values) != 0 {
			t.Fatalf("as of %s: expected no values, got %+v", raw, values)
		}
	}
}

func TestGetAllValuesAsOfOrdersByDisplayPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Salary already holds order 1. Classes created here get ids 2, 3, 4.
	nine := 9
	two := 2
	late, _ := f.repo.CreateAttributeClass(ctx, domain.AttributeClass{Title: "Late", EntityClassID: f.class.ID, DataType: "TEXT", OrderDisplay: &nine})
	unordered, _ := f.repo.CreateAttributeClass(ctx, domain.AttributeClass{Title: "Unordered", EntityClassID: f.class.ID, DataType: "TEXT"})
	early, _ := f.repo.CreateAttributeClass(ctx, domain.AttributeClass{Title: "Early", EntityClassID: f.class.ID, DataType: "TEXT", OrderDisplay: &two})

	for _, ac := range []domain.AttributeClass{late, unordered, early, f.salary} {
		if _, err := f.repo.RecordFact(ctx, domain.Fact{Value: ac.Title, AttributeClassID: ac.ID, EntityID: f.alice.ID}); err != nil {
			t.Fatalf("record %s: %v", ac.Title, err)
		}
	}

	values, err := f.repo.GetAllValuesAsOf(ctx, f.alice.ID, datep(t, "2024-06-01"))
	if err != nil {
		t.Fatalf("get all values: %v", err)
	}

	var titles []string
	for _, v := range values {
		titles = append(titles, v.AttributeTitle)
	}
	want := []string{"Salary", "Early", "Unordered", "Late"}
	if len(titles) != len(want) {
		t.Fatalf("expected %v, got %v", want, titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, titles)
		}
	}
}

func TestReferenceTitlesResolveAndDangle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	company, _ := f.repo.CreateEntityClass(ctx, domain.EntityClass{Title: "Company"})
	acme, _ := f.repo.CreateEntity(ctx, domain.Entity{Title: "Acme", EntityClassID: company.ID})
	employer, err := f.repo.CreateAttributeClass(ctx, domain.AttributeClass{Title: "Employer", EntityClassID: f.class.ID, DataType: domain.DataTypeEntity})
	if err != nil {
		t.Fatalf("create reference attribute: %v", err)
	}
	ref := strconv.FormatUint(uint64(acme.ID), 10)
	if _, err := f.repo.RecordFact(ctx, domain.Fact{Value: ref, AttributeClassID: employer.ID, EntityID: f.alice.ID}); err != nil {
		t.Fatalf("record reference: %v", err)
	}

	values, err := f.repo.GetAllValuesAsOf(ctx, f.alice.ID, nil)
	if err != nil {
		t.Fatalf("get all values: %v", err)
	}
	if len(values) != 1 || values[0].ReferenceTitle == nil || *values[0].ReferenceTitle != acme.Title {
		t.Fatalf("expected reference to resolve to %q, got %+v", acme.Title, values)
	}

	if err := f.repo.DeleteEntity(ctx, acme.ID); err != nil {
		t.Fatalf("delete referenced entity: %v", err)
	}
	values, err = f.repo.GetAllValuesAsOf(ctx, f.alice.ID, nil)
	if err != nil {
		t.Fatalf("get all values after delete: %v", err)
	}
	if len(values) != 1 || values[0].ReferenceTitle != nil || values[0].Value != ref {
		t.Fatalf("expected dangling reference with nil title, got %+v", values)
	}
}

func TestListEntitiesAsOfHonorsHalfOpenInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bounded, _ := f.repo.CreateEntity(ctx, domain.Entity{Title: "Bounded", EntityClassID: f.class.ID, DateIn: datep(t, "2024-03-01"), DateOut: datep(t, "2024-12-31")})
	forever, _ := f.repo.CreateEntity(ctx, domain.Entity{Title: "Forever", EntityClassID: f.class.ID})

	ids := func(raw string) []uint {
		rows, err := f.repo.ListEntitiesAsOf(ctx, &f.class.ID, date(t, raw))
		if err != nil {
			t.Fatalf("list as of %s: %v", raw, err)
		}
		out := make([]uint, 0, len(rows))
		for _, e := range rows {
			out = append(out, e.ID)
		}
		return out
	}

	got := ids("2024-06-01")
	want := []uint{bounded.ID, f.alice.ID, forever.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	for _, id := range ids("2024-12-31") {
		if id == bounded.ID {
			t.Fatalf("entity must not exist on its date_out")
		}
	}
	if got := ids("2023-12-31"); len(got) != 1 || got[0] != forever.ID {
		t.Fatalf("expected only the unbounded entity before any date_in, got %v", got)
	}
}

func TestRelationsFilterByEventDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bob, _ := f.repo.CreateEntity(ctx, domain.Entity{Title: "Bob", EntityClassID: f.class.ID})
	manages, err := f.repo.CreateRelationClass(ctx, domain.RelationClass{Title: "manages", FromEntityClassID: f.class.ID, ToEntityClassID: f.class.ID})
	if err != nil {
		t.Fatalf("create relation class: %v", err)
	}
	if manages.FromClassTitle != "Employee" {
		t.Fatalf("expected class titles to be joined, got %+v", manages)
	}
	if _, err := f.repo.CreateRelation(ctx, domain.RelationInstance{RelationClassID: manages.ID, FromEntityID: f.alice.ID, ToEntityID: bob.ID, DateEvent: datep(t, "2024-05-01")}); err != nil {
		t.Fatalf("create relation: %v", err)
	}

	before, err := f.repo.ListOutgoing(ctx, f.alice.ID, datep(t, "2024-04-30"))
	if err != nil {
		t.Fatalf("list outgoing: %v", err)
	}
	if len(before) != 0 {
		t.Fatalf("expected no edges before the event date, got %+v", before)
	}

	incoming, err := f.repo.ListIncoming(ctx, bob.ID, nil)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 1 || incoming[0].FromTitle != "Alice" || incoming[0].RelationTitle != "manages" {
		t.Fatalf("unexpected incoming edges: %+v", incoming)
	}
}

func TestDeleteEntityClassCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, _ := f.repo.CreateEntityClass(ctx, domain.EntityClass{Title: "Team"})
	team, _ := f.repo.CreateEntity(ctx, domain.Entity{Title: "Core", EntityClassID: other.ID})
	member, _ := f.repo.CreateRelationClass(ctx, domain.RelationClass{Title: "member of", FromEntityClassID: f.class.ID, ToEntityClassID: other.ID})
	edge, _ := f.repo.CreateRelation(ctx, domain.RelationInstance{RelationClassID: member.ID, FromEntityID: f.alice.ID, ToEntityID: team.ID})
	fact := f.record(t, "50000", nil)

	if err := f.repo.DeleteEntityClass(ctx, f.class.ID); err != nil {
		t.Fatalf("delete entity class: %v", err)
	}

	if _, err := f.repo.GetEntity(ctx, f.alice.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected instance to be gone, got %v", err)
	}
	if _, err := f.repo.GetAttributeClass(ctx, f.salary.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected attribute class to be gone, got %v", err)
	}
	if _, err := f.repo.GetFact(ctx, fact.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected fact to be gone, got %v", err)
	}
	if _, err := f.repo.GetRelationClass(ctx, member.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected relation class to be gone, got %v", err)
	}
	if _, err := f.repo.GetRelation(ctx, edge.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected relation to be gone, got %v", err)
	}
	if _, err := f.repo.GetEntity(ctx, team.ID); err != nil {
		t.Fatalf("other class instances must survive: %v", err)
	}
}

func TestDuplicateTitlesAreDetected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exists, err := f.repo.EntityClassTitleExists(ctx, "Employee", 0)
	if err != nil || !exists {
		t.Fatalf("expected title to exist: exists=%v err=%v", exists, err)
	}
	exists, _ = f.repo.EntityClassTitleExists(ctx, "employee", 0)
	if exists {
		t.Fatalf("title comparison must be case-sensitive")
	}
	exists, _ = f.repo.EntityClassTitleExists(ctx, "Employee", f.class.ID)
	if exists {
		t.Fatalf("excluded id must not count as a duplicate")
	}

	if _, err := f.repo.CreateEntityClass(ctx, domain.EntityClass{Title: "Employee"}); err == nil {
		t.Fatalf("expected unique constraint to reject a duplicate title")
	}
}

func TestCorrectFactKeepsRecordingPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.record(t, "50000", datep(t, "2024-01-01"))
	f.record(t, "60000", datep(t, "2024-07-01"))

	corrected, err := f.repo.CorrectFact(ctx, first.ID, "55000", datep(t, "2024-02-01"))
	if err != nil {
		t.Fatalf("correct fact: %v", err)
	}
	if corrected.ID != first.ID || corrected.Value != "55000" {
		t.Fatalf("unexpected corrected fact: %+v", corrected)
	}
	if got, _ := f.valueAsOf(t, "2024-03-01"); got != "55000" {
		t.Fatalf("expected corrected value, got %q", got)
	}
	if _, err := f.repo.CorrectFact(ctx, 9999, "x", nil); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found for unknown fact, got %v", err)
	}
}

func TestAccessRepositoryPermissionsAndAudit(t *testing.T) {
	ctx := context.Background()
	repo := NewAccessRepository(openTestDB(t))

	user, err := repo.CreateUser(ctx, domain.User{Email: " Ana@Example.com ", Subject: "sub-1", Name: "Ana"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	bySubject, err := repo.GetUserBySubject(ctx, "sub-1")
	if err != nil || bySubject.ID != user.ID {
		t.Fatalf("get by subject: %+v %v", bySubject, err)
	}
	if _, err := repo.GetUserBySubject(ctx, "missing"); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	roleID, err := repo.CreateRoleIfMissing(ctx, domain.RoleEditor, "Editor")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	again, _ := repo.CreateRoleIfMissing(ctx, domain.RoleEditor, "Editor")
	if again != roleID {
		t.Fatalf("expected role creation to be idempotent")
	}
	for _, key := range []string{domain.PermEntityRead, domain.PermEntityWrite} {
		permID, err := repo.CreatePermissionIfMissing(ctx, key)
		if err != nil {
			t.Fatalf("create permission: %v", err)
		}
		if err := repo.GrantPermissionToRole(ctx, roleID, permID); err != nil {
			t.Fatalf("grant permission: %v", err)
		}
	}
	if err := repo.AssignRoleToUser(ctx, user.ID, roleID); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	perms, err := repo.GetPermissionsByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions, got %v", perms)
	}

	if err := repo.CreateAuditLog(ctx, domain.AuditLog{ActorUserID: &user.ID, Action: "entity.create", TargetType: "entity", Metadata: map[string]any{"title": "Alice"}}); err != nil {
		t.Fatalf("create audit log: %v", err)
	}
	logs, err := repo.ListAuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 || logs[0].ActorUserEmail != user.Email || logs[0].Metadata["title"] != "Alice" {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}
}

func TestMigrationsLogThroughServiceLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "enty_migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := RunMigrations(context.Background(), db, log); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	applied := logs.FilterMessageSnippet("00001_catalog.sql").All()
	if len(applied) == 0 {
		t.Fatalf("expected goose progress in service log, got %d entries", logs.Len())
	}
	if got := applied[0].ContextMap()["dialect"]; got != "sqlite3" {
		t.Fatalf("dialect field = %v, want sqlite3", got)
	}
}
