package rpcjson

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sevewell/enty/internal/adapters/db/gormstore"
	"github.com/Sevewell/enty/internal/application"
	"github.com/Sevewell/enty/internal/config"
	"github.com/Sevewell/enty/internal/domain"
	"github.com/Sevewell/enty/internal/logger"
)

func newTestServer(t *testing.T, mode string) (*Server, string) {
	t.Helper()
	ctx := context.Background()
	db, err := gormstore.Open(gormstore.DriverSQLite, filepath.Join(t.TempDir(), "enty_rpc.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gormstore.RunMigrations(ctx, db, logger.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	graph := application.NewGraphService(gormstore.NewGraphRepository(db), logger.Nop(), application.Options{
		LinkageMode:     mode,
		TemporalScoping: true,
	})
	access := application.NewAccessService(gormstore.NewAccessRepository(db), logger.Nop())
	if err := access.BootstrapAccess(ctx, "admin@enty.local", "secret"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	s := New(graph, access, logger.Nop())

	resp := s.dispatch(ctx, rpcRequest(t, "auth.login", map[string]any{"email": "admin@enty.local", "password": "secret"}))
	if resp.Error != nil {
		t.Fatalf("login: %+v", resp.Error)
	}
	return s, resp.Result.(map[string]any)["token"].(string)
}

func rpcRequest(t *testing.T, method string, params map[string]any) request {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return request{JSONRPC: "2.0", Method: method, Params: raw, ID: 1}
}

// roundTrip re-encodes a result so tests can read it into a concrete type.
func roundTrip(t *testing.T, v any, out any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
}

func TestDispatchRecordsAndResolvesFacts(t *testing.T) {
	ctx := context.Background()
	s, token := newTestServer(t, config.LinkageBoth)

	resp := s.dispatch(ctx, rpcRequest(t, "catalog.entity_class.create", map[string]any{"token": token, "title": "Employee"}))
	if resp.Error != nil {
		t.Fatalf("create class: %+v", resp.Error)
	}
	var class domain.EntityClass
	roundTrip(t, resp.Result, &class)

	resp = s.dispatch(ctx, rpcRequest(t, "catalog.attribute_class.create", map[string]any{
		"token": token, "entity_class_id": class.ID, "title": "Salary", "data_type": "INTEGER",
	}))
	if resp.Error != nil {
		t.Fatalf("create attribute: %+v", resp.Error)
	}
	var salary domain.AttributeClass
	roundTrip(t, resp.Result, &salary)

	resp = s.dispatch(ctx, rpcRequest(t, "entities.create", map[string]any{
		"token": token, "entity_class_id": class.ID, "title": "Alice", "date_in": "2024-01-01",
	}))
	if resp.Error != nil {
		t.Fatalf("create entity: %+v", resp.Error)
	}
	var sub domain.Submission
	roundTrip(t, resp.Result, &sub)

	for _, f := range []struct{ value, date string }{{"1000", "2024-01-01"}, {"1200", "2024-06-01"}} {
		resp = s.dispatch(ctx, rpcRequest(t, "facts.record", map[string]any{
			"token": token, "entity_id": sub.Entity.ID, "attribute_class_id": salary.ID, "value": f.value, "date_event": f.date,
		}))
		if resp.Error != nil {
			t.Fatalf("record fact: %+v", resp.Error)
		}
	}

	resp = s.dispatch(ctx, rpcRequest(t, "facts.value", map[string]any{
		"token": token, "entity_id": sub.Entity.ID, "attribute_class_id": salary.ID, "as_of": "2024-03-01",
	}))
	if resp.Error != nil {
		t.Fatalf("value as of: %+v", resp.Error)
	}
	var got struct {
		Found bool        `json:"found"`
		Fact  domain.Fact `json:"fact"`
	}
	roundTrip(t, resp.Result, &got)
	if !got.Found || got.Fact.Value != "1000" {
		t.Fatalf("expected 1000 as of 2024-03-01, got %+v", got)
	}
}

func TestDispatchErrorCodes(t *testing.T) {
	ctx := context.Background()
	s, token := newTestServer(t, config.LinkageAttribute)

	cases := []struct {
		name   string
		method string
		params map[string]any
		code   int
	}{
		{"missing token", "entities.list", map[string]any{}, codeUnauthorized},
		{"unknown method", "entities.explode", map[string]any{"token": token}, codeMethodNotFound},
		{"blank title", "catalog.entity_class.create", map[string]any{"token": token, "title": ""}, codeInvalid},
		{"missing entity", "entities.get", map[string]any{"token": token, "id": 42}, codeNotFound},
		{"relations disabled", "relations.get", map[string]any{"token": token, "id": 1}, codeNotFound},
	}
	for _, tc := range cases {
		resp := s.dispatch(ctx, rpcRequest(t, tc.method, tc.params))
		if resp.Error == nil {
			t.Fatalf("%s: expected error code %d, got result %+v", tc.name, tc.code, resp.Result)
		}
		if resp.Error.Code != tc.code {
			t.Fatalf("%s: expected code %d, got %d (%s)", tc.name, tc.code, resp.Error.Code, resp.Error.Message)
		}
	}

	s.dispatch(ctx, rpcRequest(t, "catalog.entity_class.create", map[string]any{"token": token, "title": "Dup"}))
	resp := s.dispatch(ctx, rpcRequest(t, "catalog.entity_class.create", map[string]any{"token": token, "title": "Dup"}))
	if resp.Error == nil || resp.Error.Code != codeConflict {
		t.Fatalf("expected conflict, got %+v", resp.Error)
	}
	if data, ok := resp.Error.Data.(map[string]any); !ok || data["field"] != "title" {
		t.Fatalf("expected field data, got %+v", resp.Error.Data)
	}
}

func TestServeOverUnixSocket(t *testing.T) {
	s, token := newTestServer(t, config.LinkageBoth)

	dir, err := os.MkdirTemp("", "enty-rpc")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "rpc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, path) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		if conn, err = net.Dial("unix", path); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := rpcRequest(t, "auth.whoami", map[string]any{"token": token})
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("whoami: %+v", resp.Error)
	}
	if email := resp.Result.(map[string]any)["email"]; email != "admin@enty.local" {
		t.Fatalf("unexpected whoami result %+v", resp.Result)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket file left behind: %v", err)
	}
}
