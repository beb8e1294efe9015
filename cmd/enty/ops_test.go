package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Sevewell/enty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func TestInvokeFillsPathAndQuery(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotAuth = r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	cfg := profile{Transport: "http", Server: srv.URL, Token: "tok"}
	var out []map[string]any
	err := invoke(context.Background(), cfg, opEntityValues, map[string]any{"id": uint(7), "as_of": "2024-01-31", "skip": nil}, &out)
	require.NoError(t, err)
	assert.Equal(t, "/api/entities/7/values", gotPath)
	assert.Equal(t, "as_of=2024-01-31", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestInvokeSendsBodyForWrites(t *testing.T) {
	var gotPath string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":3}`))
	}))
	defer srv.Close()

	cfg := profile{Transport: "http", Server: srv.URL}
	params := map[string]any{"entity_class_id": uint(2), "title": "Salary", "data_type": "NUMBER"}
	var out map[string]any
	require.NoError(t, invoke(context.Background(), cfg, opAttributeClassCreate, params, &out))
	assert.Equal(t, "/api/catalog/entity-classes/2/attributes", gotPath)
	assert.Equal(t, map[string]any{"title": "Salary", "data_type": "NUMBER"}, body)
	assert.EqualValues(t, 3, out["id"])
}

func TestInvokeReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"title already exists"}`))
	}))
	defer srv.Close()

	err := invoke(context.Background(), profile{Transport: "http", Server: srv.URL}, opEntityClassCreate, map[string]any{"title": "Person"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "already exists")
}

func TestInvokeKeepsFieldOfValidationErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"must not be before date_in","field":"date_out"}`))
	}))
	defer srv.Close()

	err := invoke(context.Background(), profile{Transport: "http", Server: srv.URL}, opEntityCreate, map[string]any{"title": "x"}, nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "date_out", apiErr.Field)
	assert.Equal(t, "must not be before date_in", apiErr.Message)
}

func TestPrintLinksRendersDanglingReference(t *testing.T) {
	out := captureStdout(t)
	bob := "Bob"
	event := domain.NewDate(2024, 5, 1)
	printLinks([]domain.Linkage{
		{Kind: domain.LinkageRelation, Label: "manages", ToEntityID: 2, ToTitle: &bob, DateEvent: &event},
		{Kind: domain.LinkageAttribute, Label: "Mentor", ToEntityID: 9},
	})

	text := out.String()
	assert.Contains(t, text, "KIND")
	assert.Contains(t, text, "manages")
	assert.Contains(t, text, "Bob")
	assert.Contains(t, text, "2024-05-01")
	assert.Contains(t, text, "Mentor")
	assert.NotContains(t, text, "<nil>")
}

func TestPrintRelationEdges(t *testing.T) {
	out := captureStdout(t)
	printRelationEdges([]domain.RelationEdge{{ID: 4, FromTitle: "Alice", RelationTitle: "manages", ToTitle: "Bob"}})
	assert.Contains(t, out.String(), "Alice")
	assert.Contains(t, out.String(), "Bob")

	out.Reset()
	printRelationEdges(nil)
	assert.Equal(t, "no results\n", out.String())
}

func TestProfilesRoundTrip(t *testing.T) {
	t.Setenv("ENTY_CONFIG", filepath.Join(t.TempDir(), "profiles.json"))

	p, err := loadProfile("")
	require.NoError(t, err)
	assert.Equal(t, profile{Transport: "uds", Server: defaultServer, Socket: defaultSocket}, p)

	require.NoError(t, saveProfile("", profile{Transport: "http", Server: "http://enty:8080", Token: "t1", Email: "a@b.c"}))
	require.NoError(t, saveProfile("staging", profile{Transport: "uds", Socket: "/run/enty.sock", AsOf: "2024-01-31"}))

	p, err = loadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "t1", p.Token)
	assert.Equal(t, "http://enty:8080", p.Server)

	require.NoError(t, useProfile("staging"))
	p, err = loadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "/run/enty.sock", p.Socket)
	assert.Equal(t, "2024-01-31", p.AsOf)

	assert.Error(t, useProfile("missing"))
	assert.Error(t, saveProfile("bad", profile{Transport: "smtp"}))
	assert.Error(t, saveProfile("bad", profile{Transport: "uds", AsOf: "yesterday"}))

	store, err := readProfileStore()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "staging"}, profileNames(store))
}

func TestProfileAsOfAppliesOnlyWhenFlagUnset(t *testing.T) {
	cfg := profile{AsOf: "2024-01-31"}
	run := func(args ...string) map[string]any {
		var got map[string]any
		cmd := &cli.Command{
			Name:  "values",
			Flags: []cli.Flag{asOfFlag()},
			Action: func(ctx context.Context, c *cli.Command) error {
				params := map[string]any{"id": uint(1)}
				if c.IsSet("as-of") {
					params["as_of"] = c.String("as-of")
				}
				got = applyDefaultAsOf(c, cfg, params)
				return nil
			},
		}
		require.NoError(t, cmd.Run(context.Background(), append([]string{"values"}, args...)))
		return got
	}

	assert.Equal(t, "2024-01-31", run()["as_of"])
	assert.Equal(t, "2023-06-30", run("--as-of", "2023-06-30")["as_of"])

	noFlag := &cli.Command{Name: "history"}
	assert.Nil(t, applyDefaultAsOf(noFlag, cfg, nil))
}

func TestParseValues(t *testing.T) {
	got, err := parseValues([]string{"4=5000", " 5 =a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"4": "5000", "5": "a=b"}, got)

	_, err = parseValues([]string{"salary=5000"})
	assert.Error(t, err)
	_, err = parseValues([]string{"4"})
	assert.Error(t, err)
}
