package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Sevewell/enty/internal/domain"
)

const (
	defaultServer  = "http://127.0.0.1:8080"
	defaultSocket  = "/tmp/enty.sock"
	defaultProfile = "default"
)

// profile is one named server connection. Token and Email are written by
// `auth login`; AsOf is the view date read commands fall back to when
// --as-of is not given.
type profile struct {
	Transport string `json:"transport"`
	Server    string `json:"server,omitempty"`
	Socket    string `json:"socket,omitempty"`
	Token     string `json:"token,omitempty"`
	Email     string `json:"email,omitempty"`
	AsOf      string `json:"as_of,omitempty"`
}

func (p profile) withDefaults() profile {
	if p.Transport == "" {
		p.Transport = "uds"
	}
	if p.Server == "" {
		p.Server = defaultServer
	}
	if p.Socket == "" {
		p.Socket = defaultSocket
	}
	return p
}

func (p profile) validate() error {
	switch p.Transport {
	case "uds", "http":
	default:
		return fmt.Errorf("transport must be uds or http, got %q", p.Transport)
	}
	if p.AsOf != "" {
		if _, err := domain.ParseDate(p.AsOf); err != nil {
			return fmt.Errorf("as_of %q: %w", p.AsOf, err)
		}
	}
	return nil
}

type profileStore struct {
	Current  string             `json:"current"`
	Profiles map[string]profile `json:"profiles"`
}

// profilesPath honors ENTY_CONFIG so several stores can live side by side.
func profilesPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("ENTY_CONFIG")); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".enty", "profiles.json"), nil
}

func readProfileStore() (profileStore, error) {
	store := profileStore{Current: defaultProfile, Profiles: map[string]profile{}}
	path, err := profilesPath()
	if err != nil {
		return store, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return store, err
	}
	if err := json.Unmarshal(data, &store); err != nil {
		return store, fmt.Errorf("read %s: %w", path, err)
	}
	if store.Profiles == nil {
		store.Profiles = map[string]profile{}
	}
	if store.Current == "" {
		store.Current = defaultProfile
	}
	return store, nil
}

func writeProfileStore(store profileStore) error {
	path, err := profilesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// loadProfile returns the named profile, or the current one when name is
// empty. Unknown profiles resolve to defaults.
func loadProfile(name string) (profile, error) {
	store, err := readProfileStore()
	if err != nil {
		return profile{}, err
	}
	if name == "" {
		name = store.Current
	}
	return store.Profiles[name].withDefaults(), nil
}

func saveProfile(name string, p profile) error {
	if err := p.validate(); err != nil {
		return err
	}
	store, err := readProfileStore()
	if err != nil {
		return err
	}
	if name == "" {
		name = store.Current
	}
	store.Profiles[name] = p
	return writeProfileStore(store)
}

func useProfile(name string) error {
	store, err := readProfileStore()
	if err != nil {
		return err
	}
	if _, ok := store.Profiles[name]; !ok {
		return fmt.Errorf("profile %q does not exist", name)
	}
	store.Current = name
	return writeProfileStore(store)
}

func profileNames(store profileStore) []string {
	names := make([]string, 0, len(store.Profiles))
	for name := range store.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apiError is a non-2xx answer from the JSON API. Field is set for
// validation failures that name the offending input.
type apiError struct {
	Status  int
	Message string
	Field   string
}

func (e *apiError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api error (%d): %s [%s]", e.Status, e.Message, e.Field)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(payload))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &apiError{Status: resp.StatusCode, Message: body.Error, Field: body.Field}
}

type apiClient struct {
	httpClient *http.Client
	server     string
	token      string
}

func newAPIClient(server, token string) *apiClient {
	return &apiClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		server:     strings.TrimRight(server, "/"),
		token:      token,
	}
}

func (c *apiClient) request(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
