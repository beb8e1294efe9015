// Package rpcjson serves the graph and access operations as JSON-RPC 2.0
// over a unix socket. Each connection carries newline delimited requests;
// authenticated methods take an API token in params.token.
package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sevewell/enty/internal/application"
	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/Sevewell/enty/internal/logger"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603

	codeInvalid      = 40000
	codeUnauthorized = 40100
	codeForbidden    = 40300
	codeNotFound     = 40400
	codeConflict     = 40900
)

type Server struct {
	graph  *application.GraphService
	access *application.AccessService
	log    *logger.Logger
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func New(graph *application.GraphService, access *application.AccessService, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{graph: graph, access: access, log: log}
}

// ListenAndServe binds the socket at path and serves until ctx is done.
// The socket file is removed on return.
func (s *Server) ListenAndServe(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return apperrors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(path) }()
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return err
	}
	s.log.Info("rpc listening", "socket", path)
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
			return
		}

		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) authz(ctx context.Context, req request, permission string) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.access.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: codeUnauthorized, Message: "unauthorized"}, ID: req.ID}, false
	}
	if permission != "" && !s.access.Can(identity, permission) {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: codeForbidden, Message: "forbidden"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

// call authorizes the request, decodes its params into P and runs fn.
func call[P any](ctx context.Context, s *Server, req request, permission string, fn func(domain.Identity, P) (any, error)) response {
	identity, resp, ok := s.authz(ctx, req, permission)
	if !ok {
		return resp
	}
	var p P
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	out, err := fn(identity, p)
	if err != nil {
		return s.errorResponse(req, err)
	}
	return response{JSONRPC: "2.0", Result: out, ID: req.ID}
}

func (s *Server) audit(ctx context.Context, identity domain.Identity, action, targetType string, targetID *uint, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["transport"] = "rpc"
	s.access.WriteAudit(ctx, &identity.User.ID, action, targetType, targetID, metadata)
}

func (s *Server) errorResponse(req request, err error) response {
	e := &rpcError{Code: codeInvalid, Message: err.Error()}
	switch {
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		e.Code = codeUnauthorized
	case apperrors.Is(err, apperrors.ErrForbidden):
		e.Code = codeForbidden
	case apperrors.Is(err, apperrors.ErrConflict):
		e.Code = codeConflict
	case apperrors.IsAny(err, apperrors.ErrInvalid, apperrors.ErrDanglingReference):
	case apperrors.IsAny(err, apperrors.ErrNotFound, apperrors.ErrDisabled):
		e.Code = codeNotFound
	default:
		s.log.Error("rpc call failed", "method", req.Method, "error", err)
		e = &rpcError{Code: codeInternal, Message: "internal error"}
	}
	if field, ok := apperrors.FieldOf(err); ok && field != "" {
		e.Data = map[string]any{"field": field}
	}
	return response{JSONRPC: "2.0", Error: e, ID: req.ID}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidParams, Message: "invalid params"}, ID: id}
}
