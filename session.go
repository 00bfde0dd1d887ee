package dkod

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dkod-io/agent-sdk-go/src/protocol"
)

// Session is an authenticated handle to one codebase on the server. All
// operations are safe for concurrent use; the server decides ordering.
type Session struct {
	conn      io.Closer
	rpc       protocol.AgentServiceClient
	agentID   string
	authToken string
	logger    *slog.Logger

	mu          sync.RWMutex
	id          string
	changesetID string
	version     string
	summary     CodebaseSummary
	closed      bool
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// CodebaseVersion is the version the session was opened against.
func (s *Session) CodebaseVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ChangesetID is the changeset the server opened for this session, if any.
func (s *Session) ChangesetID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changesetID
}

// UseChangeset binds the session to an existing changeset, for example one
// submitted by an earlier session. Later submits, verifies and merges act on it.
func (s *Session) UseChangeset(id string) error {
	if id == "" {
		return &InvalidArgumentError{Field: "changeset_id", Value: id, Allowed: []string{"non-empty string"}}
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	s.changesetID = id
	s.mu.Unlock()
	s.logger.Debug("dkod changeset resumed", "session_id", s.ID(), "changeset_id", id)
	return nil
}

func (s *Session) Summary() CodebaseSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Connect re-runs the handshake on the existing connection and rebinds the
// session to whatever server session it returns.
func (s *Session) Connect(ctx context.Context, codebase, intent string) (*ConnectResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	resp, err := s.rpc.Connect(ctx, &protocol.ConnectRequest{
		AgentID:   s.agentID,
		AuthToken: s.authToken,
		Codebase:  codebase,
		Intent:    intent,
	})
	if err != nil {
		return nil, err
	}
	result := connectResultFromProto(resp)

	s.mu.Lock()
	s.id = result.SessionID
	s.changesetID = result.ChangesetID
	s.version = result.CodebaseVersion
	s.summary = result.Summary
	s.mu.Unlock()

	s.logger.Debug("dkod session connected",
		"session_id", result.SessionID,
		"codebase", codebase,
		"version", result.CodebaseVersion)
	return result, nil
}

// Context runs a semantic query over the codebase.
func (s *Session) Context(ctx context.Context, q ContextQuery) (*ContextResult, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	depth := q.Depth
	if depth == "" {
		depth = DepthFull
	}
	maxTokens := q.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	s.logger.Debug("dkod context", "session_id", id, "query", q.Query, "depth", depth)
	resp, err := s.rpc.Context(ctx, &protocol.ContextRequest{
		SessionID:           id,
		Query:               q.Query,
		Depth:               string(depth),
		IncludeTests:        q.IncludeTests,
		IncludeDependencies: q.IncludeDependencies,
		MaxTokens:           uint32(maxTokens),
	})
	if err != nil {
		return nil, err
	}
	return contextResultFromProto(resp), nil
}

func (s *Session) FileRead(ctx context.Context, path string) (*FileReadResult, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("dkod file read", "session_id", id, "path", path)
	resp, err := s.rpc.FileRead(ctx, &protocol.FileReadRequest{SessionID: id, Path: path})
	if err != nil {
		return nil, err
	}
	return fileReadResultFromProto(resp), nil
}

// FileWrite replaces the file at path in the session overlay.
func (s *Session) FileWrite(ctx context.Context, path, content string) (*FileWriteResult, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("dkod file write", "session_id", id, "path", path, "bytes", len(content))
	resp, err := s.rpc.FileWrite(ctx, &protocol.FileWriteRequest{SessionID: id, Path: path, Content: []byte(content)})
	if err != nil {
		return nil, err
	}
	return fileWriteResultFromProto(resp), nil
}

// Submit sends changes as one changeset. The session's changeset id, when
// the server issued one, is attached to the request.
func (s *Session) Submit(ctx context.Context, changes []Change, intent string) (*SubmitResult, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	req := &protocol.SubmitRequest{
		SessionID:   id,
		Intent:      intent,
		Changes:     make([]*protocol.Change, 0, len(changes)),
		ChangesetID: s.ChangesetID(),
	}
	for _, c := range changes {
		req.Changes = append(req.Changes, c.toProto())
	}
	s.logger.Debug("dkod submit", "session_id", id, "changes", len(changes))
	resp, err := s.rpc.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	result := submitResultFromProto(resp)
	if result.ChangesetID != "" {
		s.mu.Lock()
		s.changesetID = result.ChangesetID
		s.mu.Unlock()
	}
	return result, nil
}

func (s *Session) Status(ctx context.Context) (*SessionStatus, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	resp, err := s.rpc.GetSessionStatus(ctx, &protocol.SessionStatusRequest{SessionID: id})
	if err != nil {
		return nil, err
	}
	return sessionStatusFromProto(resp), nil
}

// FileList lists files visible to the session.
func (s *Session) FileList(ctx context.Context, q FileListQuery) ([]FileEntry, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	req := &protocol.FileListRequest{SessionID: id, OnlyModified: q.OnlyModified}
	if q.Prefix != "" {
		prefix := q.Prefix
		req.Prefix = &prefix
	}
	resp, err := s.rpc.FileList(ctx, req)
	if err != nil {
		return nil, err
	}
	files := make([]FileEntry, 0, len(resp.Files))
	for _, f := range resp.Files {
		if f != nil {
			files = append(files, FileEntry{Path: f.Path, ModifiedInSession: f.ModifiedInSession})
		}
	}
	return files, nil
}

// Verify runs the server's verification pipeline for the current changeset
// and collects every step it streams back.
func (s *Session) Verify(ctx context.Context) ([]VerifyStep, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	stream, err := s.rpc.Verify(ctx, &protocol.VerifyRequest{SessionID: id, ChangesetID: s.ChangesetID()})
	if err != nil {
		return nil, err
	}
	var steps []VerifyStep
	for {
		step, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return steps, err
		}
		s.logger.Debug("dkod verify step", "session_id", id, "step", step.StepName, "status", step.Status)
		steps = append(steps, VerifyStep{
			Order:    step.StepOrder,
			Name:     step.StepName,
			Status:   step.Status,
			Output:   step.Output,
			Required: step.Required,
		})
	}
	return steps, nil
}

// Merge merges the verified changeset into the codebase.
func (s *Session) Merge(ctx context.Context, message string) (*MergeResult, error) {
	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	resp, err := s.rpc.Merge(ctx, &protocol.MergeRequest{
		SessionID:     id,
		ChangesetID:   s.ChangesetID(),
		CommitMessage: message,
	})
	if err != nil {
		return nil, err
	}
	return mergeResultFromProto(resp), nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) sessionID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	return s.id, nil
}
