// Package mockserver is an in-process fake of the dekode AgentService. It
// serves a tiny fixed codebase over bufconn (or any listener) and keeps a
// per-server file overlay so writes, status and submits behave plausibly.
package mockserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dkod-io/agent-sdk-go/src/protocol"
)

// Fixture values returned by the fake.
const (
	ValidToken      = "test-token"
	SessionID       = "mock-session-1"
	CodebaseVersion = "abc123"
	NewVersion      = "def456"

	// Target is the dial target for the bufconn listener.
	Target = "passthrough:///bufnet"
)

const bufSize = 1 << 20

var defaultFiles = map[string]string{
	"src/config.rs": "fn parse_config(path: &str) -> Config { todo!() }\n",
	"src/main.rs":   "fn main() {\n    let cfg = parse_config(\"app.toml\");\n}\n",
}

// Server is the fake AgentService.
type Server struct {
	protocol.UnimplementedAgentServiceServer

	token  string
	logger *slog.Logger
	codec  encoding.Codec

	mu          sync.Mutex
	base        map[string][]byte
	overlay     map[string][]byte
	symbols     map[string]struct{}
	submissions []*protocol.SubmitRequest
	submitted   map[string]bool

	grpcServer *grpc.Server
	listener   *bufconn.Listener
}

type Option func(*Server)

// WithToken changes the accepted auth token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithFile adds or replaces a base file.
func WithFile(path, content string) Option {
	return func(s *Server) { s.base[path] = []byte(content) }
}

// WithJSON serves JSON-encoded messages instead of the protobuf binary
// format. Clients must use protocol.JSONCodec.
func WithJSON() Option {
	return func(s *Server) { s.codec = protocol.JSONCodec }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a fake seeded with a small Rust codebase.
func New(opts ...Option) *Server {
	s := &Server{
		token:     ValidToken,
		logger:    slog.Default(),
		codec:     protocol.Codec,
		base:      make(map[string][]byte, len(defaultFiles)),
		overlay:   make(map[string][]byte),
		symbols:   make(map[string]struct{}),
		submitted: make(map[string]bool),
	}
	for path, content := range defaultFiles {
		s.base[path] = []byte(content)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grpcServer = grpc.NewServer(
		grpc.ForceServerCodec(s.codec),
		grpc.ChainUnaryInterceptor(s.logUnary),
	)
	protocol.RegisterAgentServiceServer(s.grpcServer, s)
	return s
}

// Start serves on an in-memory listener. Dial it with Target and DialOption.
func (s *Server) Start() {
	s.listener = bufconn.Listen(bufSize)
	go func() {
		_ = s.Serve(s.listener)
	}()
}

// Serve blocks serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// DialOption connects a gRPC client to the bufconn listener.
func (s *Server) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return s.listener.DialContext(ctx)
	})
}

func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// Submissions returns every Submit request received so far.
func (s *Server) Submissions() []*protocol.SubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*protocol.SubmitRequest, len(s.submissions))
	copy(out, s.submissions)
	return out
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	s.logger.Debug("mockserver rpc", "method", info.FullMethod, "code", status.Code(err).String())
	return resp, err
}

func (s *Server) checkSession(id string) error {
	if id != SessionID {
		return status.Error(codes.NotFound, "session not found")
	}
	return nil
}

func (s *Server) Connect(_ context.Context, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error) {
	if req.AuthToken != s.token {
		return nil, status.Error(codes.Unauthenticated, "invalid auth token")
	}
	// Every connect opens a new changeset; resuming one is up to the client.
	return &protocol.ConnectResponse{
		SessionID:       SessionID,
		ChangesetID:     "cs-" + uuid.NewString(),
		CodebaseVersion: CodebaseVersion,
		Summary: &protocol.CodebaseSummary{
			Languages:    []string{"rust", "python"},
			TotalSymbols: 42,
			TotalFiles:   10,
		},
	}, nil
}

func (s *Server) Context(_ context.Context, req *protocol.ContextRequest) (*protocol.ContextResponse, error) {
	if err := s.checkSession(req.SessionID); err != nil {
		return nil, err
	}
	sym := &protocol.SymbolResult{
		Symbol: &protocol.SymbolRef{
			ID:            "sym-mock-001",
			Name:          "parse_config",
			QualifiedName: "config::parse_config",
			Kind:          "function",
			Visibility:    "public",
			FilePath:      "src/config.rs",
			StartByte:     0,
			EndByte:       120,
			Signature:     "fn parse_config(path: &str) -> Config",
		},
		CallerIDs: []string{},
		CalleeIDs: []string{"sym-mock-002"},
	}
	if req.Depth != protocol.DepthSignatures {
		src := "fn parse_config(path: &str) -> Config { todo!() }"
		sym.Source = &src
	}
	resp := &protocol.ContextResponse{
		Symbols:         []*protocol.SymbolResult{sym},
		CallGraph:       []*protocol.CallEdgeRef{{CallerID: "sym-mock-001", CalleeID: "sym-mock-002", Kind: "direct"}},
		Dependencies:    []*protocol.DependencyRef{},
		EstimatedTokens: 500,
	}
	if req.IncludeDependencies || req.Depth == protocol.DepthFull {
		resp.Dependencies = append(resp.Dependencies, &protocol.DependencyRef{
			Package:         "toml",
			VersionReq:      "^0.5",
			UsedBySymbolIDs: []string{"sym-mock-001"},
		})
	}
	return resp, nil
}

func (s *Server) Submit(_ context.Context, req *protocol.SubmitRequest) (*protocol.SubmitResponse, error) {
	if err := s.checkSession(req.SessionID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, req)

	changeset := req.ChangesetID
	if changeset == "" {
		changeset = "cs-mock-1"
	}
	var errs []*protocol.SubmitError
	for _, c := range req.Changes {
		if c == nil || strings.TrimSpace(c.NewSource) == "" && c.Type != protocol.ChangeTypeDeleteFunction {
			path := ""
			if c != nil {
				path = c.FilePath
			}
			errs = append(errs, &protocol.SubmitError{Message: "change has no new source", FilePath: &path})
		}
	}
	if len(errs) > 0 {
		return &protocol.SubmitResponse{Status: protocol.StatusRejected, ChangesetID: changeset, Errors: errs}, nil
	}
	s.submitted[changeset] = true
	version := NewVersion
	return &protocol.SubmitResponse{
		Status:      protocol.StatusAccepted,
		ChangesetID: changeset,
		NewVersion:  &version,
		Errors:      []*protocol.SubmitError{},
	}, nil
}

func (s *Server) FileRead(_ context.Context, req *protocol.FileReadRequest) (*protocol.FileReadResponse, error) {
	if err := s.checkSession(req.SessionID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if content, ok := s.overlay[req.Path]; ok {
		return &protocol.FileReadResponse{Content: content, Hash: hashOf(content), ModifiedInSession: true}, nil
	}
	content, ok := s.base[req.Path]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "file not found: %s", req.Path)
	}
	return &protocol.FileReadResponse{Content: content, Hash: hashOf(content)}, nil
}

func (s *Server) FileWrite(_ context.Context, req *protocol.FileWriteRequest) (*protocol.FileWriteResponse, error) {
	if err := s.checkSession(req.SessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, status.Error(codes.InvalidArgument, "path is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before := functionNames(s.base[req.Path])
	s.overlay[req.Path] = req.Content

	var detected []*protocol.SymbolChange
	for _, name := range sortedKeys(functionNames(req.Content)) {
		kind := "added"
		if _, ok := before[name]; ok {
			kind = "modified"
		}
		s.symbols[name] = struct{}{}
		detected = append(detected, &protocol.SymbolChange{SymbolName: name, ChangeType: kind})
	}
	return &protocol.FileWriteResponse{NewHash: hashOf(req.Content), DetectedChanges: detected}, nil
}

func (s *Server) FileList(_ context.Context, req *protocol.FileListRequest) (*protocol.FileListResponse, error) {
	if err := s.checkSession(req.SessionID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make(map[string]struct{}, len(s.base)+len(s.overlay))
	for p := range s.base {
		paths[p] = struct{}{}
	}
	for p := range s.overlay {
		paths[p] = struct{}{}
	}
	resp := &protocol.FileListResponse{}
	for _, p := range sortedKeys(paths) {
		_, modified := s.overlay[p]
		if req.OnlyModified && !modified {
			continue
		}
		if req.Prefix != nil && !strings.HasPrefix(p, *req.Prefix) {
			continue
		}
		resp.Files = append(resp.Files, &protocol.FileEntry{Path: p, ModifiedInSession: modified})
	}
	return resp, nil
}

func (s *Server) GetSessionStatus(_ context.Context, req *protocol.SessionStatusRequest) (*protocol.SessionStatusResponse, error) {
	if err := s.checkSession(req.SessionID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var size uint64
	files := make([]string, 0, len(s.overlay))
	for p, content := range s.overlay {
		files = append(files, p)
		size += uint64(len(content))
	}
	sort.Strings(files)
	return &protocol.SessionStatusResponse{
		SessionID:           SessionID,
		BaseCommit:          CodebaseVersion,
		FilesModified:       files,
		SymbolsModified:     sortedKeys(s.symbols),
		OverlaySizeBytes:    size,
		ActiveOtherSessions: 0,
	}, nil
}

func (s *Server) Verify(req *protocol.VerifyRequest, stream protocol.AgentService_VerifyServer) error {
	if err := s.checkSession(req.SessionID); err != nil {
		return err
	}
	s.mu.Lock()
	submitted := s.submitted[req.ChangesetID]
	s.mu.Unlock()
	if !submitted {
		return status.Errorf(codes.FailedPrecondition, "nothing submitted to verify in changeset %q", req.ChangesetID)
	}
	steps := []*protocol.VerifyStepResult{
		{StepOrder: 1, StepName: "typecheck", Status: "PASS", Output: "ok", Required: true},
		{StepOrder: 2, StepName: "affected_tests", Status: "PASS", Output: "3 passed", Required: true},
		{StepOrder: 3, StepName: "lint", Status: "PASS", Output: "", Required: false},
	}
	for _, step := range steps {
		if err := stream.Send(step); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Merge(_ context.Context, req *protocol.MergeRequest) (*protocol.MergeResponse, error) {
	if err := s.checkSession(req.SessionID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.submitted[req.ChangesetID] {
		return nil, status.Errorf(codes.FailedPrecondition, "nothing submitted to merge in changeset %q", req.ChangesetID)
	}
	return &protocol.MergeResponse{
		CommitHash:       hashOf([]byte(req.ChangesetID + "\x00" + req.CommitMessage))[:12],
		MergedVersion:    NewVersion,
		Conflicts:        []*protocol.ConflictInfo{},
		AutoRebasedFiles: []string{},
	}, nil
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// functionNames finds Rust-style "fn name(" declarations.
func functionNames(src []byte) map[string]struct{} {
	out := make(map[string]struct{})
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "pub ")
		rest, ok := strings.CutPrefix(line, "fn ")
		if !ok {
			continue
		}
		name, _, found := strings.Cut(rest, "(")
		if found && name != "" {
			out[strings.TrimSpace(name)] = struct{}{}
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
