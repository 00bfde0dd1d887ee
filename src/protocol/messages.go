// Package protocol holds the wire messages of the dekode.v1 AgentService and
// a gRPC client/server binding for them. Messages travel in the protobuf
// binary format using the agent.proto field numbers. A JSON codec using the
// proto field names and enum value names is kept for local test servers.
package protocol

// Change types accepted by Submit.
const (
	ChangeTypeModifyFunction = "MODIFY_FUNCTION"
	ChangeTypeAddFunction    = "ADD_FUNCTION"
	ChangeTypeDeleteFunction = "DELETE_FUNCTION"
	ChangeTypeModifyType     = "MODIFY_TYPE"
	ChangeTypeAddType        = "ADD_TYPE"
	ChangeTypeAddDependency  = "ADD_DEPENDENCY"
)

// Context depths.
const (
	DepthSignatures = "SIGNATURES"
	DepthFull       = "FULL"
	DepthCallGraph  = "CALL_GRAPH"
)

// Submit statuses.
const (
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
	StatusConflict = "CONFLICT"
)

type ConnectRequest struct {
	AgentID   string `json:"agent_id" wire:"1"`
	AuthToken string `json:"auth_token" wire:"2"`
	Codebase  string `json:"codebase" wire:"3"`
	Intent    string `json:"intent" wire:"4"`
}

type CodebaseSummary struct {
	Languages    []string `json:"languages" wire:"1"`
	TotalSymbols uint64   `json:"total_symbols" wire:"2"`
	TotalFiles   uint64   `json:"total_files" wire:"3"`
}

type ConnectResponse struct {
	SessionID       string           `json:"session_id" wire:"1"`
	CodebaseVersion string           `json:"codebase_version" wire:"2"`
	Summary         *CodebaseSummary `json:"summary,omitempty" wire:"3"`
	ChangesetID     string           `json:"changeset_id" wire:"4"`
}

type ContextRequest struct {
	SessionID           string `json:"session_id" wire:"1"`
	Query               string `json:"query" wire:"2"`
	Depth               string `json:"depth" wire:"3,enum=ContextDepth"`
	IncludeTests        bool   `json:"include_tests" wire:"4"`
	IncludeDependencies bool   `json:"include_dependencies" wire:"5"`
	MaxTokens           uint32 `json:"max_tokens" wire:"6"`
}

type SymbolRef struct {
	ID            string  `json:"id" wire:"1"`
	Name          string  `json:"name" wire:"2"`
	QualifiedName string  `json:"qualified_name" wire:"3"`
	Kind          string  `json:"kind" wire:"4"`
	Visibility    string  `json:"visibility" wire:"5"`
	FilePath      string  `json:"file_path" wire:"6"`
	StartByte     uint32  `json:"start_byte" wire:"7"`
	EndByte       uint32  `json:"end_byte" wire:"8"`
	Signature     string  `json:"signature" wire:"9"`
	DocComment    *string `json:"doc_comment,omitempty" wire:"10"`
	ParentID      *string `json:"parent_id,omitempty" wire:"11"`
}

type SymbolResult struct {
	Symbol    *SymbolRef `json:"symbol" wire:"1"`
	Source    *string    `json:"source,omitempty" wire:"2"`
	CallerIDs []string   `json:"caller_ids" wire:"3"`
	CalleeIDs []string   `json:"callee_ids" wire:"4"`
}

type CallEdgeRef struct {
	CallerID string `json:"caller_id" wire:"1"`
	CalleeID string `json:"callee_id" wire:"2"`
	Kind     string `json:"kind" wire:"3"`
}

type DependencyRef struct {
	Package         string   `json:"package" wire:"1"`
	VersionReq      string   `json:"version_req" wire:"2"`
	UsedBySymbolIDs []string `json:"used_by_symbol_ids" wire:"3"`
}

type ContextResponse struct {
	Symbols         []*SymbolResult  `json:"symbols" wire:"1"`
	CallGraph       []*CallEdgeRef   `json:"call_graph" wire:"2"`
	Dependencies    []*DependencyRef `json:"dependencies" wire:"3"`
	EstimatedTokens uint32           `json:"estimated_tokens" wire:"4"`
}

type Change struct {
	Type        string  `json:"type" wire:"1,enum=ChangeType"`
	SymbolName  string  `json:"symbol_name" wire:"2"`
	FilePath    string  `json:"file_path" wire:"3"`
	OldSymbolID *string `json:"old_symbol_id,omitempty" wire:"4"`
	NewSource   string  `json:"new_source" wire:"5"`
	Rationale   string  `json:"rationale" wire:"6"`
}

type SubmitRequest struct {
	SessionID   string    `json:"session_id" wire:"1"`
	Intent      string    `json:"intent" wire:"2"`
	Changes     []*Change `json:"changes" wire:"3"`
	ChangesetID string    `json:"changeset_id,omitempty" wire:"4"`
}

type SubmitError struct {
	Message  string  `json:"message" wire:"1"`
	SymbolID *string `json:"symbol_id,omitempty" wire:"2"`
	FilePath *string `json:"file_path,omitempty" wire:"3"`
}

type SubmitResponse struct {
	Status      string         `json:"status" wire:"1,enum=SubmitStatus"`
	ChangesetID string         `json:"changeset_id" wire:"2"`
	NewVersion  *string        `json:"new_version,omitempty" wire:"3"`
	Errors      []*SubmitError `json:"errors" wire:"4"`
}

type FileReadRequest struct {
	SessionID string `json:"session_id" wire:"1"`
	Path      string `json:"path" wire:"2"`
}

type FileReadResponse struct {
	Content           []byte `json:"content" wire:"1"`
	Hash              string `json:"hash" wire:"2"`
	ModifiedInSession bool   `json:"modified_in_session" wire:"3"`
}

type FileWriteRequest struct {
	SessionID string `json:"session_id" wire:"1"`
	Path      string `json:"path" wire:"2"`
	Content   []byte `json:"content" wire:"3"`
}

type SymbolChange struct {
	SymbolName string `json:"symbol_name" wire:"1"`
	ChangeType string `json:"change_type" wire:"2"`
}

type FileWriteResponse struct {
	NewHash         string          `json:"new_hash" wire:"1"`
	DetectedChanges []*SymbolChange `json:"detected_changes" wire:"2"`
}

type SessionStatusRequest struct {
	SessionID string `json:"session_id" wire:"1"`
}

type SessionStatusResponse struct {
	SessionID           string   `json:"session_id" wire:"1"`
	BaseCommit          string   `json:"base_commit" wire:"2"`
	FilesModified       []string `json:"files_modified" wire:"3"`
	SymbolsModified     []string `json:"symbols_modified" wire:"4"`
	OverlaySizeBytes    uint64   `json:"overlay_size_bytes" wire:"5"`
	ActiveOtherSessions uint32   `json:"active_other_sessions" wire:"6"`
}

type FileListRequest struct {
	SessionID    string  `json:"session_id" wire:"1"`
	Prefix       *string `json:"prefix,omitempty" wire:"2"`
	OnlyModified bool    `json:"only_modified" wire:"3"`
}

type FileEntry struct {
	Path              string `json:"path" wire:"1"`
	ModifiedInSession bool   `json:"modified_in_session" wire:"2"`
}

type FileListResponse struct {
	Files []*FileEntry `json:"files" wire:"1"`
}

type VerifyRequest struct {
	SessionID   string `json:"session_id" wire:"1"`
	ChangesetID string `json:"changeset_id" wire:"2"`
}

type VerifyStepResult struct {
	StepOrder int32  `json:"step_order" wire:"1"`
	StepName  string `json:"step_name" wire:"2"`
	Status    string `json:"status" wire:"3"`
	Output    string `json:"output" wire:"4"`
	Required  bool   `json:"required" wire:"5"`
}

type MergeRequest struct {
	SessionID     string `json:"session_id" wire:"1"`
	ChangesetID   string `json:"changeset_id" wire:"2"`
	CommitMessage string `json:"commit_message" wire:"3"`
}

type ConflictInfo struct {
	FilePath         string `json:"file_path" wire:"1"`
	SymbolName       string `json:"symbol_name" wire:"2"`
	ConflictType     string `json:"conflict_type" wire:"3"`
	OtherAgentID     string `json:"other_agent_id" wire:"4"`
	OtherChangesetID string `json:"other_changeset_id" wire:"5"`
	Description      string `json:"description" wire:"6"`
}

type MergeResponse struct {
	CommitHash       string          `json:"commit_hash" wire:"1"`
	MergedVersion    string          `json:"merged_version" wire:"2"`
	Conflicts        []*ConflictInfo `json:"conflicts" wire:"3"`
	AutoRebased      bool            `json:"auto_rebased" wire:"4"`
	AutoRebasedFiles []string        `json:"auto_rebased_files" wire:"5"`
}
