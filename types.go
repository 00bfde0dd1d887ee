package dkod

import (
	"strings"
	"unicode/utf8"

	"github.com/dkod-io/agent-sdk-go/src/protocol"
)

// ChangeType names the kind of code change an agent submits.
type ChangeType string

const (
	ChangeModifyFunction ChangeType = protocol.ChangeTypeModifyFunction
	ChangeAddFunction    ChangeType = protocol.ChangeTypeAddFunction
	ChangeDeleteFunction ChangeType = protocol.ChangeTypeDeleteFunction
	ChangeModifyType     ChangeType = protocol.ChangeTypeModifyType
	ChangeAddType        ChangeType = protocol.ChangeTypeAddType
	ChangeAddDependency  ChangeType = protocol.ChangeTypeAddDependency
)

// ChangeTypes lists every ChangeType in declaration order.
var ChangeTypes = []ChangeType{
	ChangeModifyFunction,
	ChangeAddFunction,
	ChangeDeleteFunction,
	ChangeModifyType,
	ChangeAddType,
	ChangeAddDependency,
}

func (c ChangeType) Valid() bool {
	for _, known := range ChangeTypes {
		if c == known {
			return true
		}
	}
	return false
}

// ContextDepth controls how much detail a context query returns.
type ContextDepth string

const (
	DepthSignatures ContextDepth = protocol.DepthSignatures
	DepthFull       ContextDepth = protocol.DepthFull
	DepthCallGraph  ContextDepth = protocol.DepthCallGraph
)

// ContextDepths lists every ContextDepth in declaration order.
var ContextDepths = []ContextDepth{DepthSignatures, DepthFull, DepthCallGraph}

func (d ContextDepth) Valid() bool {
	for _, known := range ContextDepths {
		if d == known {
			return true
		}
	}
	return false
}

// SubmitStatus is the server's verdict on a submitted changeset.
type SubmitStatus string

const (
	StatusAccepted SubmitStatus = protocol.StatusAccepted
	StatusRejected SubmitStatus = protocol.StatusRejected
	StatusConflict SubmitStatus = protocol.StatusConflict
)

// ParseChangeType matches raw exactly against the known change types.
// "modify_function" and " MODIFY_FUNCTION" are both rejected.
func ParseChangeType(raw string) (ChangeType, bool) {
	c := ChangeType(raw)
	return c, c.Valid()
}

// ParseContextDepth matches raw exactly against the known depths.
func ParseContextDepth(raw string) (ContextDepth, bool) {
	d := ContextDepth(raw)
	return d, d.Valid()
}

// DefaultMaxTokens is the token budget used when a context query sets none.
const DefaultMaxTokens = 8000

type CodebaseSummary struct {
	Languages    []string `json:"languages"`
	TotalSymbols uint64   `json:"total_symbols"`
	TotalFiles   uint64   `json:"total_files"`
}

// ConnectResult is the outcome of the CONNECT handshake.
type ConnectResult struct {
	SessionID       string          `json:"session_id"`
	ChangesetID     string          `json:"changeset_id"`
	CodebaseVersion string          `json:"codebase_version"`
	Summary         CodebaseSummary `json:"summary"`
}

// Symbol is a code symbol with its optional source and call edges.
type Symbol struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	QualifiedName string   `json:"qualified_name"`
	Kind          string   `json:"kind"`
	Visibility    string   `json:"visibility"`
	FilePath      string   `json:"file_path"`
	StartByte     uint32   `json:"start_byte"`
	EndByte       uint32   `json:"end_byte"`
	Signature     string   `json:"signature"`
	DocComment    *string  `json:"doc_comment"`
	ParentID      *string  `json:"parent_id"`
	Source        *string  `json:"source"`
	CallerIDs     []string `json:"caller_ids"`
	CalleeIDs     []string `json:"callee_ids"`
}

type CallEdge struct {
	CallerID string `json:"caller_id"`
	CalleeID string `json:"callee_id"`
	Kind     string `json:"kind"`
}

type Dependency struct {
	Package         string   `json:"package"`
	VersionReq      string   `json:"version_req"`
	UsedBySymbolIDs []string `json:"used_by_symbol_ids"`
}

// ContextQuery is the input of Session.Context. Zero Depth and MaxTokens take
// the defaults (FULL, DefaultMaxTokens).
type ContextQuery struct {
	Query               string
	Depth               ContextDepth
	IncludeTests        bool
	IncludeDependencies bool
	MaxTokens           int
}

type ContextResult struct {
	Symbols         []Symbol     `json:"symbols"`
	CallGraph       []CallEdge   `json:"call_graph"`
	Dependencies    []Dependency `json:"dependencies"`
	EstimatedTokens uint32       `json:"estimated_tokens"`
}

// Change is one code change inside a submitted changeset.
type Change struct {
	Type        ChangeType `json:"type"`
	SymbolName  string     `json:"symbol_name"`
	FilePath    string     `json:"file_path"`
	NewSource   string     `json:"new_source"`
	Rationale   string     `json:"rationale"`
	OldSymbolID *string    `json:"old_symbol_id,omitempty"`
}

type SubmitError struct {
	Message  string  `json:"message"`
	SymbolID *string `json:"symbol_id"`
	FilePath *string `json:"file_path"`
}

type SubmitResult struct {
	Status      SubmitStatus  `json:"status"`
	ChangesetID string        `json:"changeset_id"`
	NewVersion  *string       `json:"new_version"`
	Errors      []SubmitError `json:"errors"`
}

type FileReadResult struct {
	Content           string `json:"content"`
	Hash              string `json:"hash"`
	ModifiedInSession bool   `json:"modified_in_session"`
}

type DetectedChange struct {
	SymbolName string `json:"symbol_name"`
	ChangeType string `json:"change_type"`
}

type FileWriteResult struct {
	NewHash         string           `json:"new_hash"`
	DetectedChanges []DetectedChange `json:"detected_changes"`
}

// SessionStatus describes the session workspace overlay.
type SessionStatus struct {
	SessionID           string   `json:"session_id"`
	BaseCommit          string   `json:"base_commit"`
	FilesModified       []string `json:"files_modified"`
	SymbolsModified     []string `json:"symbols_modified"`
	OverlaySizeBytes    uint64   `json:"overlay_size_bytes"`
	ActiveOtherSessions uint32   `json:"active_other_sessions"`
}

// FileListQuery filters Session.FileList. An empty Prefix lists everything.
type FileListQuery struct {
	OnlyModified bool
	Prefix       string
}

type FileEntry struct {
	Path              string `json:"path"`
	ModifiedInSession bool   `json:"modified_in_session"`
}

type VerifyStep struct {
	Order    int32  `json:"step_order"`
	Name     string `json:"step_name"`
	Status   string `json:"status"`
	Output   string `json:"output"`
	Required bool   `json:"required"`
}

type ConflictInfo struct {
	FilePath         string `json:"file_path"`
	SymbolName       string `json:"symbol_name"`
	ConflictType     string `json:"conflict_type"`
	OtherAgentID     string `json:"other_agent_id"`
	OtherChangesetID string `json:"other_changeset_id"`
	Description      string `json:"description"`
}

type MergeResult struct {
	CommitHash       string         `json:"commit_hash"`
	MergedVersion    string         `json:"merged_version"`
	Conflicts        []ConflictInfo `json:"conflicts"`
	AutoRebased      bool           `json:"auto_rebased"`
	AutoRebasedFiles []string       `json:"auto_rebased_files"`
}

func summaryFromProto(pb *protocol.CodebaseSummary) CodebaseSummary {
	if pb == nil {
		return CodebaseSummary{Languages: []string{}}
	}
	return CodebaseSummary{
		Languages:    nonNil(pb.Languages),
		TotalSymbols: pb.TotalSymbols,
		TotalFiles:   pb.TotalFiles,
	}
}

func connectResultFromProto(pb *protocol.ConnectResponse) *ConnectResult {
	return &ConnectResult{
		SessionID:       pb.SessionID,
		ChangesetID:     pb.ChangesetID,
		CodebaseVersion: pb.CodebaseVersion,
		Summary:         summaryFromProto(pb.Summary),
	}
}

func symbolFromProto(pb *protocol.SymbolResult) Symbol {
	var ref protocol.SymbolRef
	if pb.Symbol != nil {
		ref = *pb.Symbol
	}
	return Symbol{
		ID:            ref.ID,
		Name:          ref.Name,
		QualifiedName: ref.QualifiedName,
		Kind:          ref.Kind,
		Visibility:    ref.Visibility,
		FilePath:      ref.FilePath,
		StartByte:     ref.StartByte,
		EndByte:       ref.EndByte,
		Signature:     ref.Signature,
		DocComment:    ref.DocComment,
		ParentID:      ref.ParentID,
		Source:        pb.Source,
		CallerIDs:     nonNil(pb.CallerIDs),
		CalleeIDs:     nonNil(pb.CalleeIDs),
	}
}

func contextResultFromProto(pb *protocol.ContextResponse) *ContextResult {
	out := &ContextResult{
		Symbols:         make([]Symbol, 0, len(pb.Symbols)),
		CallGraph:       make([]CallEdge, 0, len(pb.CallGraph)),
		Dependencies:    make([]Dependency, 0, len(pb.Dependencies)),
		EstimatedTokens: pb.EstimatedTokens,
	}
	for _, s := range pb.Symbols {
		if s != nil {
			out.Symbols = append(out.Symbols, symbolFromProto(s))
		}
	}
	for _, e := range pb.CallGraph {
		if e != nil {
			out.CallGraph = append(out.CallGraph, CallEdge{CallerID: e.CallerID, CalleeID: e.CalleeID, Kind: e.Kind})
		}
	}
	for _, d := range pb.Dependencies {
		if d != nil {
			out.Dependencies = append(out.Dependencies, Dependency{
				Package:         d.Package,
				VersionReq:      d.VersionReq,
				UsedBySymbolIDs: nonNil(d.UsedBySymbolIDs),
			})
		}
	}
	return out
}

func (c Change) toProto() *protocol.Change {
	return &protocol.Change{
		Type:        string(c.Type),
		SymbolName:  c.SymbolName,
		FilePath:    c.FilePath,
		OldSymbolID: c.OldSymbolID,
		NewSource:   c.NewSource,
		Rationale:   c.Rationale,
	}
}

func submitResultFromProto(pb *protocol.SubmitResponse) *SubmitResult {
	out := &SubmitResult{
		Status:      SubmitStatus(pb.Status),
		ChangesetID: pb.ChangesetID,
		NewVersion:  pb.NewVersion,
		Errors:      make([]SubmitError, 0, len(pb.Errors)),
	}
	for _, e := range pb.Errors {
		if e != nil {
			out.Errors = append(out.Errors, SubmitError{Message: e.Message, SymbolID: e.SymbolID, FilePath: e.FilePath})
		}
	}
	return out
}

func fileReadResultFromProto(pb *protocol.FileReadResponse) *FileReadResult {
	return &FileReadResult{
		Content:           decodeUTF8(pb.Content),
		Hash:              pb.Hash,
		ModifiedInSession: pb.ModifiedInSession,
	}
}

func fileWriteResultFromProto(pb *protocol.FileWriteResponse) *FileWriteResult {
	out := &FileWriteResult{
		NewHash:         pb.NewHash,
		DetectedChanges: make([]DetectedChange, 0, len(pb.DetectedChanges)),
	}
	for _, c := range pb.DetectedChanges {
		if c != nil {
			out.DetectedChanges = append(out.DetectedChanges, DetectedChange{SymbolName: c.SymbolName, ChangeType: c.ChangeType})
		}
	}
	return out
}

func sessionStatusFromProto(pb *protocol.SessionStatusResponse) *SessionStatus {
	return &SessionStatus{
		SessionID:           pb.SessionID,
		BaseCommit:          pb.BaseCommit,
		FilesModified:       nonNil(pb.FilesModified),
		SymbolsModified:     nonNil(pb.SymbolsModified),
		OverlaySizeBytes:    pb.OverlaySizeBytes,
		ActiveOtherSessions: pb.ActiveOtherSessions,
	}
}

func mergeResultFromProto(pb *protocol.MergeResponse) *MergeResult {
	out := &MergeResult{
		CommitHash:       pb.CommitHash,
		MergedVersion:    pb.MergedVersion,
		Conflicts:        make([]ConflictInfo, 0, len(pb.Conflicts)),
		AutoRebased:      pb.AutoRebased,
		AutoRebasedFiles: nonNil(pb.AutoRebasedFiles),
	}
	for _, c := range pb.Conflicts {
		if c != nil {
			out.Conflicts = append(out.Conflicts, ConflictInfo(*c))
		}
	}
	return out
}

// decodeUTF8 turns file bytes into text, replacing invalid sequences with U+FFFD.
func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

// nonNil keeps empty lists serialising as [] rather than null.
func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
