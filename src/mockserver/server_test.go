package mockserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/dkod-io/agent-sdk-go/src/protocol"
)

func startClient(t *testing.T, opts ...Option) (*Server, protocol.AgentServiceClient) {
	t.Helper()
	return startCodecClient(t, protocol.Codec, opts...)
}

func startCodecClient(t *testing.T, codec encoding.Codec, opts ...Option) (*Server, protocol.AgentServiceClient) {
	t.Helper()
	srv := New(opts...)
	srv.Start()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(Target, srv.DialOption(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, protocol.NewAgentServiceClientWithCodec(conn, codec)
}

func TestConnectRejectsBadToken(t *testing.T) {
	_, client := startClient(t)
	_, err := client.Connect(context.Background(), &protocol.ConnectRequest{AuthToken: "wrong"})
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestConnectReturnsFixture(t *testing.T) {
	_, client := startClient(t)
	resp, err := client.Connect(context.Background(), &protocol.ConnectRequest{AuthToken: ValidToken, Codebase: "org/repo"})
	require.NoError(t, err)
	assert.Equal(t, SessionID, resp.SessionID)
	assert.Equal(t, CodebaseVersion, resp.CodebaseVersion)
	assert.NotEmpty(t, resp.ChangesetID)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, []string{"rust", "python"}, resp.Summary.Languages)
	assert.EqualValues(t, 42, resp.Summary.TotalSymbols)
	assert.EqualValues(t, 10, resp.Summary.TotalFiles)
}

func TestConnectOpensNewChangesetEachTime(t *testing.T) {
	_, client := startClient(t)
	ctx := context.Background()
	first, err := client.Connect(ctx, &protocol.ConnectRequest{AuthToken: ValidToken})
	require.NoError(t, err)
	second, err := client.Connect(ctx, &protocol.ConnectRequest{AuthToken: ValidToken})
	require.NoError(t, err)
	assert.NotEqual(t, first.ChangesetID, second.ChangesetID)
}

func TestJSONCodecServer(t *testing.T) {
	_, client := startCodecClient(t, protocol.JSONCodec, WithJSON())
	resp, err := client.Context(context.Background(), &protocol.ContextRequest{SessionID: SessionID, Query: "parse", Depth: protocol.DepthCallGraph})
	require.NoError(t, err)
	require.Len(t, resp.Symbols, 1)
	assert.Equal(t, "parse_config", resp.Symbols[0].Symbol.Name)
	assert.EqualValues(t, 500, resp.EstimatedTokens)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	_, client := startClient(t)
	_, err := client.Context(context.Background(), &protocol.ContextRequest{SessionID: "other", Query: "x"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestContextSignaturesOmitSource(t *testing.T) {
	_, client := startClient(t)
	ctx := context.Background()

	full, err := client.Context(ctx, &protocol.ContextRequest{SessionID: SessionID, Query: "parse", Depth: protocol.DepthFull})
	require.NoError(t, err)
	require.Len(t, full.Symbols, 1)
	require.NotNil(t, full.Symbols[0].Source)
	assert.Len(t, full.Dependencies, 1)

	sigs, err := client.Context(ctx, &protocol.ContextRequest{SessionID: SessionID, Query: "parse", Depth: protocol.DepthSignatures})
	require.NoError(t, err)
	assert.Nil(t, sigs.Symbols[0].Source)
	assert.Empty(t, sigs.Dependencies)
}

func TestWriteThenReadAndStatus(t *testing.T) {
	_, client := startClient(t)
	ctx := context.Background()

	w, err := client.FileWrite(ctx, &protocol.FileWriteRequest{
		SessionID: SessionID,
		Path:      "src/config.rs",
		Content:   []byte("pub fn parse_config(path: &str) -> Config { load(path) }\nfn load(p: &str) -> Config { todo!() }\n"),
	})
	require.NoError(t, err)
	assert.Len(t, w.NewHash, 64)
	require.Len(t, w.DetectedChanges, 2)
	assert.Equal(t, "load", w.DetectedChanges[0].SymbolName)
	assert.Equal(t, "added", w.DetectedChanges[0].ChangeType)
	assert.Equal(t, "parse_config", w.DetectedChanges[1].SymbolName)
	assert.Equal(t, "modified", w.DetectedChanges[1].ChangeType)

	r, err := client.FileRead(ctx, &protocol.FileReadRequest{SessionID: SessionID, Path: "src/config.rs"})
	require.NoError(t, err)
	assert.True(t, r.ModifiedInSession)
	assert.Equal(t, w.NewHash, r.Hash)

	st, err := client.GetSessionStatus(ctx, &protocol.SessionStatusRequest{SessionID: SessionID})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/config.rs"}, st.FilesModified)
	assert.Equal(t, []string{"load", "parse_config"}, st.SymbolsModified)
	assert.NotZero(t, st.OverlaySizeBytes)

	list, err := client.FileList(ctx, &protocol.FileListRequest{SessionID: SessionID, OnlyModified: true})
	require.NoError(t, err)
	require.Len(t, list.Files, 1)
	assert.Equal(t, "src/config.rs", list.Files[0].Path)
}

func TestFileReadMissing(t *testing.T) {
	_, client := startClient(t)
	_, err := client.FileRead(context.Background(), &protocol.FileReadRequest{SessionID: SessionID, Path: "nope.rs"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestSubmitVerifyMerge(t *testing.T) {
	srv, client := startClient(t)
	ctx := context.Background()

	_, err := client.Merge(ctx, &protocol.MergeRequest{SessionID: SessionID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	resp, err := client.Submit(ctx, &protocol.SubmitRequest{
		SessionID: SessionID,
		Intent:    "fix parsing",
		Changes: []*protocol.Change{{
			Type:       protocol.ChangeTypeModifyFunction,
			SymbolName: "parse_config",
			FilePath:   "src/config.rs",
			NewSource:  "fn parse_config() {}",
			Rationale:  "simplify",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusAccepted, resp.Status)
	assert.Equal(t, "cs-mock-1", resp.ChangesetID)
	require.NotNil(t, resp.NewVersion)
	assert.Equal(t, NewVersion, *resp.NewVersion)
	assert.Len(t, srv.Submissions(), 1)

	stream, err := client.Verify(ctx, &protocol.VerifyRequest{SessionID: SessionID, ChangesetID: resp.ChangesetID})
	require.NoError(t, err)
	var names []string
	for {
		step, err := stream.Recv()
		if err != nil {
			break
		}
		names = append(names, step.StepName)
	}
	assert.Equal(t, []string{"typecheck", "affected_tests", "lint"}, names)

	merged, err := client.Merge(ctx, &protocol.MergeRequest{SessionID: SessionID, ChangesetID: resp.ChangesetID, CommitMessage: "fix"})
	require.NoError(t, err)
	assert.Len(t, merged.CommitHash, 12)
	assert.Equal(t, NewVersion, merged.MergedVersion)
}

func TestVerifyNeedsSubmittedChangeset(t *testing.T) {
	_, client := startClient(t)
	ctx := context.Background()

	_, err := client.Submit(ctx, &protocol.SubmitRequest{
		SessionID:   SessionID,
		ChangesetID: "cs-a",
		Changes:     []*protocol.Change{{Type: protocol.ChangeTypeAddFunction, FilePath: "src/x.rs", NewSource: "fn x() {}"}},
	})
	require.NoError(t, err)

	stream, err := client.Verify(ctx, &protocol.VerifyRequest{SessionID: SessionID, ChangesetID: "cs-b"})
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.Merge(ctx, &protocol.MergeRequest{SessionID: SessionID, ChangesetID: "cs-b"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.Merge(ctx, &protocol.MergeRequest{SessionID: SessionID, ChangesetID: "cs-a"})
	assert.NoError(t, err)
}

func TestSubmitRejectsEmptySource(t *testing.T) {
	_, client := startClient(t)
	resp, err := client.Submit(context.Background(), &protocol.SubmitRequest{
		SessionID: SessionID,
		Changes:   []*protocol.Change{{Type: protocol.ChangeTypeAddFunction, FilePath: "src/x.rs"}},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusRejected, resp.Status)
	require.Len(t, resp.Errors, 1)
	require.NotNil(t, resp.Errors[0].FilePath)
	assert.Equal(t, "src/x.rs", *resp.Errors[0].FilePath)
}
