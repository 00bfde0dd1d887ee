package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestMarshalContextRequestFieldNumbers(t *testing.T) {
	data, err := MarshalWire(&ContextRequest{
		SessionID: "s",
		Query:     "q",
		Depth:     DepthCallGraph,
		MaxTokens: 4000,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x0a, 0x01, 's', // session_id = 1
		0x12, 0x01, 'q', // query = 2
		0x18, 0x02, // depth = 3, CALL_GRAPH
		0x30, 0xa0, 0x1f, // max_tokens = 6
	}, data)
}

func TestMarshalOmitsZeroEnumAndScalars(t *testing.T) {
	data, err := MarshalWire(&ContextRequest{Depth: DepthSignatures})
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = MarshalWire(&ContextRequest{Depth: DepthFull, IncludeTests: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x18, 0x01, 0x20, 0x01}, data)
}

func TestMarshalWritesSetOptionalString(t *testing.T) {
	empty := ""
	data, err := MarshalWire(&Change{Type: ChangeTypeAddType, OldSymbolID: &empty})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x04, 0x22, 0x00}, data)

	var got Change
	require.NoError(t, UnmarshalWire(data, &got))
	require.NotNil(t, got.OldSymbolID)
	assert.Equal(t, "", *got.OldSymbolID)
	assert.Equal(t, ChangeTypeAddType, got.Type)
}

func TestMarshalRejectsUnknownEnumName(t *testing.T) {
	_, err := MarshalWire(&Change{Type: "modify_function"})
	assert.ErrorContains(t, err, "modify_function")
}

func TestUnmarshalAbsentEnumIsFirstMember(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "cs-1")

	var resp SubmitResponse
	require.NoError(t, UnmarshalWire(b, &resp))
	assert.Equal(t, StatusAccepted, resp.Status)
	assert.Equal(t, "cs-1", resp.ChangesetID)
	assert.Nil(t, resp.NewVersion)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "sess")
	b = protowire.AppendTag(b, 5, protowire.BytesType) // workspace_id
	b = protowire.AppendString(b, "ws-1")
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, 3)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, "cs-9")

	var resp ConnectResponse
	require.NoError(t, UnmarshalWire(b, &resp))
	assert.Equal(t, "sess", resp.SessionID)
	assert.Equal(t, "cs-9", resp.ChangesetID)
	assert.Nil(t, resp.Summary)
}

func TestUnmarshalTruncatedInput(t *testing.T) {
	var req ContextRequest
	assert.Error(t, UnmarshalWire([]byte{0x0a, 0x05, 'a'}, &req))
}

func TestContextResponseSurvivesCodec(t *testing.T) {
	source := "fn a() {}"
	doc := "Parses."
	in := &ContextResponse{
		Symbols: []*SymbolResult{{
			Symbol: &SymbolRef{
				ID:         "sym-1",
				Name:       "a",
				StartByte:  3,
				EndByte:    300,
				DocComment: &doc,
			},
			Source:    &source,
			CalleeIDs: []string{"sym-2", "sym-3"},
		}},
		CallGraph:       []*CallEdgeRef{{CallerID: "sym-1", CalleeID: "sym-2", Kind: "direct"}},
		EstimatedTokens: 12,
	}
	data, err := Codec.Marshal(in)
	require.NoError(t, err)

	var out ContextResponse
	require.NoError(t, Codec.Unmarshal(data, &out))
	require.Len(t, out.Symbols, 1)
	sym := out.Symbols[0]
	assert.Equal(t, "sym-1", sym.Symbol.ID)
	assert.EqualValues(t, 300, sym.Symbol.EndByte)
	assert.Equal(t, &doc, sym.Symbol.DocComment)
	assert.Nil(t, sym.Symbol.ParentID)
	assert.Equal(t, &source, sym.Source)
	assert.Equal(t, []string{"sym-2", "sym-3"}, sym.CalleeIDs)
	assert.Equal(t, "direct", out.CallGraph[0].Kind)
	assert.EqualValues(t, 12, out.EstimatedTokens)
}

func TestFileBytesAndNegativeInt32(t *testing.T) {
	data, err := Codec.Marshal(&VerifyStepResult{StepOrder: -1, StepName: "lint"})
	require.NoError(t, err)
	var step VerifyStepResult
	require.NoError(t, Codec.Unmarshal(data, &step))
	assert.EqualValues(t, -1, step.StepOrder)

	data, err = Codec.Marshal(&FileReadResponse{Content: []byte{0, 1, 2}, ModifiedInSession: true})
	require.NoError(t, err)
	var file FileReadResponse
	require.NoError(t, Codec.Unmarshal(data, &file))
	assert.Equal(t, []byte{0, 1, 2}, file.Content)
	assert.True(t, file.ModifiedInSession)
}

func TestCodecNames(t *testing.T) {
	assert.Equal(t, "proto", Codec.Name())
	assert.Equal(t, "json", JSONCodec.Name())
	_, err := Codec.Marshal(ContextRequest{})
	assert.Error(t, err, "messages travel as pointers")
}
