package resources

import (
	"context"
	"encoding/json"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxpoll/internal/mail"
	"github.com/teemow/inboxpoll/internal/server"
)

type stubPoller struct {
	messages []mail.Message
}

func (s stubPoller) Poll(context.Context, string) []mail.Message {
	return s.messages
}

func readStatus(t *testing.T, s *mcpserver.MCPServer) server.DetailedHealthResponse {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "resources/read",
		"params":  map[string]any{"uri": StatusURI},
	})
	require.NoError(t, err)

	out, err := json.Marshal(s.HandleMessage(context.Background(), raw))
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Contents []struct {
				URI      string `json:"uri"`
				MIMEType string `json:"mimeType"`
				Text     string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out, &resp), string(out))
	require.Len(t, resp.Result.Contents, 1, string(out))
	assert.Equal(t, StatusURI, resp.Result.Contents[0].URI)
	assert.Equal(t, "application/json", resp.Result.Contents[0].MIMEType)

	var status server.DetailedHealthResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Contents[0].Text), &status))
	return status
}

func TestStatusResource(t *testing.T) {
	h := server.NewHealthChecker(nil)
	s := mcpserver.NewMCPServer("inboxpoll-test", "test", mcpserver.WithResourceCapabilities(false, false))
	require.NoError(t, RegisterStatusResource(s, h))

	status := readStatus(t, s)
	assert.Equal(t, "ok", status.Status)
	assert.Zero(t, status.Cycles)
	assert.Empty(t, status.LastPoll)

	p := h.Observe(stubPoller{messages: []mail.Message{{ID: "a"}, {ID: "b"}}})
	p.Poll(context.Background(), "")
	p.Poll(context.Background(), "")

	status = readStatus(t, s)
	assert.Equal(t, int64(2), status.Cycles)
	assert.Equal(t, int64(4), status.Delivered)
	assert.NotEmpty(t, status.LastPoll)
}

func TestRegisterStatusResource_NilChecker(t *testing.T) {
	s := mcpserver.NewMCPServer("inboxpoll-test", "test")
	assert.Error(t, RegisterStatusResource(s, nil))
}
