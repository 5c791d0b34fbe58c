package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxpoll/internal/server"
)

// StatusURI identifies the poll status resource.
const StatusURI = "inboxpoll://status"

// RegisterStatusResource registers the poll status resource backed by h.
func RegisterStatusResource(s *mcpserver.MCPServer, h *server.HealthChecker) error {
	if h == nil {
		return fmt.Errorf("health checker is required")
	}

	statusResource := mcp.NewResource(
		StatusURI,
		"Poll Status",
		mcp.WithResourceDescription("Poll cycles run, messages delivered and time of the last poll"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(statusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleStatus(ctx, request, h)
	})
	return nil
}

func handleStatus(_ context.Context, request mcp.ReadResourceRequest, h *server.HealthChecker) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(h.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
