package gmail_tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxpoll/internal/chat"
	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/server"
	"github.com/teemow/inboxpoll/internal/tools/batch"
	"github.com/teemow/inboxpoll/internal/tools/common"
)

// PollSendersToolName polls several senders in one call.
const PollSendersToolName = "gmail_poll_senders"

// RegisterGmailTools registers the polling tools with the MCP server.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	pollTool := mcp.NewTool(chat.PollToolName,
		mcp.WithDescription("Poll Gmail for unread messages, optionally filtered by sender. "+
			"Returned messages are marked read and will not be returned again."),
		mcp.WithString("sender",
			mcp.Description("Only return unread emails from this address."),
		),
	)

	s.AddTool(pollTool, common.InstrumentedToolHandler(chat.PollToolName, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handlePoll(ctx, request, sc)
		}))

	pollSendersTool := mcp.NewTool(PollSendersToolName,
		mcp.WithDescription("Poll Gmail for unread messages from each of several senders. "+
			"Runs one poll per sender and groups the results by sender."),
		mcp.WithArray("senders",
			mcp.Required(),
			mcp.Description("Sender address (string) or array of sender addresses"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)

	s.AddTool(pollSendersTool, common.InstrumentedToolHandler(PollSendersToolName, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handlePollSenders(ctx, request, sc)
		}))

	return nil
}

func handlePoll(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	sender := ""
	if v, ok := args["sender"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError("sender must be a string"), nil
		}
		sender = strings.TrimSpace(s)
	}

	messages := sc.Poller().Poll(ctx, sender)
	sc.Logger().Info("poll tool delivered messages", logging.Sender(sender), logging.Count(len(messages)))

	payload, err := chat.EncodeMessages(messages)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to encode messages", err), nil
	}
	return mcp.NewToolResultText(payload), nil
}

func handlePollSenders(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	senders, err := batch.ParseStringOrArray(args["senders"], "senders")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	br := batch.PollEach(ctx, sc.Poller(), senders)
	sc.Logger().Info("batch poll tool delivered messages",
		logging.Count(br.Total), "senders", br.Senders)

	out, err := batch.FormatResults(br)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to format results", err), nil
	}
	return mcp.NewToolResultText(out), nil
}
