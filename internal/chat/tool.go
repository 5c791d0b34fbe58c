package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teemow/inboxpoll/internal/mail"
)

// PollToolName is the name the model uses to request a mailbox poll.
const PollToolName = "gmail_poll"

// PollTool describes the poll operation to the model.
func PollTool() ToolSpec {
	return ToolSpec{
		Name:        PollToolName,
		Description: "Poll Gmail for unread messages, optionally filtered by sender.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sender": map[string]any{
					"type":        "string",
					"description": "Only return unread emails from this address.",
				},
			},
		},
	}
}

type pollArgs struct {
	Sender string `json:"sender"`
}

// parsePollArgs decodes the tool arguments. Empty arguments mean no filter.
func parsePollArgs(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	var args pollArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("invalid %s arguments: %w", PollToolName, err)
	}
	return strings.TrimSpace(args.Sender), nil
}

// EncodeMessages renders a poll result as the JSON array handed back to the
// model, e.g. [{"id":"1","snippet":"..."}]. An empty result is "[]".
func EncodeMessages(messages []mail.Message) (string, error) {
	if messages == nil {
		messages = []mail.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("failed to encode messages: %w", err)
	}
	return string(data), nil
}

// toolError renders a failure as a tool result so the model can explain it.
func toolError(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}
