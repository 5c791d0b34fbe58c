// Package chat implements a console assistant that can poll the mailbox on
// request.
//
// An Agent keeps the conversation history and exposes a single tool,
// gmail_poll, to a chat completion backend (Completer). When the model calls
// the tool, the agent runs one poll cycle, appends the result as a tool turn
// and asks the model once more, without tools, for the final answer:
//
//	user -> model (tools offered) -> [tool calls -> poll -> model (no tools)] -> reply
//
// OpenAI implements Completer on top of the OpenAI chat completions API.
package chat
