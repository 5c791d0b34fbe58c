package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teemow/inboxpoll/internal/mail"
	"github.com/teemow/inboxpoll/internal/poller"
)

// Result holds the messages delivered for one sender.
type Result struct {
	Sender   string         `json:"sender"`
	Count    int            `json:"count"`
	Messages []mail.Message `json:"messages"`
}

// BatchResult aggregates the results of polling several senders.
type BatchResult struct {
	Senders int      `json:"senders"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// ParseStringOrArray parses a parameter that can be either a single string or
// an array of strings. Values are trimmed; repeated values are dropped, keeping
// the first occurrence. Comparison ignores case since mail addresses do.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var raw []string
	switch v := param.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			raw = append(raw, str)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}

	seen := make(map[string]bool, len(raw))
	result := make([]string, 0, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			if len(raw) == 1 {
				return nil, fmt.Errorf("%s cannot be empty", paramName)
			}
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, s)
	}
	return result, nil
}

// PollEach runs one poll cycle per sender, in order.
func PollEach(ctx context.Context, p poller.Pollable, senders []string) BatchResult {
	br := BatchResult{
		Senders: len(senders),
		Results: make([]Result, 0, len(senders)),
	}
	for _, sender := range senders {
		messages := p.Poll(ctx, sender)
		if messages == nil {
			messages = []mail.Message{}
		}
		br.Results = append(br.Results, Result{
			Sender:   sender,
			Count:    len(messages),
			Messages: messages,
		})
		br.Total += len(messages)
	}
	return br
}

// FormatResults renders a batch result as indented JSON.
func FormatResults(br BatchResult) (string, error) {
	data, err := json.MarshalIndent(br, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch result: %w", err)
	}
	return string(data), nil
}
