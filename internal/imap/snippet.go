package imap

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// snippetLength matches the length of the preview Gmail returns.
const snippetLength = 200

// maxPartSize bounds how much of one text part is read.
const maxPartSize = 64 << 10

// Snippet returns a short single-line preview of a raw RFC 5322 message:
// the start of the first text/plain part, or the subject when the message
// has no plain text.
func Snippet(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	defer mr.Close()

	subject, _ := mr.Header.Subject()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "" && !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, err := io.ReadAll(io.LimitReader(part.Body, maxPartSize))
		if err != nil {
			continue
		}
		if text := collapse(string(body)); text != "" {
			return truncate(text, snippetLength)
		}
	}

	return truncate(collapse(subject), snippetLength)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
