// Package batch polls several senders in one tool call.
//
// ParseStringOrArray accepts a tool argument given either as one string or as
// an array, PollEach runs one poll cycle per sender and FormatResults renders
// the per-sender results for the caller.
package batch
