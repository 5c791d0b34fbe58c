// Package poller retrieves unread mail and marks it read.
//
// A Poller runs a single cycle: search for unread messages (optionally from
// one sender), fetch each one, and mark it read. Deduplication across cycles
// relies entirely on the provider's unread flag, so Poll is not idempotent:
// a second call does not return the messages of the first.
//
// Error policy:
//   - search failure: logged, empty result (fail open)
//   - fetch failure: logged, message skipped and left unread
//   - mark-read failure: logged, message still returned
//
// An Agent wraps a Poller in a loop that waits a fixed interval between
// cycles and stops when its context is cancelled:
//
//	agent, err := poller.NewAgent(p, "alerts@example.com", time.Minute)
//	if err != nil {
//	    return err
//	}
//	err = agent.Run(ctx) // errors.Is(err, context.Canceled) after shutdown
package poller
