package call

import "fmt"

// NegotiationError reports a failed description or candidate step for
// one peer link. The link stays in Negotiating; no retry or
// renegotiation is attempted.
type NegotiationError struct {
	Op   string
	Peer string
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
