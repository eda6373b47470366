// internal/types/errors.go
package types

import "fmt"

// NetworkError wraps any failed I/O against the conversation store, the
// file host, or the oracle. Resumable bulk operations catch it and skip;
// single-entity operations propagate it untouched.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedInputError is a parse failure in an import codec. An import
// that raises it produces nothing; there are no partial imports.
type MalformedInputError struct {
	Format string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s input: %s", e.Format, e.Reason)
}

// BrokenChainError reports a dangling parent reference found while
// walking ancestor links.
type BrokenChainError struct {
	Child  MessageID
	Parent MessageID
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("broken chain: message %s references missing parent %s", e.Child, e.Parent)
}

// InvalidTurnError is a precondition violation when projecting a message
// into an oracle request. It should not occur via normal paths and must
// fail loudly rather than coerce.
type InvalidTurnError struct {
	Reason string
}

func (e *InvalidTurnError) Error() string {
	return fmt.Sprintf("invalid turn: %s", e.Reason)
}

// RehomeError wraps an I/O failure while copying a file reference into a
// different conversation scope.
type RehomeError struct {
	FileName string
	Err      error
}

func (e *RehomeError) Error() string {
	return fmt.Sprintf("rehome %s: %v", e.FileName, e.Err)
}

func (e *RehomeError) Unwrap() error { return e.Err }
