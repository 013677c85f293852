package domain

import "errors"

var (
	// ErrNodeNotFound signals that a node does not resolve in the requested
	// workspace/dimension scope.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidContextPath signals a malformed context path.
	ErrInvalidContextPath = errors.New("invalid context path")
	// ErrIndexNotFound signals a missing physical index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrAliasMissingPostfix signals an alias rotation attempted without a
	// distinguishing generation postfix.
	ErrAliasMissingPostfix = errors.New("alias update without index postfix")
	// ErrMissingCollaborator signals incomplete client wiring.
	ErrMissingCollaborator = errors.New("missing collaborator")
)
