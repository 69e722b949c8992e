package dom

import "errors"

// Host document error sentinels.
var (
	// ErrInaccessibleSubtree is returned for embedded documents that cannot be
	// inspected, e.g. a frame served from another origin.
	ErrInaccessibleSubtree = errors.New("inaccessible subtree")

	// ErrNotField is returned when a value operation targets a node that is
	// not an input or textarea.
	ErrNotField = errors.New("node is not a form field")

	// ErrNoBody is returned when a document has no body element.
	ErrNoBody = errors.New("document has no body")

	// ErrSubscriptionClosed is returned by Next after Close.
	ErrSubscriptionClosed = errors.New("subscription closed")
)
