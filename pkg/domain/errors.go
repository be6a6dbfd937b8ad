package domain

import "errors"

// ErrNodeNotFound is returned when an operation references an unknown node id.
var ErrNodeNotFound = errors.New("node not found")

// ErrParentNotFound is returned when a reparent targets an unknown parent id.
var ErrParentNotFound = errors.New("parent not found")

// ErrInvalidPosition is returned when a move would leave the sibling bounds
// (moving the first node up, or the last node down).
var ErrInvalidPosition = errors.New("invalid position")

// ErrCycle is returned when a reparent would make a node its own ancestor.
var ErrCycle = errors.New("node cannot be moved under its own descendant")

// ErrInvalidTarget is returned when a node would be placed under an element
// that cannot hold children, such as img or br.
var ErrInvalidTarget = errors.New("element cannot hold children")

// ErrNotSiblings is returned when wrapping nodes that do not share a parent.
var ErrNotSiblings = errors.New("nodes do not share a parent")

// ErrEmptySelection is returned when an operation needs at least one node id.
var ErrEmptySelection = errors.New("no nodes given")

// ErrDuplicateID is returned when inserting a node whose id is already in use.
var ErrDuplicateID = errors.New("duplicate node id")

// ErrMalformedDocument is wrapped by every DecodeError.
var ErrMalformedDocument = errors.New("malformed document")

// ErrProjectNotFound is returned when a project id cannot be found in the store.
var ErrProjectNotFound = errors.New("project not found")

// ErrTemplateNotFound is returned when a palette kind is unknown.
var ErrTemplateNotFound = errors.New("template not found")

// ErrSessionClosed is returned by a bridge session after teardown.
var ErrSessionClosed = errors.New("session closed")
