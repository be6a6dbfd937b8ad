package bridge

import (
	"context"
	"errors"

	"github.com/aretw0/lattice/pkg/domain"
)

// Error codes reported to surfaces in a Result.
const (
	CodeNotFound        = "not_found"
	CodeInvalidPosition = "invalid_position"
	CodeInvalidRequest  = "invalid_structure"
	CodeMalformed       = "malformed"
	CodeInvalidInput    = "invalid_input"
	CodeClosed          = "session_closed"
	CodeTimeout         = "timeout"
	CodeInternal        = "internal"
)

// Code classifies err for the wire. Structural failures are expected
// outcomes; only CodeInternal denotes a bug or an infrastructure fault.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrParentNotFound),
		errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrProjectNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrInvalidPosition):
		return CodeInvalidPosition
	case errors.Is(err, domain.ErrCycle),
		errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrNotSiblings),
		errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrDuplicateID):
		return CodeInvalidRequest
	case errors.Is(err, domain.ErrMalformedDocument),
		errors.Is(err, ErrUnknownMessage):
		return CodeMalformed
	case errors.Is(err, ErrInputTooLarge), errors.Is(err, ErrInvalidUTF8):
		return CodeInvalidInput
	case errors.Is(err, domain.ErrSessionClosed):
		return CodeClosed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	}
	return CodeInternal
}
