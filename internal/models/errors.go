package models

import "errors"

var (
	// Validation errors.
	ErrInvalidCode        = errors.New("code must be exactly 5 digits")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmptyMessage       = errors.New("message must have text or an attachment")
	ErrSameParticipant    = errors.New("sender and recipient must differ")
	ErrUnknownRecipient   = errors.New("recipient is not registered")
	ErrAttachmentTooLarge = errors.New("attachment too large")
	ErrUnsupportedType    = errors.New("unsupported attachment type")

	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid code or passcode")
	ErrUnauthenticated    = errors.New("unauthenticated")

	// Conflict errors.
	ErrCodeAlreadyRegistered = errors.New("code already registered")

	// Store errors.
	ErrTransient = errors.New("temporary store failure, try again")
	ErrNotFound  = errors.New("not found")
)

// Kind classifies an error for reporting and retry decisions.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindConflict
	KindNotFound
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuth:
		return "AuthError"
	case KindConflict:
		return "ConflictError"
	case KindNotFound:
		return "NotFound"
	case KindTransient:
		return "TransientStoreError"
	default:
		return "InternalError"
	}
}

// KindOf maps err onto the error taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrSameParticipant),
		errors.Is(err, ErrUnknownRecipient), errors.Is(err, ErrAttachmentTooLarge),
		errors.Is(err, ErrUnsupportedType):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated):
		return KindAuth
	case errors.Is(err, ErrCodeAlreadyRegistered):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}

// ErrorCode returns the stable wire name of a known error, or "" for unknown errors.
func ErrorCode(err error) string {
	codes := []struct {
		err  error
		code string
	}{
		{ErrInvalidCode, "InvalidCode"},
		{ErrInvalidInput, "InvalidInput"},
		{ErrEmptyMessage, "EmptyMessage"},
		{ErrSameParticipant, "SameParticipant"},
		{ErrUnknownRecipient, "UnknownRecipient"},
		{ErrAttachmentTooLarge, "AttachmentTooLarge"},
		{ErrUnsupportedType, "UnsupportedType"},
		{ErrInvalidCredentials, "InvalidCredentials"},
		{ErrUnauthenticated, "Unauthenticated"},
		{ErrCodeAlreadyRegistered, "CodeAlreadyRegistered"},
		{ErrTransient, "TryAgain"},
		{ErrNotFound, "NotFound"},
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
