package domain

import (
	"errors"
	"fmt"
)

// Kind groups domain errors by how callers should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindNotFound
	KindStateConflict
	KindResourceExhausted
	KindDependency
)

// Error is a sentinel carrying its Kind. Compare with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

var (
	ErrUnauthenticated = newErr(KindAuthentication, "authentication required")

	ErrNotAuthorized = newErr(KindAuthorization, "not authorized")
	ErrNotAPaidParty = newErr(KindAuthorization, "payer is not a party to this match")

	ErrInvalidInput     = newErr(KindValidation, "invalid input")
	ErrSelfRequest      = newErr(KindValidation, "cannot send a match request to yourself")
	ErrLetterLength     = newErr(KindValidation, "letter must be between 1 and 2000 characters")
	ErrInvalidDecision  = newErr(KindValidation, "decision must be accept or reject")
	ErrUnsupportedImage = newErr(KindValidation, "unsupported image type")
	ErrImageTooLarge    = newErr(KindValidation, "image exceeds maximum size")
	ErrPhotoLimit       = newErr(KindValidation, "photo limit reached")
	ErrInvalidNotifType = newErr(KindValidation, "unknown notification type")

	ErrMemberNotFound       = newErr(KindNotFound, "member not found")
	ErrMatchNotFound        = newErr(KindNotFound, "match not found")
	ErrPhotoNotFound        = newErr(KindNotFound, "photo not found")
	ErrNotificationNotFound = newErr(KindNotFound, "notification not found")

	ErrDuplicateActiveRequest   = newErr(KindStateConflict, "an active match request already exists for this pair")
	ErrOutsideApplicationWindow = newErr(KindStateConflict, "no dating application in the current window")
	ErrRegionClosed             = newErr(KindStateConflict, "region is not open for matching")
	ErrInvalidState             = newErr(KindStateConflict, "match request is not in a valid state for this action")
	ErrMatchNotAccepted         = newErr(KindStateConflict, "match is not accepted")
	ErrNotUnlocked              = newErr(KindStateConflict, "match is not unlocked")
	ErrAlreadyUnlocked          = newErr(KindStateConflict, "match already unlocked")
	ErrMemberWithdrawn          = newErr(KindStateConflict, "member has withdrawn")
	ErrDuplicateMember          = newErr(KindStateConflict, "a member already exists for this identity")
	ErrTransactionReused        = newErr(KindStateConflict, "payment transaction id already recorded for another match")

	ErrInsufficientCredit = newErr(KindResourceExhausted, "no free reveal credits left")

	ErrPersistence = newErr(KindDependency, "persistence failure")
	ErrBlobStore   = newErr(KindDependency, "blob store failure")
)

// KindOf returns the Kind of the first domain error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Persistence wraps a store error so callers see ErrPersistence while the
// cause stays inspectable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
