package domain

const (
	GenderFemale = "female"
	GenderMale   = "male"
)

const (
	MatchStatusPending   = "pending"
	MatchStatusAccepted  = "accepted"
	MatchStatusRejected  = "rejected"
	MatchStatusCancelled = "cancelled"
)

const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

const (
	PaymentMethodCard       = "card"
	PaymentMethodFreeReveal = "free_reveal"
)

const (
	NotificationMatchRequest    = "match_request"
	NotificationMatchAccepted   = "match_accepted"
	NotificationContactRevealed = "contact_revealed"
)

// ValidNotificationType reports whether t is one of the enumerated types.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationMatchRequest, NotificationMatchAccepted, NotificationContactRevealed:
		return true
	}
	return false
}

const (
	RegionFallbackNone  = "none"
	RegionFallbackBroad = "broad"
)

// WithdrawnNickname replaces the nickname of a withdrawn member in every
// view shown to someone else.
const WithdrawnNickname = "탈퇴한 회원"

const (
	DefaultFreeReveals = 1
	MaxLetterRunes     = 2000
)
