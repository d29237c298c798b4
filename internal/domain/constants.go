package domain

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Ad lifecycle states. An Active ad is a commitment that its owner can
// currently afford one click at the ad's price.
const (
	AdStatusActive   = "Active"
	AdStatusPaused   = "Paused"
	AdStatusDraft    = "Draft"
	AdStatusRejected = "Rejected"
)

// Ledger entry types (free-text category on Transaction rows).
const (
	TxTypeTopUp       = "top-up"
	TxTypeAdCharge    = "ad-charge"
	TxTypeSignupBonus = "signup-bonus"
	TxTypeAdminCredit = "admin-credit"
)

// Reasons reported alongside a persisted ad when a requested status was
// overridden by policy instead of being applied.
const (
	OverrideInsufficientFunds = "insufficient_funds"
)

const (
	AnonymousAuthor = "Anonymous"
	DefaultCategory = "Other"
)

func ValidAdStatus(s string) bool {
	switch s {
	case AdStatusActive, AdStatusPaused, AdStatusDraft, AdStatusRejected:
		return true
	}
	return false
}
