// Package models defines the core data structures for accounts, sessions,
// credit quotas, analyses and payments.
package models

import "time"

// AnonymousCreditLimit is the number of free analyses granted to a single
// client IP before it has to sign in.
const AnonymousCreditLimit = 5

// Account is a registered identity holding a credit balance.
type Account struct {
	// ID is the unique identifier of the account ("user_<hex>").
	ID string `json:"user_id"`
	// Email is unique across accounts and is how payments are matched.
	Email string `json:"email"`
	// Name is the display name supplied by the identity provider.
	Name string `json:"name"`
	// Picture is an optional avatar URL.
	Picture *string `json:"picture,omitempty"`
	// Credits is the remaining number of analyses. Never negative.
	Credits int `json:"credits"`
	// CreatedAt is when the account was first seen.
	CreatedAt time.Time `json:"created_at"`
}

// Session binds an opaque token to an account until ExpiresAt.
type Session struct {
	Token     string    `json:"-"`
	AccountID string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is no longer valid at now.
// A session expiring exactly at now is already expired.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// AnonymousQuota tracks free analyses consumed from one hashed client IP.
type AnonymousQuota struct {
	IPHash      string
	CreditsUsed int
	Analyses    []AnonymousAnalysis
	CreatedAt   time.Time
	LastUsed    time.Time
}

// Remaining returns the number of free analyses still available.
func (q AnonymousQuota) Remaining() int {
	if q.CreditsUsed >= AnonymousCreditLimit {
		return 0
	}
	return AnonymousCreditLimit - q.CreditsUsed
}

// AnonymousAnalysis is a summary entry in an anonymous quota's log.
type AnonymousAnalysis struct {
	PropertyInfo string
	SearchQuery  string
	CreatedAt    time.Time
}

// AnalysisRecord is the append-only audit entry written per completed analysis.
// Exactly one of AccountID and IPHash is set; an empty AccountID marks an
// anonymous analysis.
type AnalysisRecord struct {
	AccountID    string
	IPHash       string
	PropertyInfo string
	SearchQuery  string
	Analysis     string
	CreatedAt    time.Time
}

// PaymentRecord is written once per confirmed external order.
type PaymentRecord struct {
	OrderID    string
	AccountID  string
	PackageID  string
	Credits    int
	Amount     float64
	Currency   int
	BuyerEmail string
	BuyerName  string
	IsTest     bool
	Payload    []byte
	CreatedAt  time.Time
}
