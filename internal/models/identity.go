package models

// IdentityKind distinguishes the two ways a request can be billed.
type IdentityKind int

const (
	// KindAnonymous bills the request against the hashed client IP.
	KindAnonymous IdentityKind = iota
	// KindAccount bills the request against a signed-in account.
	KindAccount
)

// Identity is either an authenticated account or an anonymous caller keyed by
// the hash of its IP address.
type Identity struct {
	Kind    IdentityKind
	Account *Account
	IPHash  string
}

// AccountIdentity returns the identity of a signed-in account.
func AccountIdentity(acc *Account) Identity {
	return Identity{Kind: KindAccount, Account: acc}
}

// AnonymousIdentity returns the identity of an unauthenticated caller.
func AnonymousIdentity(ipHash string) Identity {
	return Identity{Kind: KindAnonymous, IPHash: ipHash}
}

// Authenticated reports whether the identity belongs to an account.
func (i Identity) Authenticated() bool {
	return i.Kind == KindAccount && i.Account != nil
}

// Profile is what the external identity provider returns for a session id.
type Profile struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Picture      *string `json:"picture"`
	SessionToken string  `json:"session_token"`
}
