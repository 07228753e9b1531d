// ABOUTME: Static, config-driven entitlement provider
// ABOUTME: Users listed in user.premium_users get the premium tier
package app

import "context"

// Entitlements answers tier questions from a fixed user list.
type Entitlements struct {
	premium map[string]bool
}

// NewEntitlements builds the provider from premium user ids.
func NewEntitlements(premiumUsers []string) *Entitlements {
	e := &Entitlements{premium: make(map[string]bool, len(premiumUsers))}
	for _, u := range premiumUsers {
		e.premium[u] = true
	}
	return e
}

// IsPremium reports whether userID holds the premium tier.
func (e *Entitlements) IsPremium(_ context.Context, userID string) bool {
	return e.premium[userID]
}
