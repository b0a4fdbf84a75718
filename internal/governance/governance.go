// Package governance decides which callers may use admin-gated registry operations.
//
// The admin pair itself lives in the ledger. A Governance value is built from the pair read
// inside the current transaction and threaded through every authorization check of that
// transaction, so nothing here is process-global.
package governance

import (
	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// Policy authorizes a replacement of the admin pair.
type Policy interface {
	AuthorizeReplace(current types.AdminPair, caller types.Account, next types.AdminPair) error
}

// SingleSigner lets either current admin replace the whole pair on their own, including
// removing the other admin.
type SingleSigner struct{}

// AuthorizeReplace implements Policy.
func (SingleSigner) AuthorizeReplace(current types.AdminPair, caller types.Account, _ types.AdminPair) error {
	if !current.Contains(caller) {
		return ledger.Errorf(ledger.Unauthorized, "update admins", "%s is not an admin", caller)
	}
	return nil
}

// Governance answers authorization questions against one admin pair.
type Governance struct {
	pair   types.AdminPair
	policy Policy
}

// New returns a Governance for pair. A nil policy means SingleSigner.
func New(pair types.AdminPair, policy Policy) *Governance {
	if policy == nil {
		policy = SingleSigner{}
	}
	return &Governance{pair: pair, policy: policy}
}

// Pair returns the admin pair this Governance was built from.
func (g *Governance) Pair() types.AdminPair { return g.pair }

// IsAdmin reports whether a is admin1 or admin2, ignoring letter case.
func (g *Governance) IsAdmin(a types.Account) bool {
	return g.pair.Contains(a)
}

// RequireAdmin fails with Unauthorized unless caller is an admin.
func (g *Governance) RequireAdmin(op string, caller types.Account) error {
	if g.pair.IsZero() {
		return ledger.Errorf(ledger.Unauthorized, op, "registry has no admins")
	}
	if !g.IsAdmin(caller) {
		return ledger.Errorf(ledger.Unauthorized, op, "%s is not an admin", caller)
	}
	return nil
}

// Replace checks that caller may install next and returns the canonical pair to store.
func (g *Governance) Replace(caller types.Account, admin1, admin2 types.Account) (types.AdminPair, error) {
	if err := g.RequireAdmin("update admins", caller); err != nil {
		return types.AdminPair{}, err
	}
	next, err := Canonical(admin1, admin2)
	if err != nil {
		return types.AdminPair{}, err
	}
	if err := g.policy.AuthorizeReplace(g.pair, caller, next); err != nil {
		return types.AdminPair{}, err
	}
	return next, nil
}

// Canonical validates both identities and returns them in canonical form.
func Canonical(admin1, admin2 types.Account) (types.AdminPair, error) {
	a1, err := types.ParseAccount(string(admin1))
	if err != nil {
		return types.AdminPair{}, ledger.Errorf(ledger.InvalidInput, "admins", "admin1: %v", err)
	}
	a2, err := types.ParseAccount(string(admin2))
	if err != nil {
		return types.AdminPair{}, ledger.Errorf(ledger.InvalidInput, "admins", "admin2: %v", err)
	}
	return types.AdminPair{Admin1: a1, Admin2: a2}, nil
}
