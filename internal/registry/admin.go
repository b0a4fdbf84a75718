package registry

import (
	"context"
	"fmt"

	"propertyregistry/internal/governance"
	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// IsAdmin reports whether identity is one of the current admins.
func (s *Service) IsAdmin(ctx context.Context, identity types.Account) (bool, error) {
	pair, err := s.Admins(ctx)
	if err != nil {
		return false, err
	}
	return governance.New(pair, s.policy).IsAdmin(identity), nil
}

// Admins returns the current admin pair.
func (s *Service) Admins(ctx context.Context) (types.AdminPair, error) {
	var pair types.AdminPair
	err := s.view(ctx, "Admins", nil, func(tx ledger.ReadTx) error {
		var err error
		pair, err = tx.Admins(ctx)
		return err
	})
	return pair, err
}

// UpdateAdmins replaces both admins. Under the default policy either current admin may do
// this alone.
func (s *Service) UpdateAdmins(ctx context.Context, caller, newAdmin1, newAdmin2 types.Account) error {
	return s.update(ctx, "UpdateAdmins", caller, nil, func(c *txContext) error {
		next, err := c.gov.Replace(caller, newAdmin1, newAdmin2)
		if err != nil {
			return err
		}
		if err := c.tx.SetAdmins(c.ctx, next); err != nil {
			return fmt.Errorf("set admins: %w", err)
		}
		prev := c.gov.Pair()
		return c.journal(types.OpUpdateAdmins, nil, "from=%s,%s to=%s,%s", prev.Admin1, prev.Admin2, next.Admin1, next.Admin2)
	})
}
