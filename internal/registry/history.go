package registry

import (
	"context"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// Balance returns the proceeds and refunds credited to account by purchases.
func (s *Service) Balance(ctx context.Context, account types.Account) (int64, error) {
	canonical, err := types.ParseAccount(string(account))
	if err != nil {
		return 0, ledger.Errorf(ledger.InvalidInput, "balance", "%v", err)
	}
	var bal int64
	err = s.view(ctx, "Balance", nil, func(tx ledger.ReadTx) error {
		var err error
		bal, err = tx.Balance(ctx, canonical)
		return err
	})
	return bal, err
}

// History returns the journal of one record, oldest first.
func (s *Service) History(ctx context.Context, id uint64) ([]types.JournalEntry, error) {
	var entries []types.JournalEntry
	err := s.view(ctx, "History", &id, func(tx ledger.ReadTx) error {
		if _, err := tx.Property(ctx, id); err != nil {
			return err
		}
		var err error
		entries, err = tx.Journal(ctx, id)
		return err
	})
	return entries, err
}
