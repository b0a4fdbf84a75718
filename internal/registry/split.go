package registry

import (
	"context"
	"fmt"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// SplitCosts apportions cost by percentage. The integer-division remainder goes to the first
// share, so a+b == cost for every p in [1, 99].
func SplitCosts(cost int64, percentage int) (a, b int64) {
	b = cost/100*int64(100-percentage) + cost%100*int64(100-percentage)/100
	a = cost - b
	return a, b
}

// Split retires record id and creates two successors that share its owner and location, with
// cost divided by percentage. Admin only. Returns the successor ids.
func (s *Service) Split(ctx context.Context, caller types.Account, id uint64, percentage int) (uint64, uint64, error) {
	var idA, idB uint64
	err := s.update(ctx, "Split", caller, &id, func(c *txContext) error {
		if err := c.gov.RequireAdmin("split", caller); err != nil {
			return err
		}
		if percentage < 1 || percentage > 99 {
			return ledger.Errorf(ledger.InvalidInput, "split", "percentage %d outside [1, 99]", percentage)
		}
		orig, err := loadLive(c, "split", id)
		if err != nil {
			return err
		}

		costA, costB := SplitCosts(orig.Cost, percentage)
		idA, err = insertSuccessor(c, orig, costA)
		if err != nil {
			return err
		}
		idB, err = insertSuccessor(c, orig, costB)
		if err != nil {
			return err
		}

		orig.Retired = true
		orig.IsSellable = false
		orig.SalePrice = 0
		if err := c.tx.UpdateProperty(c.ctx, orig); err != nil {
			return fmt.Errorf("retire property: %w", err)
		}
		return c.journal(types.OpSplit, &id, "percentage=%d successors=%d,%d", percentage, idA, idB)
	})
	if err != nil {
		return 0, 0, err
	}
	return idA, idB, nil
}

func insertSuccessor(c *txContext, orig types.Property, cost int64) (uint64, error) {
	parent := orig.ID
	succ := types.Property{
		OwnerName:    orig.OwnerName,
		GovUID:       orig.GovUID,
		OwnerAccount: orig.OwnerAccount,
		Location:     orig.Location,
		Cost:         cost,
		Parent:       &parent,
	}
	id, err := c.tx.InsertProperty(c.ctx, succ)
	if err != nil {
		return 0, fmt.Errorf("insert successor: %w", err)
	}
	if err := c.journal(types.OpSplitCreate, &id, "parent=%d cost=%d", parent, cost); err != nil {
		return 0, err
	}
	return id, nil
}
