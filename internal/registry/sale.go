package registry

import (
	"context"
	"fmt"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// Price is a helper for the optional price argument of SetSellableAndUpdatePrice.
func Price(v int64) *int64 { return &v }

// SetSellableAndUpdatePrice lets the current owner list or delist a record. A non-nil, nonzero
// newSalePrice replaces the asking price whatever isSellable is, so an owner can stage a price
// before listing. nil or zero leaves the price alone.
func (s *Service) SetSellableAndUpdatePrice(ctx context.Context, caller types.Account, id uint64, isSellable bool, newSalePrice *int64) error {
	return s.update(ctx, "SetSellableAndUpdatePrice", caller, &id, func(c *txContext) error {
		p, err := c.tx.Property(c.ctx, id)
		if err != nil {
			return err
		}
		if newSalePrice != nil && *newSalePrice < 0 {
			return ledger.Errorf(ledger.InvalidInput, "set sellable", "sale price %d is negative", *newSalePrice)
		}
		if !p.OwnerAccount.Equal(caller) {
			return ledger.Errorf(ledger.Unauthorized, "set sellable", "%s does not own property %d", caller, id)
		}
		if p.Retired {
			return ledger.Retired("set sellable", id)
		}

		p.IsSellable = isSellable
		if newSalePrice != nil && *newSalePrice != 0 {
			p.SalePrice = *newSalePrice
		}
		if err := c.tx.UpdateProperty(c.ctx, p); err != nil {
			return fmt.Errorf("update property: %w", err)
		}
		return c.journal(types.OpSetSellable, &id, "sellable=%t sale_price=%d", p.IsSellable, p.SalePrice)
	})
}
