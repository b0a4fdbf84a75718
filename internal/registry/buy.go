package registry

import (
	"context"
	"fmt"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// BuyRequest describes a purchase. The caller pays Payment.
type BuyRequest struct {
	ID              uint64
	NewOwnerName    string
	NewGovUID       string
	NewOwnerAccount types.Account
	Payment         int64
}

// Buy transfers a listed record to the buyer. In one transaction the owner fields are
// replaced, SalePrice is credited to the previous owner, any overpayment is credited back to
// the caller and the listing is closed. Anyone may call it.
func (s *Service) Buy(ctx context.Context, caller types.Account, req BuyRequest) error {
	id := req.ID
	return s.update(ctx, "Buy", caller, &id, func(c *txContext) error {
		p, err := c.tx.Property(c.ctx, id)
		if err != nil {
			return err
		}
		if !p.Listed() {
			return ledger.Errorf(ledger.NotForSale, "buy", "property %d is not for sale", id)
		}
		if req.Payment < p.SalePrice {
			return ledger.Errorf(ledger.InsufficientPayment, "buy", "payment %d is below sale price %d", req.Payment, p.SalePrice)
		}
		payer, newOwner, err := validateBuy(caller, req)
		if err != nil {
			return err
		}

		seller := p.OwnerAccount
		price := p.SalePrice

		p.OwnerName = req.NewOwnerName
		p.GovUID = req.NewGovUID
		p.OwnerAccount = newOwner
		p.IsSellable = false
		p.SalePrice = 0
		if err := c.tx.UpdateProperty(c.ctx, p); err != nil {
			return fmt.Errorf("update property: %w", err)
		}
		if err := routePayment(c, seller, payer, price, req.Payment); err != nil {
			return err
		}
		return c.journal(types.OpBuy, &id, "seller=%s new_owner=%s price=%d paid=%d", seller, newOwner, price, req.Payment)
	})
}

func validateBuy(caller types.Account, req BuyRequest) (payer, newOwner types.Account, err error) {
	if err := checkText("buy", "new owner name", req.NewOwnerName, maxNameLen, true); err != nil {
		return "", "", err
	}
	if err := checkText("buy", "new gov UID", req.NewGovUID, maxGovUIDLen, true); err != nil {
		return "", "", err
	}
	newOwner, err = types.ParseAccount(string(req.NewOwnerAccount))
	if err != nil {
		return "", "", ledger.Errorf(ledger.InvalidInput, "buy", "new owner account: %v", err)
	}
	payer, err = types.ParseAccount(string(caller))
	if err != nil {
		return "", "", ledger.Errorf(ledger.InvalidInput, "buy", "caller: %v", err)
	}
	return payer, newOwner, nil
}

// routePayment pays the seller the asking price and refunds the rest to the payer.
func routePayment(c *txContext, seller, payer types.Account, price, paid int64) error {
	if price > 0 {
		if err := c.tx.Credit(c.ctx, seller, price); err != nil {
			return fmt.Errorf("pay seller %s: %w", seller, err)
		}
	}
	if refund := paid - price; refund > 0 {
		if err := c.tx.Credit(c.ctx, payer, refund); err != nil {
			return fmt.Errorf("refund %s: %w", payer, err)
		}
	}
	return nil
}
