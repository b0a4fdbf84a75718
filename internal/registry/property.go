package registry

import (
	"context"
	"fmt"
	"strings"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// RegisterRequest carries the fields of a new record.
type RegisterRequest struct {
	OwnerName    string
	GovUID       string
	types.Location
	Cost         int64
	OwnerAccount types.Account
	// SalePrice is stored for later; registration never lists a record.
	SalePrice int64
}

// Byte limits on text fields, matching the widest column that stores them.
const (
	maxNameLen    = 400
	maxGovUIDLen  = 200
	maxAddressLen = 400
	maxRegionLen  = 200
	maxPinLen     = 40
)

// checkText rejects a blank required value or one longer than limit bytes.
func checkText(op, name, value string, limit int, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return ledger.Errorf(ledger.InvalidInput, op, "%s is required", name)
	}
	if len(value) > limit {
		return ledger.Errorf(ledger.InvalidInput, op, "%s is %d bytes, limit %d", name, len(value), limit)
	}
	return nil
}

// Validate reports the first invalid field as an InvalidInput error.
func (r RegisterRequest) Validate() error {
	fields := []struct {
		name, value string
		max         int
		required    bool
	}{
		{"owner name", r.OwnerName, maxNameLen, true},
		{"gov UID", r.GovUID, maxGovUIDLen, true},
		{"address line 1", r.AddressLine1, maxAddressLen, true},
		{"address line 2", r.AddressLine2, maxAddressLen, false},
		{"city", r.City, maxRegionLen, true},
		{"state", r.State, maxRegionLen, true},
		{"country", r.Country, maxRegionLen, true},
		{"pin code", r.PinCode, maxPinLen, true},
	}
	for _, f := range fields {
		if err := checkText("register", f.name, f.value, f.max, f.required); err != nil {
			return err
		}
	}
	if r.Cost < 0 {
		return ledger.Errorf(ledger.InvalidInput, "register", "cost %d is negative", r.Cost)
	}
	if r.SalePrice < 0 {
		return ledger.Errorf(ledger.InvalidInput, "register", "sale price %d is negative", r.SalePrice)
	}
	if _, err := types.ParseAccount(string(r.OwnerAccount)); err != nil {
		return ledger.Errorf(ledger.InvalidInput, "register", "owner account: %v", err)
	}
	return nil
}

// Register creates a record and returns its id. Admin only.
func (s *Service) Register(ctx context.Context, caller types.Account, req RegisterRequest) (uint64, error) {
	var id uint64
	err := s.update(ctx, "Register", caller, nil, func(c *txContext) error {
		if err := c.gov.RequireAdmin("register", caller); err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}
		owner, _ := types.ParseAccount(string(req.OwnerAccount))

		var err error
		id, err = c.tx.InsertProperty(c.ctx, types.Property{
			OwnerName:    req.OwnerName,
			GovUID:       req.GovUID,
			OwnerAccount: owner,
			Location:     req.Location,
			Cost:         req.Cost,
			IsSellable:   false,
			SalePrice:    req.SalePrice,
		})
		if err != nil {
			return fmt.Errorf("insert property: %w", err)
		}
		return c.journal(types.OpRegister, &id, "owner=%s cost=%d sale_price=%d", owner, req.Cost, req.SalePrice)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns one record. Anyone may call it.
func (s *Service) Get(ctx context.Context, id uint64) (types.Property, error) {
	var p types.Property
	err := s.view(ctx, "Get", &id, func(tx ledger.ReadTx) error {
		var err error
		p, err = tx.Property(ctx, id)
		return err
	})
	return p, err
}

// Count returns the number of record slots, split-retired ones included, so callers can
// enumerate 0..Count-1.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.view(ctx, "Count", nil, func(tx ledger.ReadTx) error {
		var err error
		n, err = tx.Count(ctx)
		return err
	})
	return n, err
}

// List returns up to limit records starting at offset. A zero limit returns the rest.
func (s *Service) List(ctx context.Context, offset, limit uint64) ([]types.Property, error) {
	var out []types.Property
	err := s.view(ctx, "List", nil, func(tx ledger.ReadTx) error {
		var err error
		out, err = tx.Properties(ctx, offset, limit)
		return err
	})
	return out, err
}
