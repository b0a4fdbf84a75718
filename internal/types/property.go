package types

// Location holds the address fields captured at registration. They never change afterwards,
// and split successors copy them verbatim.
type Location struct {
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Country      string
	PinCode      string
}

// Property is one record in the registry.
type Property struct {
	ID uint64

	OwnerName    string
	GovUID       string
	OwnerAccount Account

	Location

	// Cost is fixed at creation, in the smallest currency unit.
	Cost int64

	IsSellable bool
	// SalePrice only matters while IsSellable is true. Zero means cleared.
	SalePrice int64

	// Parent is the record this one was split from; nil for registered records.
	Parent  *uint64
	Retired bool
}

// Listed reports whether the record can currently be bought.
func (p Property) Listed() bool {
	return p.IsSellable && !p.Retired
}

// Clone returns a deep copy so callers can't reach into store state through Parent.
func (p Property) Clone() Property {
	if p.Parent != nil {
		parent := *p.Parent
		p.Parent = &parent
	}
	return p
}
