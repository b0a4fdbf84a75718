// Package ledger defines the Ledger Store contract shared by every backend: property records,
// the admin pair, account balances and the operation journal, all read and written through
// transactions.
package ledger

import (
	"context"

	"propertyregistry/internal/types"
)

// ReadTx is a consistent snapshot of the ledger.
type ReadTx interface {
	// Admins returns the admin pair, or the zero pair if the ledger was never bootstrapped.
	Admins(ctx context.Context) (types.AdminPair, error)
	// Count returns the number of record slots, retired ones included.
	Count(ctx context.Context) (uint64, error)
	// Property returns ErrNotFound for ids >= Count.
	Property(ctx context.Context, id uint64) (types.Property, error)
	// Properties returns up to limit records starting at offset, in id order.
	Properties(ctx context.Context, offset, limit uint64) ([]types.Property, error)
	Balance(ctx context.Context, account types.Account) (int64, error)
	// Journal returns the entries that touched one record, oldest first.
	Journal(ctx context.Context, propertyID uint64) ([]types.JournalEntry, error)
}

// Tx is a read-write transaction. Nothing written through it is visible to anyone else until
// the enclosing Update returns nil.
type Tx interface {
	ReadTx
	SetAdmins(ctx context.Context, pair types.AdminPair) error
	// InsertProperty stores p under the next id (the current Count) and returns that id.
	InsertProperty(ctx context.Context, p types.Property) (uint64, error)
	// UpdateProperty overwrites an existing record. The id must already exist.
	UpdateProperty(ctx context.Context, p types.Property) error
	// Credit adds amount to an account balance.
	Credit(ctx context.Context, account types.Account, amount int64) error
	AppendJournal(ctx context.Context, entry types.JournalEntry) error
}

// Store is a Ledger Store backend.
type Store interface {
	// Update runs fn in a serialized transaction. If fn returns an error nothing it wrote is
	// kept. The context is only checked before the transaction is admitted.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a consistent snapshot.
	View(ctx context.Context, fn func(tx ReadTx) error) error
	Close() error
}
