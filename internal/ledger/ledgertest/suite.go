// Package ledgertest holds the behavioural contract every ledger.Store backend must satisfy.
package ledgertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

var (
	Admin1 = types.MustAccount("0x1111111111111111111111111111111111111111")
	Admin2 = types.MustAccount("0x2222222222222222222222222222222222222222")
	Owner  = types.MustAccount("0x3333333333333333333333333333333333333333")
	Buyer  = types.MustAccount("0x4444444444444444444444444444444444444444")
)

// SampleProperty returns a fully populated record with the given cost.
func SampleProperty(cost int64) types.Property {
	return types.Property{
		OwnerName:    "Asha Rao",
		GovUID:       "GOV-001",
		OwnerAccount: Owner,
		Location: types.Location{
			AddressLine1: "12 Lake Road",
			AddressLine2: "Flat 3",
			City:         "Pune",
			State:        "MH",
			Country:      "IN",
			PinCode:      "411001",
		},
		Cost:      cost,
		SalePrice: 0,
	}
}

// Run exercises a fresh store returned by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) ledger.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyStore", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.View(ctx, func(tx ledger.ReadTx) error {
			pair, err := tx.Admins(ctx)
			require.NoError(t, err)
			require.True(t, pair.IsZero())

			n, err := tx.Count(ctx)
			require.NoError(t, err)
			require.Zero(t, n)

			_, err = tx.Property(ctx, 0)
			require.ErrorIs(t, err, ledger.ErrNotFound)
			return nil
		}))
	})

	t.Run("InsertAssignsDenseIDs", func(t *testing.T) {
		s := open(t)
		for want := uint64(0); want < 3; want++ {
			var got uint64
			require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
				var err error
				got, err = tx.InsertProperty(ctx, SampleProperty(int64(100*(want+1))))
				return err
			}))
			require.Equal(t, want, got)
		}
		require.NoError(t, s.View(ctx, func(tx ledger.ReadTx) error {
			n, err := tx.Count(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(3), n)

			p, err := tx.Property(ctx, 1)
			require.NoError(t, err)
			want := SampleProperty(200)
			want.ID = 1
			require.Equal(t, want, p)

			page, err := tx.Properties(ctx, 1, 5)
			require.NoError(t, err)
			require.Len(t, page, 2)
			require.Equal(t, uint64(2), page[1].ID)
			return nil
		}))
	})

	t.Run("EmptyOptionalTextRoundTrips", func(t *testing.T) {
		s := open(t)
		p := SampleProperty(10)
		p.AddressLine2 = ""
		require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
			_, err := tx.InsertProperty(ctx, p)
			return err
		}))
		require.NoError(t, s.View(ctx, func(tx ledger.ReadTx) error {
			got, err := tx.Property(ctx, 0)
			require.NoError(t, err)
			require.Empty(t, got.AddressLine2)
			return nil
		}))
	})

	t.Run("FailedUpdateLeavesNoTrace", func(t *testing.T) {
		s := open(t)
		boom := errors.New("boom")
		err := s.Update(ctx, func(tx ledger.Tx) error {
			require.NoError(t, tx.SetAdmins(ctx, types.AdminPair{Admin1: Admin1, Admin2: Admin2}))
			_, err := tx.InsertProperty(ctx, SampleProperty(5))
			require.NoError(t, err)
			require.NoError(t, tx.Credit(ctx, Owner, 50))
			require.NoError(t, tx.AppendJournal(ctx, entry("j-1", types.OpRegister, 0)))
			return boom
		})
		require.ErrorIs(t, err, boom)

		require.NoError(t, s.View(ctx, func(tx ledger.ReadTx) error {
			pair, _ := tx.Admins(ctx)
			require.True(t, pair.IsZero())
			n, _ := tx.Count(ctx)
			require.Zero(t, n)
			bal, _ := tx.Balance(ctx, Owner)
			require.Zero(t, bal)
			j, _ := tx.Journal(ctx, 0)
			require.Empty(t, j)
			return nil
		}))
	})

	t.Run("TxSeesOwnWrites", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
			id, err := tx.InsertProperty(ctx, SampleProperty(7))
			require.NoError(t, err)
			p, err := tx.Property(ctx, id)
			require.NoError(t, err)
			p.IsSellable = true
			p.SalePrice = 3
			require.NoError(t, tx.UpdateProperty(ctx, p))

			again, err := tx.Property(ctx, id)
			require.NoError(t, err)
			require.True(t, again.IsSellable)

			require.NoError(t, tx.Credit(ctx, Buyer, 4))
			require.NoError(t, tx.Credit(ctx, Buyer, 6))
			bal, err := tx.Balance(ctx, Buyer)
			require.NoError(t, err)
			require.Equal(t, int64(10), bal)
			return nil
		}))
	})

	t.Run("UpdateUnknownProperty", func(t *testing.T) {
		s := open(t)
		err := s.Update(ctx, func(tx ledger.Tx) error {
			p := SampleProperty(1)
			p.ID = 9
			return tx.UpdateProperty(ctx, p)
		})
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("LineageAndAdmins", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
			require.NoError(t, tx.SetAdmins(ctx, types.AdminPair{Admin1: Admin1, Admin2: Admin2}))
			parent, err := tx.InsertProperty(ctx, SampleProperty(100))
			require.NoError(t, err)
			child := SampleProperty(40)
			child.Parent = &parent
			_, err = tx.InsertProperty(ctx, child)
			require.NoError(t, err)

			p, err := tx.Property(ctx, parent)
			require.NoError(t, err)
			p.Retired = true
			return tx.UpdateProperty(ctx, p)
		}))
		require.NoError(t, s.View(ctx, func(tx ledger.ReadTx) error {
			pair, err := tx.Admins(ctx)
			require.NoError(t, err)
			require.Equal(t, types.AdminPair{Admin1: Admin1, Admin2: Admin2}, pair)

			parent, err := tx.Property(ctx, 0)
			require.NoError(t, err)
			require.True(t, parent.Retired)
			require.Nil(t, parent.Parent)

			child, err := tx.Property(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, child.Parent)
			require.Equal(t, uint64(0), *child.Parent)
			return nil
		}))
	})

	t.Run("JournalOrderAndFilter", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
			require.NoError(t, tx.AppendJournal(ctx, entry("a", types.OpRegister, 0)))
			require.NoError(t, tx.AppendJournal(ctx, entry("b", types.OpRegister, 1)))
			return nil
		}))
		require.NoError(t, s.Update(ctx, func(tx ledger.Tx) error {
			require.NoError(t, tx.AppendJournal(ctx, entry("c", types.OpSetSellable, 0)))
			admin := entry("d", types.OpUpdateAdmins, 0)
			admin.PropertyID = nil
			return tx.AppendJournal(ctx, admin)
		}))
		require.NoError(t, s.View(ctx, func(tx ledger.ReadTx) error {
			j, err := tx.Journal(ctx, 0)
			require.NoError(t, err)
			require.Len(t, j, 2)
			require.Equal(t, "a", j[0].ID)
			require.Equal(t, "c", j[1].ID)
			require.Less(t, j[0].Seq, j[1].Seq)
			require.Equal(t, types.OpSetSellable, j[1].Op)
			require.Equal(t, Admin1, j[1].Actor)
			return nil
		}))
	})

	t.Run("CanceledContextIsNotAdmitted", func(t *testing.T) {
		s := open(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		called := false
		err := s.Update(cctx, func(ledger.Tx) error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, called)
	})
}

func entry(id string, op types.Op, propertyID uint64) types.JournalEntry {
	return types.JournalEntry{
		ID:         id,
		Op:         op,
		PropertyID: &propertyID,
		Actor:      Admin1,
		Detail:     "detail " + id,
		At:         time.UnixMilli(1_700_000_000_000).UTC(),
	}
}
