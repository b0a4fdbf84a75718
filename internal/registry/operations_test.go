package registry_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/registry"
	"propertyregistry/internal/types"
)

func TestRegister(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()
		req := sampleRequest(1000, 250)
		req.OwnerAccount = "0x00000000000000000000000000000000000000AB"

		id, err := svc.Register(ctx, admin2, req)
		require.NoError(t, err)
		require.Equal(t, uint64(0), id)

		got, err := svc.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, types.Property{
			ID:           0,
			OwnerName:    req.OwnerName,
			GovUID:       req.GovUID,
			OwnerAccount: "0x00000000000000000000000000000000000000ab",
			Location:     req.Location,
			Cost:         1000,
			IsSellable:   false,
			SalePrice:    250,
		}, got)

		n, err := svc.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1), n)
	})
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		caller types.Account
		mutate func(r *registry.RegisterRequest)
		want   error
	}{
		{"non admin", stranger, func(*registry.RegisterRequest) {}, ledger.ErrUnauthorized},
		{"owner is not admin", owner, func(*registry.RegisterRequest) {}, ledger.ErrUnauthorized},
		{"negative cost", admin1, func(r *registry.RegisterRequest) { r.Cost = -1 }, ledger.ErrInvalidInput},
		{"negative sale price", admin1, func(r *registry.RegisterRequest) { r.SalePrice = -5 }, ledger.ErrInvalidInput},
		{"empty owner name", admin1, func(r *registry.RegisterRequest) { r.OwnerName = " " }, ledger.ErrInvalidInput},
		{"empty gov uid", admin1, func(r *registry.RegisterRequest) { r.GovUID = "" }, ledger.ErrInvalidInput},
		{"empty city", admin1, func(r *registry.RegisterRequest) { r.City = "" }, ledger.ErrInvalidInput},
		{"empty pin", admin1, func(r *registry.RegisterRequest) { r.PinCode = "" }, ledger.ErrInvalidInput},
		{"malformed owner account", admin1, func(r *registry.RegisterRequest) { r.OwnerAccount = "0x12" }, ledger.ErrInvalidInput},
		{"owner name too long", admin1, func(r *registry.RegisterRequest) { r.OwnerName = strings.Repeat("a", 401) }, ledger.ErrInvalidInput},
		{"gov uid too long", admin1, func(r *registry.RegisterRequest) { r.GovUID = strings.Repeat("u", 201) }, ledger.ErrInvalidInput},
		{"optional address line too long", admin1, func(r *registry.RegisterRequest) { r.AddressLine2 = strings.Repeat("b", 401) }, ledger.ErrInvalidInput},
		{"multibyte city too long", admin1, func(r *registry.RegisterRequest) { r.City = strings.Repeat("é", 101) }, ledger.ErrInvalidInput},
		{"pin too long", admin1, func(r *registry.RegisterRequest) { r.PinCode = strings.Repeat("9", 41) }, ledger.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, ledger.NewMemory())
			req := sampleRequest(100, 0)
			tt.mutate(&req)

			_, err := svc.Register(context.Background(), tt.caller, req)
			require.ErrorIs(t, err, tt.want)

			n, err := svc.Count(context.Background())
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestRegister_IDsStrictlyIncrease(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc := registry.New(ledger.NewMemory())
		ctx := context.Background()
		_, err := svc.Bootstrap(ctx, admin1, admin2)
		require.NoError(rt, err)

		n := rapid.IntRange(1, 20).Draw(rt, "n")
		var last int64 = -1
		for i := 0; i < n; i++ {
			cost := rapid.Int64Range(0, 1<<40).Draw(rt, "cost")
			sale := rapid.Int64Range(0, 1<<40).Draw(rt, "sale")
			id, err := svc.Register(ctx, admin1, sampleRequest(cost, sale))
			require.NoError(rt, err)
			require.Greater(rt, int64(id), last)
			last = int64(id)

			got, err := svc.Get(ctx, id)
			require.NoError(rt, err)
			require.Equal(rt, cost, got.Cost)
			require.Equal(rt, sale, got.SalePrice)
			require.False(rt, got.IsSellable)
		}
	})
}

func TestGet_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		mustRegister(t, svc, 1, 0)
		_, err := svc.Get(context.Background(), 1)
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestList_Pages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		for i := 0; i < 5; i++ {
			mustRegister(t, svc, int64(i), 0)
		}
		page, err := svc.List(context.Background(), 3, 10)
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.Equal(t, uint64(3), page[0].ID)

		all, err := svc.List(context.Background(), 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
	})
}

func TestSetSellableAndUpdatePrice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()
		id := mustRegister(t, svc, 1000, 400)

		// price staged before listing
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, false, registry.Price(450)))
		p, err := svc.Get(ctx, id)
		require.NoError(t, err)
		require.False(t, p.IsSellable)
		require.Equal(t, int64(450), p.SalePrice)

		// omitted price leaves it alone
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))
		p, err = svc.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, p.IsSellable)
		require.Equal(t, int64(450), p.SalePrice)

		// zero is treated as omitted
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, registry.Price(0)))
		p, err = svc.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, int64(450), p.SalePrice)
	})
}

func TestSetSellableAndUpdatePrice_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ledger.NewMemory())
	id := mustRegister(t, svc, 1000, 400)

	err := svc.SetSellableAndUpdatePrice(ctx, admin1, id, true, nil)
	require.ErrorIs(t, err, ledger.ErrUnauthorized, "admins are not owners")

	err = svc.SetSellableAndUpdatePrice(ctx, owner, id, true, registry.Price(-3))
	require.ErrorIs(t, err, ledger.ErrInvalidInput)

	err = svc.SetSellableAndUpdatePrice(ctx, owner, 99, true, nil)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	p, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, p.IsSellable)
	require.Equal(t, int64(400), p.SalePrice)
}

func TestBuy_Scenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()
		id := mustRegister(t, svc, 1000, 0)
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, registry.Price(500)))

		req := registry.BuyRequest{
			ID:              id,
			NewOwnerName:    "Kabir Shah",
			NewGovUID:       "UID-9",
			NewOwnerAccount: newOwner,
			Payment:         500,
		}
		require.NoError(t, svc.Buy(ctx, buyer, req))

		p, err := svc.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "Kabir Shah", p.OwnerName)
		require.Equal(t, "UID-9", p.GovUID)
		require.Equal(t, newOwner, p.OwnerAccount)
		require.False(t, p.IsSellable)
		require.Zero(t, p.SalePrice)
		require.Equal(t, int64(1000), p.Cost)

		bal, err := svc.Balance(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, int64(500), bal)

		req.Payment = 10_000
		err = svc.Buy(ctx, stranger, req)
		require.ErrorIs(t, err, ledger.ErrNotForSale)
	})
}

func TestBuy_RefundsOverpayment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()
		id := mustRegister(t, svc, 1000, 300)
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))

		require.NoError(t, svc.Buy(ctx, buyer, registry.BuyRequest{
			ID: id, NewOwnerName: "B", NewGovUID: "G", NewOwnerAccount: newOwner, Payment: 420,
		}))

		seller, err := svc.Balance(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, int64(300), seller)

		refund, err := svc.Balance(ctx, buyer)
		require.NoError(t, err)
		require.Equal(t, int64(120), refund)

		untouched, err := svc.Balance(ctx, newOwner)
		require.NoError(t, err)
		require.Zero(t, untouched)
	})
}

func TestRegister_AcceptsFieldsAtLimit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		req := sampleRequest(100, 0)
		req.OwnerName = strings.Repeat("a", 400)
		req.GovUID = strings.Repeat("u", 200)
		req.AddressLine2 = strings.Repeat("b", 400)
		req.State = strings.Repeat("é", 100)
		req.PinCode = strings.Repeat("9", 40)

		id, err := svc.Register(context.Background(), admin1, req)
		require.NoError(t, err)
		p, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, req.OwnerName, p.OwnerName)
		require.Equal(t, req.State, p.State)
	})
}

func TestBuy_RejectsOverlongOwnerFields(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ledger.NewMemory())
	id := mustRegister(t, svc, 1000, 500)
	require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))

	req := registry.BuyRequest{ID: id, NewOwnerName: strings.Repeat("n", 401), NewGovUID: "UID-9", NewOwnerAccount: newOwner, Payment: 500}
	require.ErrorIs(t, svc.Buy(ctx, buyer, req), ledger.ErrInvalidInput)

	req.NewOwnerName = "Asha"
	req.NewGovUID = strings.Repeat("g", 201)
	require.ErrorIs(t, svc.Buy(ctx, buyer, req), ledger.ErrInvalidInput)

	p, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, owner, p.OwnerAccount)
}

func TestBuy_PreconditionOrder(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ledger.NewMemory())
	id := mustRegister(t, svc, 1000, 500)

	bad := registry.BuyRequest{ID: 42, NewOwnerAccount: "junk", Payment: -1}
	require.ErrorIs(t, svc.Buy(ctx, buyer, bad), ledger.ErrNotFound)

	bad.ID = id
	require.ErrorIs(t, svc.Buy(ctx, buyer, bad), ledger.ErrNotForSale)

	require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))
	require.ErrorIs(t, svc.Buy(ctx, buyer, bad), ledger.ErrInsufficientPayment)

	bad.Payment = 500
	require.ErrorIs(t, svc.Buy(ctx, buyer, bad), ledger.ErrInvalidInput)

	p, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, owner, p.OwnerAccount)
	require.True(t, p.IsSellable)
	require.Equal(t, int64(500), p.SalePrice)
}

func TestBuy_PaymentProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		svc := registry.New(ledger.NewMemory())
		_, err := svc.Bootstrap(ctx, admin1, admin2)
		require.NoError(rt, err)

		price := rapid.Int64Range(1, 1<<40).Draw(rt, "price")
		payment := rapid.Int64Range(0, 1<<41).Draw(rt, "payment")
		listed := rapid.Bool().Draw(rt, "listed")

		id, err := svc.Register(ctx, admin1, sampleRequest(price*2, price))
		require.NoError(rt, err)
		require.NoError(rt, svc.SetSellableAndUpdatePrice(ctx, owner, id, listed, nil))
		before, err := svc.Get(ctx, id)
		require.NoError(rt, err)

		err = svc.Buy(ctx, buyer, registry.BuyRequest{
			ID: id, NewOwnerName: "N", NewGovUID: "U", NewOwnerAccount: newOwner, Payment: payment,
		})
		after, getErr := svc.Get(ctx, id)
		require.NoError(rt, getErr)

		switch {
		case !listed:
			require.ErrorIs(rt, err, ledger.ErrNotForSale)
			require.Equal(rt, before, after)
		case payment < price:
			require.ErrorIs(rt, err, ledger.ErrInsufficientPayment)
			require.Equal(rt, before, after)
		default:
			require.NoError(rt, err)
			require.False(rt, after.IsSellable)
			require.Zero(rt, after.SalePrice)
			require.Equal(rt, newOwner, after.OwnerAccount)

			seller, _ := svc.Balance(ctx, owner)
			refund, _ := svc.Balance(ctx, buyer)
			require.Equal(rt, price, seller)
			require.Equal(rt, payment-price, refund)
		}
	})
}

func TestBuy_RollsBackWhenPaymentRoutingFails(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	svc := newService(t, mem)
	id := mustRegister(t, svc, 1000, 500)
	require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))

	broken := registry.New(failingStore{Store: mem})
	err := broken.Buy(ctx, buyer, registry.BuyRequest{
		ID: id, NewOwnerName: "N", NewGovUID: "U", NewOwnerAccount: newOwner, Payment: 600,
	})
	require.ErrorIs(t, err, errCreditDown)
	require.Equal(t, ledger.StorageFailure, ledger.KindOf(err))

	p, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, owner, p.OwnerAccount)
	require.Equal(t, "Meera Iyer", p.OwnerName)
	require.True(t, p.IsSellable)
	require.Equal(t, int64(500), p.SalePrice)

	entries, err := svc.History(ctx, id)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, types.OpBuy, e.Op)
	}
}

func TestBuy_ConcurrentBuyersOneWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()
		id := mustRegister(t, svc, 1000, 100)
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))

		const buyers = 8
		errs := make(chan error, buyers)
		var wg sync.WaitGroup
		for i := 0; i < buyers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- svc.Buy(ctx, buyer, registry.BuyRequest{
					ID: id, NewOwnerName: "N", NewGovUID: "U", NewOwnerAccount: newOwner, Payment: 100,
				})
			}()
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, ledger.ErrNotForSale)
		}
		require.Equal(t, 1, wins)

		bal, err := svc.Balance(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, int64(100), bal)
	})
}

func TestSplit_Scenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()
		id := mustRegister(t, svc, 1000, 800)
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))

		a, b, err := svc.Split(ctx, admin2, id, 30)
		require.NoError(t, err)
		require.Equal(t, uint64(1), a)
		require.Equal(t, uint64(2), b)

		orig, err := svc.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, orig.Retired)
		require.False(t, orig.IsSellable)

		for _, tc := range []struct {
			id   uint64
			cost int64
		}{{a, 300}, {b, 700}} {
			succ, err := svc.Get(ctx, tc.id)
			require.NoError(t, err)
			require.Equal(t, tc.cost, succ.Cost)
			require.Equal(t, orig.OwnerAccount, succ.OwnerAccount)
			require.Equal(t, orig.OwnerName, succ.OwnerName)
			require.Equal(t, orig.Location, succ.Location)
			require.False(t, succ.IsSellable)
			require.Zero(t, succ.SalePrice)
			require.False(t, succ.Retired)
			require.NotNil(t, succ.Parent)
			require.Equal(t, id, *succ.Parent)
		}

		n, err := svc.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(3), n)

		err = svc.Buy(ctx, buyer, registry.BuyRequest{ID: id, NewOwnerName: "N", NewGovUID: "U", NewOwnerAccount: newOwner, Payment: 5000})
		require.ErrorIs(t, err, ledger.ErrNotForSale)

		_, _, err = svc.Split(ctx, admin1, id, 50)
		require.ErrorIs(t, err, ledger.ErrRetired)

		err = svc.SetSellableAndUpdatePrice(ctx, owner, id, true, registry.Price(1))
		require.ErrorIs(t, err, ledger.ErrRetired)

		// successors are fully live
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, a, true, registry.Price(10)))
		_, _, err = svc.Split(ctx, admin1, b, 50)
		require.NoError(t, err)
	})
}

func TestSplit_RemainderGoesToFirstSuccessor(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ledger.NewMemory())
	id := mustRegister(t, svc, 1001, 0)

	a, b, err := svc.Split(ctx, admin1, id, 30)
	require.NoError(t, err)

	pa, err := svc.Get(ctx, a)
	require.NoError(t, err)
	pb, err := svc.Get(ctx, b)
	require.NoError(t, err)
	require.Equal(t, int64(301), pa.Cost)
	require.Equal(t, int64(700), pb.Cost)
}

func TestSplit_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ledger.NewMemory())
	id := mustRegister(t, svc, 1000, 0)

	for _, pct := range []int{0, 100, -5, 250} {
		_, _, err := svc.Split(ctx, admin1, id, pct)
		require.ErrorIs(t, err, ledger.ErrInvalidInput, "percentage %d", pct)
	}
	_, _, err := svc.Split(ctx, owner, id, 50)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, _, err = svc.Split(ctx, admin1, 7, 50)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestSplitCosts_ConserveValue(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cost := rapid.Int64Range(0, 1<<62).Draw(rt, "cost")
		pct := rapid.IntRange(1, 99).Draw(rt, "pct")

		a, b := registry.SplitCosts(cost, pct)
		require.Equal(rt, cost, a+b)
		require.GreaterOrEqual(rt, a, int64(0))
		require.GreaterOrEqual(rt, b, int64(0))
		// the second share is the floor of its exact proportion
		require.Equal(rt, b, cost/100*int64(100-pct)+(cost%100)*int64(100-pct)/100)
	})
}

func TestUpdateAdmins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()

		err := svc.UpdateAdmins(ctx, stranger, stranger, stranger)
		require.ErrorIs(t, err, ledger.ErrUnauthorized)
		pair, err := svc.Admins(ctx)
		require.NoError(t, err)
		require.Equal(t, types.AdminPair{Admin1: admin1, Admin2: admin2}, pair)

		err = svc.UpdateAdmins(ctx, admin1, "0xzz", stranger)
		require.ErrorIs(t, err, ledger.ErrInvalidInput)

		// one admin alone replaces both, removing the other
		require.NoError(t, svc.UpdateAdmins(ctx, admin2, stranger, "0x00000000000000000000000000000000000000FF"))

		for _, tc := range []struct {
			who  types.Account
			want bool
		}{
			{stranger, true},
			{"0x00000000000000000000000000000000000000ff", true},
			{admin1, false},
			{admin2, false},
		} {
			ok, err := svc.IsAdmin(ctx, tc.who)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok, "isAdmin(%s)", tc.who)
		}

		_, err = svc.Register(ctx, admin1, sampleRequest(1, 0))
		require.ErrorIs(t, err, ledger.ErrUnauthorized)
		_, err = svc.Register(ctx, stranger, sampleRequest(1, 0))
		require.NoError(t, err)
	})
}

func TestHistory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *registry.Service) {
		ctx := context.Background()
		id := mustRegister(t, svc, 1000, 100)
		require.NoError(t, svc.SetSellableAndUpdatePrice(ctx, owner, id, true, nil))
		require.NoError(t, svc.Buy(ctx, buyer, registry.BuyRequest{
			ID: id, NewOwnerName: "N", NewGovUID: "U", NewOwnerAccount: newOwner, Payment: 100,
		}))
		a, _, err := svc.Split(ctx, admin1, id, 40)
		require.NoError(t, err)

		entries, err := svc.History(ctx, id)
		require.NoError(t, err)
		var ops []types.Op
		for _, e := range entries {
			ops = append(ops, e.Op)
		}
		require.Equal(t, []types.Op{types.OpRegister, types.OpSetSellable, types.OpBuy, types.OpSplit}, ops)
		require.Equal(t, buyer, entries[2].Actor)

		succ, err := svc.History(ctx, a)
		require.NoError(t, err)
		require.Len(t, succ, 1)
		require.Equal(t, types.OpSplitCreate, succ[0].Op)

		_, err = svc.History(ctx, 999)
		require.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestBalance_RejectsMalformedAccount(t *testing.T) {
	svc := newService(t, ledger.NewMemory())
	_, err := svc.Balance(context.Background(), "alice")
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
}
