package ledger

import (
	"context"
	"fmt"
	"sync"

	"propertyregistry/internal/types"
)

// Memory is an in-process Store. Writers are serialized and stage their changes in an overlay
// that is published under the state lock only when the transaction succeeds, so readers never
// see a half-applied operation.
type Memory struct {
	writeMu sync.Mutex // one writer at a time

	mu    sync.RWMutex // guards state
	state memState
}

type memState struct {
	admins   types.AdminPair
	props    []types.Property
	balances map[types.Account]int64
	journal  []types.JournalEntry
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{state: memState{balances: make(map[types.Account]int64)}}
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tx := &memTx{
		memView: memView{state: &m.state},
		updates: make(map[uint64]types.Property),
		credits: make(map[types.Account]int64),
	}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	tx.commit(&m.state)
	return nil
}

// View implements Store.
func (m *Memory) View(ctx context.Context, fn func(tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(memView{state: &m.state})
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// memView reads committed state. The caller holds either the read lock or the write mutex.
type memView struct {
	state *memState
}

func (v memView) Admins(context.Context) (types.AdminPair, error) {
	return v.state.admins, nil
}

func (v memView) Count(context.Context) (uint64, error) {
	return uint64(len(v.state.props)), nil
}

func (v memView) Property(_ context.Context, id uint64) (types.Property, error) {
	if id >= uint64(len(v.state.props)) {
		return types.Property{}, Errorf(NotFound, "property", "property %d does not exist", id)
	}
	return v.state.props[id].Clone(), nil
}

func (v memView) Properties(_ context.Context, offset, limit uint64) ([]types.Property, error) {
	return pageOf(v.state.props, offset, limit), nil
}

func (v memView) Balance(_ context.Context, account types.Account) (int64, error) {
	return v.state.balances[account], nil
}

func (v memView) Journal(_ context.Context, propertyID uint64) ([]types.JournalEntry, error) {
	var out []types.JournalEntry
	for _, e := range v.state.journal {
		if e.PropertyID != nil && *e.PropertyID == propertyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func pageOf(props []types.Property, offset, limit uint64) []types.Property {
	n := uint64(len(props))
	if offset >= n {
		return nil
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	out := make([]types.Property, 0, end-offset)
	for _, p := range props[offset:end] {
		out = append(out, p.Clone())
	}
	return out
}

// memTx overlays staged writes on top of the committed state.
type memTx struct {
	memView

	admins   *types.AdminPair
	updates  map[uint64]types.Property
	appended []types.Property
	credits  map[types.Account]int64
	journal  []types.JournalEntry
}

func (tx *memTx) Admins(ctx context.Context) (types.AdminPair, error) {
	if tx.admins != nil {
		return *tx.admins, nil
	}
	return tx.memView.Admins(ctx)
}

func (tx *memTx) Count(context.Context) (uint64, error) {
	return uint64(len(tx.state.props) + len(tx.appended)), nil
}

func (tx *memTx) Property(ctx context.Context, id uint64) (types.Property, error) {
	base := uint64(len(tx.state.props))
	if id >= base {
		if id-base < uint64(len(tx.appended)) {
			return tx.appended[id-base].Clone(), nil
		}
		return types.Property{}, Errorf(NotFound, "property", "property %d does not exist", id)
	}
	if p, ok := tx.updates[id]; ok {
		return p.Clone(), nil
	}
	return tx.memView.Property(ctx, id)
}

func (tx *memTx) Properties(ctx context.Context, offset, limit uint64) ([]types.Property, error) {
	count, _ := tx.Count(ctx)
	all := make([]types.Property, 0, count)
	for id := uint64(0); id < count; id++ {
		p, err := tx.Property(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	return pageOf(all, offset, limit), nil
}

func (tx *memTx) Balance(ctx context.Context, account types.Account) (int64, error) {
	committed, _ := tx.memView.Balance(ctx, account)
	return committed + tx.credits[account], nil
}

func (tx *memTx) Journal(ctx context.Context, propertyID uint64) ([]types.JournalEntry, error) {
	out, _ := tx.memView.Journal(ctx, propertyID)
	for _, e := range tx.journal {
		if e.PropertyID != nil && *e.PropertyID == propertyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tx *memTx) SetAdmins(_ context.Context, pair types.AdminPair) error {
	tx.admins = &pair
	return nil
}

func (tx *memTx) InsertProperty(ctx context.Context, p types.Property) (uint64, error) {
	id, _ := tx.Count(ctx)
	p.ID = id
	tx.appended = append(tx.appended, p.Clone())
	return id, nil
}

func (tx *memTx) UpdateProperty(_ context.Context, p types.Property) error {
	base := uint64(len(tx.state.props))
	switch {
	case p.ID < base:
		tx.updates[p.ID] = p.Clone()
	case p.ID-base < uint64(len(tx.appended)):
		tx.appended[p.ID-base] = p.Clone()
	default:
		return Errorf(NotFound, "update property", "property %d does not exist", p.ID)
	}
	return nil
}

func (tx *memTx) Credit(_ context.Context, account types.Account, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit %s: negative amount %d", account, amount)
	}
	tx.credits[account] += amount
	return nil
}

func (tx *memTx) AppendJournal(_ context.Context, entry types.JournalEntry) error {
	tx.journal = append(tx.journal, entry)
	return nil
}

func (tx *memTx) commit(s *memState) {
	if tx.admins != nil {
		s.admins = *tx.admins
	}
	for id, p := range tx.updates {
		s.props[id] = p
	}
	s.props = append(s.props, tx.appended...)
	for account, amount := range tx.credits {
		s.balances[account] += amount
	}
	seq := int64(len(s.journal))
	for _, e := range tx.journal {
		seq++
		e.Seq = seq
		s.journal = append(s.journal, e)
	}
}
