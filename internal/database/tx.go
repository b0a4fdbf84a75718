package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/types"
)

// txn implements ledger.Tx over one *sql.Tx. View hands it out as a ledger.ReadTx.
type txn struct {
	tx *sql.Tx
	d  dialect
}

var _ ledger.Tx = (*txn)(nil)

const propertyColumns = `id, owner_name, gov_uid, owner_account, address_line1, address_line2,
	city, state, country, pin_code, cost, is_sellable, sale_price, parent_id, retired`

type metaRow struct {
	admins types.AdminPair
	count  uint64
}

func (t *txn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(query), args...)
}

func (t *txn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

func (t *txn) meta(ctx context.Context, lock bool) (metaRow, error) {
	query := `SELECT admin1, admin2, property_count FROM registry_meta WHERE id = 1`
	if lock {
		query += t.d.lockMeta
	}
	var (
		a1, a2 sql.NullString
		count  int64
	)
	if err := t.queryRow(ctx, query).Scan(&a1, &a2, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return metaRow{}, fmt.Errorf("registry_meta row is missing; schema not initialized")
		}
		return metaRow{}, fmt.Errorf("read registry meta: %w", err)
	}
	return metaRow{
		admins: types.AdminPair{Admin1: types.Account(a1.String), Admin2: types.Account(a2.String)},
		count:  uint64(count),
	}, nil
}

// Admins implements ledger.ReadTx.
func (t *txn) Admins(ctx context.Context) (types.AdminPair, error) {
	m, err := t.meta(ctx, false)
	return m.admins, err
}

// Count implements ledger.ReadTx.
func (t *txn) Count(ctx context.Context) (uint64, error) {
	m, err := t.meta(ctx, false)
	return m.count, err
}

// Property implements ledger.ReadTx.
func (t *txn) Property(ctx context.Context, id uint64) (types.Property, error) {
	row := t.queryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, int64(id))
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Property{}, ledger.Errorf(ledger.NotFound, "property", "property %d does not exist", id)
		}
		return types.Property{}, fmt.Errorf("failed to query property: %w", err)
	}
	return p, nil
}

// Properties implements ledger.ReadTx.
func (t *txn) Properties(ctx context.Context, offset, limit uint64) ([]types.Property, error) {
	query, args := t.d.page(`SELECT `+propertyColumns+` FROM properties ORDER BY id`, offset, limit)
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []types.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}
	return properties, nil
}

// Balance implements ledger.ReadTx.
func (t *txn) Balance(ctx context.Context, account types.Account) (int64, error) {
	var amount int64
	err := t.queryRow(ctx, `SELECT amount FROM balances WHERE account = ?`, string(account)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return amount, nil
}

// Journal implements ledger.ReadTx.
func (t *txn) Journal(ctx context.Context, propertyID uint64) ([]types.JournalEntry, error) {
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(
		`SELECT seq, id, op, property_id, actor, detail, occurred_at
		 FROM ledger_events WHERE property_id = ? ORDER BY seq`), int64(propertyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []types.JournalEntry
	for rows.Next() {
		var (
			e      types.JournalEntry
			op     string
			actor  string
			pid    sql.NullInt64
			detail sql.NullString
			millis int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &op, &pid, &actor, &detail, &millis); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Op = types.Op(op)
		e.Actor = types.Account(actor)
		e.Detail = detail.String
		e.At = time.UnixMilli(millis).UTC()
		if pid.Valid {
			id := uint64(pid.Int64)
			e.PropertyID = &id
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}
	return entries, nil
}

// SetAdmins implements ledger.Tx.
func (t *txn) SetAdmins(ctx context.Context, pair types.AdminPair) error {
	_, err := t.exec(ctx, `UPDATE registry_meta SET admin1 = ?, admin2 = ? WHERE id = 1`,
		nullString(string(pair.Admin1)), nullString(string(pair.Admin2)))
	if err != nil {
		return fmt.Errorf("failed to update admins: %w", err)
	}
	return nil
}

// InsertProperty implements ledger.Tx.
func (t *txn) InsertProperty(ctx context.Context, p types.Property) (uint64, error) {
	m, err := t.meta(ctx, false)
	if err != nil {
		return 0, err
	}
	p.ID = m.count
	_, err = t.exec(ctx, `INSERT INTO properties (`+propertyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, propertyArgs(p)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert property: %w", err)
	}
	if _, err := t.exec(ctx, `UPDATE registry_meta SET property_count = ? WHERE id = 1`, int64(m.count+1)); err != nil {
		return 0, fmt.Errorf("failed to bump property count: %w", err)
	}
	return p.ID, nil
}

// UpdateProperty implements ledger.Tx.
func (t *txn) UpdateProperty(ctx context.Context, p types.Property) error {
	args := propertyArgs(p)
	// id moves from first to last for the WHERE clause
	args = append(args[1:], args[0])
	res, err := t.exec(ctx, `UPDATE properties SET
		owner_name = ?, gov_uid = ?, owner_account = ?, address_line1 = ?, address_line2 = ?,
		city = ?, state = ?, country = ?, pin_code = ?, cost = ?, is_sellable = ?, sale_price = ?,
		parent_id = ?, retired = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update property: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update property: %w", err)
	}
	if n == 0 {
		return ledger.Errorf(ledger.NotFound, "update property", "property %d does not exist", p.ID)
	}
	return nil
}

// Credit implements ledger.Tx.
func (t *txn) Credit(ctx context.Context, account types.Account, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit %s: negative amount %d", account, amount)
	}
	if _, err := t.exec(ctx, t.d.credit, string(account), amount); err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}
	return nil
}

// AppendJournal implements ledger.Tx.
func (t *txn) AppendJournal(ctx context.Context, e types.JournalEntry) error {
	var seq int64
	if err := t.queryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM ledger_events`).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read journal sequence: %w", err)
	}
	var pid sql.NullInt64
	if e.PropertyID != nil {
		pid = sql.NullInt64{Int64: int64(*e.PropertyID), Valid: true}
	}
	_, err := t.exec(ctx, `INSERT INTO ledger_events (seq, id, op, property_id, actor, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seq+1, e.ID, string(e.Op), pid, string(e.Actor), nullString(e.Detail), e.At.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProperty(row scanner) (types.Property, error) {
	var (
		p                 types.Property
		id, cost, price   int64
		sellable, retired int64
		owner             string
		line2             sql.NullString
		parent            sql.NullInt64
	)
	err := row.Scan(&id, &p.OwnerName, &p.GovUID, &owner, &p.AddressLine1, &line2,
		&p.City, &p.State, &p.Country, &p.PinCode, &cost, &sellable, &price, &parent, &retired)
	if err != nil {
		return types.Property{}, err
	}
	p.ID = uint64(id)
	p.OwnerAccount = types.Account(owner)
	p.AddressLine2 = line2.String
	p.Cost = cost
	p.IsSellable = sellable != 0
	p.SalePrice = price
	p.Retired = retired != 0
	if parent.Valid {
		pid := uint64(parent.Int64)
		p.Parent = &pid
	}
	return p, nil
}

func propertyArgs(p types.Property) []any {
	var parent sql.NullInt64
	if p.Parent != nil {
		parent = sql.NullInt64{Int64: int64(*p.Parent), Valid: true}
	}
	return []any{
		int64(p.ID), p.OwnerName, p.GovUID, string(p.OwnerAccount), p.AddressLine1,
		nullString(p.AddressLine2), p.City, p.State, p.Country, p.PinCode, p.Cost,
		boolInt(p.IsSellable), p.SalePrice, parent, boolInt(p.Retired),
	}
}

// nullString stores "" as NULL. Oracle does that anyway; doing it everywhere keeps both
// dialects reading back the same value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
