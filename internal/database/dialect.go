package database

import (
	"strconv"
	"strings"
)

// dialect holds the SQL that differs between SQLite and Oracle. Queries are written with ?
// placeholders and rebound per dialect.
type dialect struct {
	name   string
	driver string

	// numbered rebinds ? to :1, :2, ...
	numbered bool
	// lockMeta is appended to the registry_meta read that opens every write transaction.
	lockMeta string
	// viewStmt, when set, opens every read transaction to pin a snapshot.
	viewStmt string
	credit   string
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	credit: `INSERT INTO balances (account, amount) VALUES (?, ?)
		ON CONFLICT (account) DO UPDATE SET amount = balances.amount + excluded.amount`,
}

var oracleDialect = dialect{
	name:     "oracle",
	driver:   "oracle",
	numbered: true,
	lockMeta: " FOR UPDATE",
	viewStmt: "SET TRANSACTION READ ONLY",
	credit: `MERGE INTO balances b
		USING (SELECT ? AS account, ? AS amount FROM dual) s
		ON (b.account = s.account)
		WHEN MATCHED THEN UPDATE SET b.amount = b.amount + s.amount
		WHEN NOT MATCHED THEN INSERT (account, amount) VALUES (s.account, s.amount)`,
}

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// page appends a row window to query. A zero limit means no upper bound.
func (d dialect) page(query string, offset, limit uint64) (string, []any) {
	if d.numbered {
		if limit == 0 {
			return query + " OFFSET ? ROWS", []any{int64(offset)}
		}
		return query + " OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", []any{int64(offset), int64(limit)}
	}
	if limit == 0 {
		return query + " LIMIT -1 OFFSET ?", []any{int64(offset)}
	}
	return query + " LIMIT ? OFFSET ?", []any{int64(limit), int64(offset)}
}
