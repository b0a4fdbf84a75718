package types

import "time"

// Op names a mutating registry operation as recorded in the journal.
type Op string

const (
	OpBootstrap    Op = "bootstrap"
	OpRegister     Op = "register"
	OpSetSellable  Op = "set_sellable"
	OpBuy          Op = "buy"
	OpSplit        Op = "split"
	OpSplitCreate  Op = "split_successor"
	OpUpdateAdmins Op = "update_admins"
)

// JournalEntry records one committed mutation. PropertyID is nil for admin-pair changes.
type JournalEntry struct {
	ID         string
	Seq        int64
	Op         Op
	PropertyID *uint64
	Actor      Account
	Detail     string
	At         time.Time
}
