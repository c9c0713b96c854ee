package models

import (
	"time"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// LedgerKind classifies what balance a ledger entry moves.
type LedgerKind string

const (
	LedgerPoints    LedgerKind = "points"
	LedgerCash      LedgerKind = "cash"
	LedgerInventory LedgerKind = "inventory"
)

// LedgerRef points at the document that caused an entry.
type LedgerRef struct {
	Collection string      `bson:"collection" json:"collection"`
	ID         utils.SixID `bson:"id" json:"id"`
}

// LedgerEntry is an append-only record of a single balance mutation. Entries
// are written before the counter update they mirror and are never updated,
// so account balances can be recomputed and audited from the ledger alone.
type LedgerEntry struct {
	Base      `bson:",inline"`
	Role      Role        `bson:"role" json:"role"`
	AccountID utils.SixID `bson:"account_id" json:"account_id"`
	Kind      LedgerKind  `bson:"kind" json:"kind"`
	Delta     float64     `bson:"delta" json:"delta"`
	WasteType string      `bson:"waste_type,omitempty" json:"waste_type,omitempty"`
	Reference LedgerRef   `bson:"reference" json:"reference"`
	Note      string      `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}
