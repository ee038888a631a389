package engine

import (
	"github.com/idxquant/swingbt/internal/types"
)

// Ledger is the append-only record of closed trades. Records are kept in
// close order and are never mutated after appending; metrics read the ledger
// through a copy.
type Ledger struct {
	records []types.TradeRecord
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append validates the record and appends it to the ledger.
func (l *Ledger) Append(record types.TradeRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	l.records = append(l.records, record)

	return nil
}

// Records returns a copy of all records in close order.
func (l *Ledger) Records() []types.TradeRecord {
	out := make([]types.TradeRecord, len(l.records))
	copy(out, l.records)

	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}
