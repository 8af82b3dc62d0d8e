package models

import (
	"time"
)

// Transaction kinds
const (
	KindDebt = "DEBT"
	KindPaid = "PAID"
)

// Transaction statuses
const (
	StatusConfirmed = "CONFIRMED"
	StatusPending   = "PENDING"
	StatusRejected  = "REJECTED"
)

// SharedPoolLabel is the counterparty label used when a debt is recorded
// against the shared pool instead of a named person.
const SharedPoolLabel = "Chung"

// Transaction represents one debt or repayment entry in the ledger.
// The row id doubles as the handle for update/delete and as the
// insertion-order key behind "most recent" semantics.
type Transaction struct {
	ID                int64      `json:"id" db:"id"`
	Ref               string     `json:"ref" db:"ref"`
	CreatorID         string     `json:"creator_id" db:"creator_id"`
	CounterpartyLabel string     `json:"counterparty_label" db:"counterparty_label"`
	CounterpartyID    string     `json:"counterparty_id" db:"counterparty_id"` // empty when unlinked
	Kind              string     `json:"kind" db:"kind"`
	Amount            int64      `json:"amount" db:"amount"` // smallest currency unit
	Note              string     `json:"note" db:"note"`
	Status            string     `json:"status" db:"status"`
	ConfirmationCode  string     `json:"confirmation_code,omitempty" db:"confirmation_code"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	DecidedAt         *time.Time `json:"decided_at,omitempty" db:"decided_at"`
}

// AwaitsDecisionBy reports whether the transaction is pending a decision
// from the given party.
func (t *Transaction) AwaitsDecisionBy(partyID string) bool {
	return t.Status == StatusPending && t.CounterpartyID == partyID
}
