package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/sonobot/backend/internal/models"
	"github.com/sonobot/backend/internal/parser"
)

// CounterpartyBalance is one bucket of the balance report. Positive means
// the counterparty owes the viewing party.
type CounterpartyBalance struct {
	Label   string // first human-readable spelling encountered
	Balance int64
}

// BalanceReport is the folded view of a party's confirmed transactions.
type BalanceReport struct {
	Counterparties []CounterpartyBalance
	Total          int64
}

// BalanceService folds a party's visible confirmed transactions into
// signed per-counterparty balances. A single ledger row is authored by one
// side; when the viewing party is the named counterparty the direction is
// inverted so the row nets correctly from both viewpoints.
type BalanceService struct {
	db        *sql.DB
	directory *DirectoryService
}

func NewBalanceService(db *sql.DB, directory *DirectoryService) *BalanceService {
	return &BalanceService{db: db, directory: directory}
}

// ComputeBalances aggregates for one party. filterName, when non-empty,
// restricts the listing to one normalized counterparty bucket. onlyOwing
// keeps only strictly positive buckets. Neither changes the total.
func (s *BalanceService) ComputeBalances(ctx context.Context, partyID, filterName string, onlyOwing bool) (*BalanceReport, error) {
	type entry struct {
		creatorID string
		label     string
		kind      string
		amount    int64
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT creator_id, counterparty_label, kind, amount
		FROM transactions
		WHERE status = $1 AND (creator_id = $2 OR counterparty_id = $2)
		ORDER BY id
	`, models.StatusConfirmed, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed transactions: %w", err)
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.creatorID, &e.label, &e.kind, &e.amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	rows.Close()

	// Reverse names: how this party refers to each linked creator.
	linked, err := s.directory.LinkedCounterparties(ctx, partyID)
	if err != nil {
		return nil, err
	}
	peerName := make(map[string]string, len(linked))
	for _, ln := range linked {
		peerName[ln.PartyID] = ln.DisplayName
	}

	type bucket struct {
		label   string
		balance int64
	}
	buckets := map[string]*bucket{}
	var order []string

	add := func(label string, delta int64) {
		key := parser.Normalize(label)
		if key == "" {
			key = label
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{label: label}
			buckets[key] = b
			order = append(order, key)
		}
		b.balance += delta
	}

	for _, e := range entries {
		if e.creatorID == partyID {
			// My own entry: DEBT means they owe me, PAID means I paid them.
			if e.kind == models.KindDebt {
				add(e.label, e.amount)
			} else {
				add(e.label, -e.amount)
			}
			continue
		}

		// I am the named counterparty: the creator's DEBT means I owe them,
		// the creator's PAID means they paid me.
		name := peerName[e.creatorID]
		if name == "" {
			name, err = s.directory.ResolveDisplayName(ctx, e.creatorID)
			if err != nil {
				return nil, err
			}
			if name == "" {
				name = e.creatorID
			}
			peerName[e.creatorID] = name
		}
		if e.kind == models.KindDebt {
			add(name, -e.amount)
		} else {
			add(name, e.amount)
		}
	}

	report := &BalanceReport{}
	filterKey := parser.Normalize(filterName)
	for _, key := range order {
		b := buckets[key]
		report.Total += b.balance
		if filterKey != "" && key != filterKey {
			continue
		}
		if onlyOwing && b.balance <= 0 {
			continue
		}
		report.Counterparties = append(report.Counterparties, CounterpartyBalance{
			Label:   b.label,
			Balance: b.balance,
		})
	}

	sort.SliceStable(report.Counterparties, func(i, j int) bool {
		return report.Counterparties[i].Balance > report.Counterparties[j].Balance
	})
	return report, nil
}
