package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sonobot/backend/internal/config"
	"github.com/sonobot/backend/internal/models"
	"github.com/sonobot/backend/internal/parser"
)

// hcmLocation anchors day/week/month windows to the users' timezone.
var hcmLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.Local
	}
	return loc
}()

// LedgerService appends debt/repayment transactions and drives the
// confirmation state machine. A transaction against a linked counterparty
// is created PENDING with a confirmation code; against a free-text name it
// is CONFIRMED immediately, since there is no party identity to confirm
// with.
type LedgerService struct {
	db        *sql.DB
	directory *DirectoryService
	config    *config.CodesConfig
	audit     *AuditLogger
}

func NewLedgerService(db *sql.DB, directory *DirectoryService) *LedgerService {
	return &LedgerService{
		db:        db,
		directory: directory,
		config:    config.LoadCodesConfig(),
		audit:     NewAuditLogger(),
	}
}

// RecordResult reports what Record did: the stored transaction, and, when
// the counterparty resolved to a linked party, who must confirm it.
type RecordResult struct {
	Transaction  *models.Transaction
	Counterparty parser.LinkedName // zero value when unlinked
	Linked       bool
	DirectLinked bool // a link was created on the fly from an exact alias match
}

// Record appends a DEBT or PAID transaction for the parsed intent.
func (s *LedgerService) Record(ctx context.Context, creatorID string, intent *parser.Intent) (*RecordResult, error) {
	kind := models.KindDebt
	if intent.Kind == parser.IntentPaid {
		kind = models.KindPaid
	}
	if intent.Amount <= 0 || intent.Amount > parser.MaxAmount {
		return nil, userErr(ErrValidation, "Số tiền không hợp lệ.")
	}

	result := &RecordResult{}
	label := intent.Counterparty

	switch {
	case intent.CounterpartyIndex > 0:
		linked, err := s.directory.LinkedCounterparties(ctx, creatorID)
		if err != nil {
			return nil, err
		}
		if intent.CounterpartyIndex > len(linked) {
			return nil, userErr(ErrNotFound,
				"Bạn không có bạn số %d, gõ \"friends\" để xem danh sách.", intent.CounterpartyIndex)
		}
		result.Counterparty = linked[intent.CounterpartyIndex-1]
		result.Linked = true
		label = result.Counterparty.DisplayName

	case label == "":
		label = models.SharedPoolLabel

	default:
		linked, err := s.directory.LinkedCounterparties(ctx, creatorID)
		if err != nil {
			return nil, err
		}
		key := parser.Normalize(label)
		for _, ln := range linked {
			if parser.Normalize(ln.DisplayName) == key {
				result.Counterparty = ln
				result.Linked = true
				label = ln.DisplayName
				break
			}
		}
		if !result.Linked {
			link, err := s.directory.DirectLink(ctx, creatorID, label)
			if err != nil {
				return nil, err
			}
			if link != nil {
				result.Counterparty = parser.LinkedName{PartyID: link.PartyB, DisplayName: label}
				result.Linked = true
				result.DirectLinked = true
			}
		}
	}

	txn := &models.Transaction{
		Ref:               uuid.New().String(),
		CreatorID:         creatorID,
		CounterpartyLabel: label,
		Kind:              kind,
		Amount:            intent.Amount,
		Note:              intent.Note,
		Status:            models.StatusConfirmed,
	}
	if result.Linked {
		txn.CounterpartyID = result.Counterparty.PartyID
		txn.Status = models.StatusPending
		code, err := s.freshConfirmCode(ctx)
		if err != nil {
			return nil, err
		}
		txn.ConfirmationCode = code
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transactions (ref, creator_id, counterparty_label, counterparty_id, kind, amount, note, status, confirmation_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, txn.Ref, txn.CreatorID, txn.CounterpartyLabel, txn.CounterpartyID,
		txn.Kind, txn.Amount, txn.Note, txn.Status, txn.ConfirmationCode,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	s.audit.LogRecord(creatorID, txn.Ref, txn.Kind, txn.Amount, txn.Status)
	log.Printf("[LEDGER] Recorded %s %d for %s (status=%s)", txn.Kind, txn.Amount, creatorID, txn.Status)
	result.Transaction = txn
	return result, nil
}

// Confirm finalizes a pending transaction. Only the named counterparty may
// confirm; a terminal transaction yields an "already processed" outcome.
func (s *LedgerService) Confirm(ctx context.Context, partyID, code string) (*models.Transaction, error) {
	return s.decide(ctx, partyID, code, models.StatusConfirmed)
}

// Reject marks a pending transaction rejected, under the same
// authorization and terminal-state rules as Confirm.
func (s *LedgerService) Reject(ctx context.Context, partyID, code string) (*models.Transaction, error) {
	return s.decide(ctx, partyID, code, models.StatusRejected)
}

// decide serializes the PENDING -> terminal transition per code with a row
// lock, so two simultaneous decisions cannot both observe PENDING. Code
// generation only excludes codes held by pending rows, so an old terminal
// row may share the code with a live one; the pending row wins the lookup.
func (s *LedgerService) decide(ctx context.Context, partyID, code, target string) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var txn models.Transaction
	err = tx.QueryRowContext(ctx, `
		SELECT id, ref, creator_id, counterparty_label, counterparty_id, kind, amount, note, status
		FROM transactions
		WHERE confirmation_code = $1
		ORDER BY (status <> 'PENDING'), id
		LIMIT 1
		FOR UPDATE
	`, code).Scan(&txn.ID, &txn.Ref, &txn.CreatorID, &txn.CounterpartyLabel,
		&txn.CounterpartyID, &txn.Kind, &txn.Amount, &txn.Note, &txn.Status)
	if err == sql.ErrNoRows {
		return nil, userErr(ErrNotFound, "Mã %s không tồn tại.", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up confirmation code: %w", err)
	}

	if txn.CounterpartyID != partyID {
		return nil, userErr(ErrNotAllowed, "Bạn không có quyền xử lý giao dịch này.")
	}
	if txn.Status != models.StatusPending {
		return nil, userErr(ErrConflict, "Giao dịch với mã %s đã được xử lý trước đó.", code)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, decided_at = $2 WHERE id = $3
	`, target, now, txn.ID); err != nil {
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	txn.Status = target
	txn.DecidedAt = &now
	s.audit.LogDecision(partyID, txn.Ref, target)
	log.Printf("[LEDGER] Transaction %s decided: %s by %s", txn.Ref, target, partyID)
	return &txn, nil
}

// Undo deletes the invoking party's own most recently created transaction,
// regardless of its confirmation status.
func (s *LedgerService) Undo(ctx context.Context, partyID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ref, counterparty_label, kind, amount, note, status
		FROM transactions
		WHERE creator_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, partyID).Scan(&txn.ID, &txn.Ref, &txn.CounterpartyLabel, &txn.Kind, &txn.Amount, &txn.Note, &txn.Status)
	if err == sql.ErrNoRows {
		return nil, userErr(ErrNotFound, "Bạn chưa có giao dịch nào để xoá.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last transaction: %w", err)
	}
	txn.CreatorID = partyID

	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, txn.ID); err != nil {
		return nil, fmt.Errorf("failed to delete transaction: %w", err)
	}

	s.audit.LogUndo(partyID, txn.Ref, txn.Amount)
	log.Printf("[LEDGER] Undo by %s removed %s", partyID, txn.Ref)
	return &txn, nil
}

// PendingFor returns the transactions awaiting the party's decision and
// the party's own entries still awaiting the other side.
func (s *LedgerService) PendingFor(ctx context.Context, partyID string) (awaiting, waiting []models.Transaction, err error) {
	awaiting, err = s.queryTransactions(ctx, `
		SELECT id, ref, creator_id, counterparty_label, counterparty_id, kind, amount, note, status, confirmation_code, created_at
		FROM transactions
		WHERE counterparty_id = $1 AND status = $2
		ORDER BY id
	`, partyID, models.StatusPending)
	if err != nil {
		return nil, nil, err
	}
	waiting, err = s.queryTransactions(ctx, `
		SELECT id, ref, creator_id, counterparty_label, counterparty_id, kind, amount, note, status, confirmation_code, created_at
		FROM transactions
		WHERE creator_id = $1 AND status = $2
		ORDER BY id
	`, partyID, models.StatusPending)
	if err != nil {
		return nil, nil, err
	}
	return awaiting, waiting, nil
}

// Search lists the party's visible transactions whose note or counterparty
// label contains the keyword under normalized comparison.
func (s *LedgerService) Search(ctx context.Context, partyID, keyword string) ([]models.Transaction, error) {
	key := parser.Normalize(keyword)
	if key == "" {
		return nil, userErr(ErrValidation, "Từ khoá tìm kiếm không hợp lệ.")
	}

	rows, err := s.queryTransactions(ctx, `
		SELECT id, ref, creator_id, counterparty_label, counterparty_id, kind, amount, note, status, confirmation_code, created_at
		FROM transactions
		WHERE creator_id = $1 OR counterparty_id = $1
		ORDER BY id DESC
		LIMIT 200
	`, partyID)
	if err != nil {
		return nil, err
	}

	var matched []models.Transaction
	for _, txn := range rows {
		if containsNormalized(txn.Note, key) || containsNormalized(txn.CounterpartyLabel, key) {
			matched = append(matched, txn)
			if len(matched) == 10 {
				break
			}
		}
	}
	return matched, nil
}

// StatsReport sums a party's confirmed activity inside a period.
type StatsReport struct {
	Period    string
	DebtTotal int64
	PaidTotal int64
	Count     int
}

// Stats aggregates the party's own confirmed entries since the start of
// the given period (day, week, month) in Asia/Ho_Chi_Minh.
func (s *LedgerService) Stats(ctx context.Context, partyID, period string) (*StatsReport, error) {
	start, err := periodStart(period, time.Now().In(hcmLocation))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE creator_id = $1 AND status = $2 AND created_at >= $3
		GROUP BY kind
	`, partyID, models.StatusConfirmed, start)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	defer rows.Close()

	report := &StatsReport{Period: period}
	for rows.Next() {
		var kind string
		var count int
		var total int64
		if err := rows.Scan(&kind, &count, &total); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		report.Count += count
		switch kind {
		case models.KindDebt:
			report.DebtTotal = total
		case models.KindPaid:
			report.PaidTotal = total
		}
	}
	return report, rows.Err()
}

func periodStart(period string, now time.Time) (time.Time, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case parser.PeriodDay:
		return midnight, nil
	case parser.PeriodWeek:
		// Weeks start on Monday.
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset), nil
	case parser.PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	}
	return time.Time{}, userErr(ErrValidation, "Khoảng thời gian không hợp lệ.")
}

func containsNormalized(haystack, normalizedNeedle string) bool {
	return normalizedNeedle != "" && strings.Contains(parser.Normalize(haystack), normalizedNeedle)
}

func (s *LedgerService) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.Ref, &txn.CreatorID, &txn.CounterpartyLabel,
			&txn.CounterpartyID, &txn.Kind, &txn.Amount, &txn.Note, &txn.Status,
			&txn.ConfirmationCode, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

// freshConfirmCode generates a confirmation code and retries while another
// pending transaction already holds it.
func (s *LedgerService) freshConfirmCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := GenerateCode(s.config.ConfirmCodeLength)
		var exists bool
		err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM transactions WHERE confirmation_code = $1 AND status = $2
			)
		`, code, models.StatusPending).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to check confirmation code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("failed to generate a unique confirmation code")
}
