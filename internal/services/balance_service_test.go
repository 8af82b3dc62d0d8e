package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/sonobot/backend/internal/models"
)

func newBalanceForTest(t *testing.T) (*BalanceService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	directory := NewDirectoryService(db, nil)
	return NewBalanceService(db, directory), mock
}

func confirmedRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"creator_id", "counterparty_label", "kind", "amount"})
}

func expectFriends(mock sqlmock.Sqlmock, partyID string, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT party_a, party_b, name_b_for_a, name_a_for_b").
		WithArgs(models.LinkActive, partyID).
		WillReturnRows(rows)
}

func TestBalanceService_ComputeBalances(t *testing.T) {
	ctx := context.Background()

	t.Run("own entries net per counterparty", func(t *testing.T) {
		service, mock := newBalanceForTest(t)

		mock.ExpectQuery("SELECT creator_id, counterparty_label, kind, amount").
			WithArgs(models.StatusConfirmed, "alice").
			WillReturnRows(confirmedRows().
				AddRow("alice", "Bảo", models.KindDebt, int64(50000)).
				AddRow("alice", "bao", models.KindPaid, int64(20000)).
				AddRow("alice", "Chi", models.KindDebt, int64(10000)))
		expectFriends(mock, "alice", emptyFriendRows())

		report, err := service.ComputeBalances(ctx, "alice", "", false)

		assert.NoError(t, err)
		assert.Len(t, report.Counterparties, 2)
		assert.Equal(t, "Bảo", report.Counterparties[0].Label)
		assert.Equal(t, int64(30000), report.Counterparties[0].Balance)
		assert.Equal(t, "Chi", report.Counterparties[1].Label)
		assert.Equal(t, int64(10000), report.Counterparties[1].Balance)
		assert.Equal(t, int64(40000), report.Total)
	})

	t.Run("a row authored by the other side is inverted for the viewer", func(t *testing.T) {
		service, mock := newBalanceForTest(t)

		// Bob recorded "Alice owes me 50000"; Alice sees -50000 under Bob.
		mock.ExpectQuery("SELECT creator_id, counterparty_label, kind, amount").
			WithArgs(models.StatusConfirmed, "alice").
			WillReturnRows(confirmedRows().
				AddRow("bob", "Alice", models.KindDebt, int64(50000)).
				AddRow("alice", "Bob", models.KindDebt, int64(20000)))
		expectFriends(mock, "alice", emptyFriendRows().AddRow("alice", "bob", "Bob", "Alice"))

		report, err := service.ComputeBalances(ctx, "alice", "", false)

		assert.NoError(t, err)
		assert.Len(t, report.Counterparties, 1)
		assert.Equal(t, "Bob", report.Counterparties[0].Label)
		assert.Equal(t, int64(-30000), report.Counterparties[0].Balance)
		assert.Equal(t, int64(-30000), report.Total)
	})

	t.Run("unlinked creator falls back to their alias", func(t *testing.T) {
		service, mock := newBalanceForTest(t)

		mock.ExpectQuery("SELECT creator_id, counterparty_label, kind, amount").
			WithArgs(models.StatusConfirmed, "alice").
			WillReturnRows(confirmedRows().
				AddRow("carol", "Alice", models.KindPaid, int64(15000)))
		expectFriends(mock, "alice", emptyFriendRows())
		mock.ExpectQuery("SELECT display_name FROM aliases WHERE party_id").
			WithArgs("carol").
			WillReturnRows(sqlmock.NewRows([]string{"display_name"}).AddRow("Carol"))

		report, err := service.ComputeBalances(ctx, "alice", "", false)

		assert.NoError(t, err)
		assert.Len(t, report.Counterparties, 1)
		assert.Equal(t, "Carol", report.Counterparties[0].Label)
		assert.Equal(t, int64(15000), report.Counterparties[0].Balance)
	})

	t.Run("only owing hides non-positive buckets but keeps the total", func(t *testing.T) {
		service, mock := newBalanceForTest(t)

		mock.ExpectQuery("SELECT creator_id, counterparty_label, kind, amount").
			WithArgs(models.StatusConfirmed, "alice").
			WillReturnRows(confirmedRows().
				AddRow("alice", "Bảo", models.KindDebt, int64(10000)).
				AddRow("alice", "Chi", models.KindPaid, int64(5000)))
		expectFriends(mock, "alice", emptyFriendRows())

		report, err := service.ComputeBalances(ctx, "alice", "", true)

		assert.NoError(t, err)
		assert.Len(t, report.Counterparties, 1)
		assert.Equal(t, "Bảo", report.Counterparties[0].Label)
		assert.Equal(t, int64(5000), report.Total)
	})

	t.Run("name filter restricts the listing, not the total", func(t *testing.T) {
		service, mock := newBalanceForTest(t)

		mock.ExpectQuery("SELECT creator_id, counterparty_label, kind, amount").
			WithArgs(models.StatusConfirmed, "alice").
			WillReturnRows(confirmedRows().
				AddRow("alice", "Bảo", models.KindDebt, int64(10000)).
				AddRow("alice", "Chi", models.KindDebt, int64(7000)))
		expectFriends(mock, "alice", emptyFriendRows())

		report, err := service.ComputeBalances(ctx, "alice", "bảo", false)

		assert.NoError(t, err)
		assert.Len(t, report.Counterparties, 1)
		assert.Equal(t, "Bảo", report.Counterparties[0].Label)
		assert.Equal(t, int64(17000), report.Total)
	})

	t.Run("no confirmed activity", func(t *testing.T) {
		service, mock := newBalanceForTest(t)

		mock.ExpectQuery("SELECT creator_id, counterparty_label, kind, amount").
			WithArgs(models.StatusConfirmed, "alice").
			WillReturnRows(confirmedRows())
		expectFriends(mock, "alice", emptyFriendRows())

		report, err := service.ComputeBalances(ctx, "alice", "", false)

		assert.NoError(t, err)
		assert.Empty(t, report.Counterparties)
		assert.Zero(t, report.Total)
	})
}
