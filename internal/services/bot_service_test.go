package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/sonobot/backend/internal/models"
)

type countingProfiles struct {
	name  string
	calls int
}

func (p *countingProfiles) GetProfile(ctx context.Context, partyID string) (string, error) {
	p.calls++
	return p.name, nil
}

func newBotForTest(t *testing.T) (*BotService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	directory := NewDirectoryService(db, nil)
	ledger := NewLedgerService(db, directory)
	balances := NewBalanceService(db, directory)
	return NewBotService(directory, ledger, balances, nil), mock
}

func expectExistingAlias(mock sqlmock.Sqlmock, partyID, name string) {
	mock.ExpectQuery("SELECT display_name FROM aliases WHERE party_id").
		WithArgs(partyID).
		WillReturnRows(sqlmock.NewRows([]string{"display_name"}).AddRow(name))
}

func TestBotService_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("help lists the command surface", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")

		reply, notifications := bot.HandleMessage(ctx, "party1", "help")

		assert.Contains(t, reply, "no <số tiền>")
		assert.Contains(t, reply, "sharecode")
		assert.Empty(t, notifications)
	})

	t.Run("unrecognized text gets the fallback hint", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")
		expectFriends(mock, "party1", emptyFriendRows())

		reply, _ := bot.HandleMessage(ctx, "party1", "xin chào bạn")

		assert.Equal(t, notUnderstoodReply, reply)
	})

	t.Run("debt without a counterparty books against the shared pool", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "party1", models.SharedPoolLabel, "", models.KindDebt,
				int64(50000), "tiền cơm", models.StatusConfirmed, "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

		reply, notifications := bot.HandleMessage(ctx, "party1", "no 50k tiền cơm")

		assert.Contains(t, reply, "Đã ghi")
		assert.Contains(t, reply, models.SharedPoolLabel)
		assert.Contains(t, reply, "50.000")
		assert.Empty(t, notifications)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debt to a linked friend produces a pending notification", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")
		expectFriends(mock, "party1", emptyFriendRows().AddRow("party1", "peer", "Bảo", "Tui"))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(sqlmock.AnyArg(), models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), time.Now()))
		expectExistingAlias(mock, "party1", "Tui")

		reply, notifications := bot.HandleMessage(ctx, "party1", "no 50k @Bao tiền cơm")

		assert.Contains(t, reply, "Đã gửi yêu cầu xác nhận tới Bảo")
		assert.Len(t, notifications, 1)
		assert.Equal(t, "peer", notifications[0].TargetPartyID)
		assert.Contains(t, notifications[0].Text, "Tui vừa ghi: bạn nợ 50.000đ")
		assert.Contains(t, notifications[0].Text, "ok ")
	})

	t.Run("debt naming another party's alias links on the fly", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")
		expectFriends(mock, "party1", emptyFriendRows())
		mock.ExpectQuery("SELECT party_id FROM aliases WHERE normalized_name").
			WithArgs("hung").
			WillReturnRows(sqlmock.NewRows([]string{"party_id"}).AddRow("peer2"))
		mock.ExpectQuery("SELECT id, party_a, party_b, name_b_for_a, name_a_for_b, status").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		expectExistingAlias(mock, "party1", "Tui")
		mock.ExpectQuery("INSERT INTO friend_links").
			WithArgs("party1", "peer2", "Hung", "Tui", models.LinkActive).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(sqlmock.AnyArg(), models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "party1", "Hung", "peer2", models.KindDebt,
				int64(50000), "tiền cơm", models.StatusPending, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(4), time.Now()))
		expectExistingAlias(mock, "party1", "Tui")

		reply, notifications := bot.HandleMessage(ctx, "party1", "no 50k @Hung tiền cơm")

		assert.Contains(t, reply, "Đã gửi yêu cầu xác nhận tới Hung")
		assert.Len(t, notifications, 1)
		assert.Equal(t, "peer2", notifications[0].TargetPartyID)
		assert.Contains(t, notifications[0].Text, "Tui vừa kết bạn với bạn.")
		assert.Contains(t, notifications[0].Text, "bạn nợ 50.000đ")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a user level failure becomes the reply", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")
		expectFriends(mock, "party1", emptyFriendRows())

		reply, _ := bot.HandleMessage(ctx, "party1", "no 50k @3")

		assert.Contains(t, reply, "bạn số 3")
	})

	t.Run("confirmation notifies the creator", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "peer", "Bảo")
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, ref, creator_id, counterparty_label, counterparty_id").
			WithArgs("ABC234").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "ref", "creator_id", "counterparty_label", "counterparty_id",
				"kind", "amount", "note", "status",
			}).AddRow(int64(2), "ref-2", "party1", "Bảo", "peer",
				models.KindDebt, int64(50000), "tiền cơm", models.StatusPending))
		mock.ExpectExec("UPDATE transactions SET status").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		reply, notifications := bot.HandleMessage(ctx, "peer", "ok ABC234")

		assert.Contains(t, reply, "Đã xác nhận")
		assert.Len(t, notifications, 1)
		assert.Equal(t, "party1", notifications[0].TargetPartyID)
		assert.Contains(t, notifications[0].Text, "Bảo đã xác nhận")
	})

	t.Run("empty balance report", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")
		mock.ExpectQuery("SELECT creator_id, counterparty_label, kind, amount").
			WithArgs(models.StatusConfirmed, "party1").
			WillReturnRows(confirmedRows())
		expectFriends(mock, "party1", emptyFriendRows())

		reply, _ := bot.HandleMessage(ctx, "party1", "check")

		assert.Equal(t, "Chưa có giao dịch nào được xác nhận.", reply)
	})

	t.Run("friends list is numbered in link order", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")
		expectFriends(mock, "party1", emptyFriendRows().
			AddRow("party1", "peer1", "Bảo", "Tui").
			AddRow("peer2", "party1", "Tui", "Chi"))

		reply, _ := bot.HandleMessage(ctx, "party1", "friends")

		assert.Contains(t, reply, "1. Bảo")
		assert.Contains(t, reply, "2. Chi")
	})

	t.Run("an existing alias skips the profile lookup", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		directory := NewDirectoryService(db, nil)
		profiles := &countingProfiles{name: "Someone"}
		bot := NewBotService(directory, NewLedgerService(db, directory), NewBalanceService(db, directory), profiles)

		expectExistingAlias(mock, "party1", "Tui")

		reply, _ := bot.HandleMessage(ctx, "party1", "id")

		assert.Equal(t, "ID của bạn: party1", reply)
		assert.Zero(t, profiles.calls)
	})

	t.Run("first contact fetches the profile once and auto-names", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		directory := NewDirectoryService(db, nil)
		profiles := &countingProfiles{name: "tuấn"}
		bot := NewBotService(directory, NewLedgerService(db, directory), NewBalanceService(db, directory), profiles)

		mock.ExpectQuery("SELECT display_name FROM aliases WHERE party_id").
			WithArgs("party9").
			WillReturnRows(sqlmock.NewRows([]string{"display_name"}))
		mock.ExpectQuery("SELECT display_name FROM aliases WHERE party_id").
			WithArgs("party9").
			WillReturnRows(sqlmock.NewRows([]string{"display_name"}))
		mock.ExpectQuery("SELECT party_id FROM aliases WHERE normalized_name").
			WithArgs("tuan").
			WillReturnRows(sqlmock.NewRows([]string{"party_id"}))
		mock.ExpectExec("INSERT INTO aliases").
			WithArgs("party9", "Tuấn", "tuan").
			WillReturnResult(sqlmock.NewResult(1, 1))

		reply, _ := bot.HandleMessage(ctx, "party9", "id")

		assert.Equal(t, "ID của bạn: party9", reply)
		assert.Equal(t, 1, profiles.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("id echoes the party id", func(t *testing.T) {
		bot, mock := newBotForTest(t)
		expectExistingAlias(mock, "party1", "Tui")

		reply, _ := bot.HandleMessage(ctx, "party1", "id")

		assert.Equal(t, "ID của bạn: party1", reply)
	})
}
