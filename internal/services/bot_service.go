package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sonobot/backend/internal/messenger"
	"github.com/sonobot/backend/internal/models"
	"github.com/sonobot/backend/internal/parser"
)

// ProfileSource provides a party's external profile name for auto-naming
// on first contact.
type ProfileSource interface {
	GetProfile(ctx context.Context, partyID string) (string, error)
}

const genericFailureReply = "Có lỗi xảy ra, bạn thử lại sau nhé."

const notUnderstoodReply = "Mình chưa hiểu tin nhắn này. Gõ \"help\" để xem các lệnh."

const helpReply = `Các lệnh của Sổ Nợ:
• no <số tiền> [@tên] [ghi chú] — ghi nợ (vd: no 50k @Bao tiền cơm)
• tra <số tiền> [@tên] [ghi chú] — ghi trả
• check [@tên | conno] — xem số dư
• ten <tên> — đặt tên của bạn
• sharecode — xin mã kết bạn
• link <mã> <tên> — kết bạn bằng mã
• ok <mã> / huy <mã> — xác nhận / từ chối giao dịch
• pending — giao dịch chờ xác nhận
• friends — danh sách bạn
• xoa — xoá giao dịch gần nhất
• tim <từ khoá> — tìm giao dịch
• hom nay / tuan nay / thang nay — thống kê
• id — xem ID của bạn`

// BotService wires the classifier, the directory, the ledger and the
// balance aggregator into one conversational surface. HandleMessage never
// returns an error: every failure resolves into a reply for the invoking
// party, and cross-party effects come back as notifications for the
// transport to deliver.
type BotService struct {
	directory *DirectoryService
	ledger    *LedgerService
	balances  *BalanceService
	profiles  ProfileSource
}

func NewBotService(directory *DirectoryService, ledger *LedgerService, balances *BalanceService, profiles ProfileSource) *BotService {
	return &BotService{
		directory: directory,
		ledger:    ledger,
		balances:  balances,
		profiles:  profiles,
	}
}

// HandleMessage processes one inbound {partyId, text} event.
func (s *BotService) HandleMessage(ctx context.Context, partyID, text string) (string, []messenger.Notification) {
	text = strings.TrimSpace(text)
	if text == "" {
		return notUnderstoodReply, nil
	}

	if err := s.ensureAlias(ctx, partyID); err != nil {
		log.Printf("[BOT] Failed to ensure alias for %s: %v", partyID, err)
		return genericFailureReply, nil
	}

	intent := parser.Classify(text)
	if intent == nil {
		linked, err := s.directory.LinkedCounterparties(ctx, partyID)
		if err != nil {
			log.Printf("[BOT] Failed to load friends for %s: %v", partyID, err)
			return genericFailureReply, nil
		}
		intent = parser.Scan(text, linked)
	}
	if intent == nil {
		return notUnderstoodReply, nil
	}

	reply, notifications, err := s.dispatch(ctx, partyID, intent)
	if err != nil {
		if userReply := UserReply(err); userReply != "" {
			return userReply, nil
		}
		log.Printf("[BOT] Command failed for %s: %v", partyID, err)
		return genericFailureReply, nil
	}
	return reply, notifications
}

func (s *BotService) dispatch(ctx context.Context, partyID string, intent *parser.Intent) (string, []messenger.Notification, error) {
	switch intent.Kind {
	case parser.IntentDebt, parser.IntentPaid:
		return s.handleRecord(ctx, partyID, intent)
	case parser.IntentConfirm:
		return s.handleDecision(ctx, partyID, intent.Code, true)
	case parser.IntentReject:
		return s.handleDecision(ctx, partyID, intent.Code, false)
	case parser.IntentCheck:
		return s.handleCheck(ctx, partyID, intent)
	case parser.IntentSetAlias:
		return s.handleSetAlias(ctx, partyID, intent.Name)
	case parser.IntentShareCode:
		return s.handleShareCode(ctx, partyID)
	case parser.IntentLinkFriend:
		return s.handleLinkFriend(ctx, partyID, intent.Code, intent.Name)
	case parser.IntentPendingList:
		return s.handlePending(ctx, partyID)
	case parser.IntentListFriends:
		return s.handleFriends(ctx, partyID)
	case parser.IntentMyID:
		return fmt.Sprintf("ID của bạn: %s", partyID), nil, nil
	case parser.IntentUndo:
		return s.handleUndo(ctx, partyID)
	case parser.IntentSearch:
		return s.handleSearch(ctx, partyID, intent.Keyword)
	case parser.IntentStats:
		return s.handleStats(ctx, partyID, intent.Period)
	case parser.IntentHelp:
		return helpReply, nil, nil
	}
	return notUnderstoodReply, nil, nil
}

// ensureAlias auto-names a party on first contact. The profile lookup is
// an external call, so it only happens when no alias exists yet; lookup
// failures degrade to a generic base name instead of blocking the command.
func (s *BotService) ensureAlias(ctx context.Context, partyID string) error {
	existing, err := s.directory.ResolveDisplayName(ctx, partyID)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	profileName := ""
	if s.profiles != nil {
		name, err := s.profiles.GetProfile(ctx, partyID)
		if err != nil {
			log.Printf("[BOT] Profile lookup failed for %s: %v", partyID, err)
		} else {
			profileName = name
		}
	}
	_, err = s.directory.EnsureAlias(ctx, partyID, profileName)
	return err
}

func (s *BotService) handleRecord(ctx context.Context, partyID string, intent *parser.Intent) (string, []messenger.Notification, error) {
	result, err := s.ledger.Record(ctx, partyID, intent)
	if err != nil {
		return "", nil, err
	}
	txn := result.Transaction
	amount := parser.FormatAmount(txn.Amount)

	if !result.Linked {
		if txn.Kind == models.KindDebt {
			return fmt.Sprintf("Đã ghi: %s nợ bạn %sđ (%s).", txn.CounterpartyLabel, amount, txn.Note), nil, nil
		}
		return fmt.Sprintf("Đã ghi: bạn trả %s %sđ (%s).", txn.CounterpartyLabel, amount, txn.Note), nil, nil
	}

	creatorName, err := s.directory.ResolveDisplayName(ctx, partyID)
	if err != nil {
		return "", nil, err
	}
	if creatorName == "" {
		creatorName = "Một người bạn"
	}

	var b strings.Builder
	if result.DirectLinked {
		fmt.Fprintf(&b, "%s vừa kết bạn với bạn.\n", creatorName)
	}
	if txn.Kind == models.KindDebt {
		fmt.Fprintf(&b, "%s vừa ghi: bạn nợ %sđ (%s).\n", creatorName, amount, txn.Note)
	} else {
		fmt.Fprintf(&b, "%s vừa ghi: đã trả bạn %sđ (%s).\n", creatorName, amount, txn.Note)
	}
	fmt.Fprintf(&b, "Trả lời \"ok %s\" để xác nhận hoặc \"huy %s\" để từ chối.",
		txn.ConfirmationCode, txn.ConfirmationCode)

	notifications := []messenger.Notification{{
		TargetPartyID: result.Counterparty.PartyID,
		Text:          b.String(),
	}}
	reply := fmt.Sprintf("Đã gửi yêu cầu xác nhận tới %s (mã %s). Giao dịch sẽ được tính sau khi xác nhận.",
		txn.CounterpartyLabel, txn.ConfirmationCode)
	return reply, notifications, nil
}

func (s *BotService) handleDecision(ctx context.Context, partyID, code string, confirm bool) (string, []messenger.Notification, error) {
	var txn *models.Transaction
	var err error
	if confirm {
		txn, err = s.ledger.Confirm(ctx, partyID, code)
	} else {
		txn, err = s.ledger.Reject(ctx, partyID, code)
	}
	if err != nil {
		return "", nil, err
	}

	amount := parser.FormatAmount(txn.Amount)
	verb := "xác nhận"
	if !confirm {
		verb = "từ chối"
	}

	// The creator knows the decider by the label on the row.
	notifications := []messenger.Notification{{
		TargetPartyID: txn.CreatorID,
		Text: fmt.Sprintf("%s đã %s giao dịch %sđ (mã %s).",
			txn.CounterpartyLabel, verb, amount, code),
	}}
	return fmt.Sprintf("Đã %s giao dịch %sđ (mã %s).", verb, amount, code), notifications, nil
}

func (s *BotService) handleCheck(ctx context.Context, partyID string, intent *parser.Intent) (string, []messenger.Notification, error) {
	report, err := s.balances.ComputeBalances(ctx, partyID, intent.Counterparty, intent.OnlyOwing)
	if err != nil {
		return "", nil, err
	}

	if len(report.Counterparties) == 0 {
		switch {
		case intent.Counterparty != "":
			return fmt.Sprintf("Không có số dư với %s.", intent.Counterparty), nil, nil
		case intent.OnlyOwing:
			return "Không ai còn nợ bạn cả.", nil, nil
		default:
			return "Chưa có giao dịch nào được xác nhận.", nil, nil
		}
	}

	var b strings.Builder
	if intent.OnlyOwing {
		b.WriteString("Còn nợ bạn:\n")
	} else {
		b.WriteString("Sổ nợ của bạn:\n")
	}
	for i, cb := range report.Counterparties {
		fmt.Fprintf(&b, "%d. %s: %sđ\n", i+1, cb.Label, parser.FormatAmount(cb.Balance))
	}
	fmt.Fprintf(&b, "Tổng: %sđ", parser.FormatAmount(report.Total))
	return b.String(), nil, nil
}

func (s *BotService) handleSetAlias(ctx context.Context, partyID, name string) (string, []messenger.Notification, error) {
	stored, err := s.directory.SetAlias(ctx, partyID, name)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Đã đặt tên của bạn là %s.", stored), nil, nil
}

func (s *BotService) handleShareCode(ctx context.Context, partyID string) (string, []messenger.Notification, error) {
	code, err := s.directory.CreateShareCode(ctx, partyID)
	if err != nil {
		return "", nil, err
	}
	minutes := int(s.directory.config.ShareCodeTimeout.Minutes())
	reply := fmt.Sprintf("Mã kết bạn của bạn: %s (hết hạn sau %d phút).\nBạn của bạn gõ: link %s <tên gọi bạn>.",
		code, minutes, code)
	return reply, nil, nil
}

func (s *BotService) handleLinkFriend(ctx context.Context, partyID, code, name string) (string, []messenger.Notification, error) {
	link, err := s.directory.RedeemShareCode(ctx, partyID, code, name)
	if err != nil {
		return "", nil, err
	}

	notifications := []messenger.Notification{{
		TargetPartyID: link.PartyB,
		Text:          fmt.Sprintf("%s đã kết bạn với bạn qua mã %s.", link.NameAForB, code),
	}}
	return fmt.Sprintf("Đã kết bạn với %s!", link.NameBForA), notifications, nil
}

func (s *BotService) handlePending(ctx context.Context, partyID string) (string, []messenger.Notification, error) {
	awaiting, waiting, err := s.ledger.PendingFor(ctx, partyID)
	if err != nil {
		return "", nil, err
	}
	if len(awaiting) == 0 && len(waiting) == 0 {
		return "Không có giao dịch nào đang chờ.", nil, nil
	}

	creatorNames, err := s.peerNames(ctx, partyID)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	if len(awaiting) > 0 {
		b.WriteString("Chờ bạn xác nhận:\n")
		for _, txn := range awaiting {
			name := creatorNames[txn.CreatorID]
			if name == "" {
				name = txn.CreatorID
			}
			amount := parser.FormatAmount(txn.Amount)
			if txn.Kind == models.KindDebt {
				fmt.Fprintf(&b, "• [%s] bạn nợ %s %sđ (%s)\n", txn.ConfirmationCode, name, amount, txn.Note)
			} else {
				fmt.Fprintf(&b, "• [%s] %s trả bạn %sđ (%s)\n", txn.ConfirmationCode, name, amount, txn.Note)
			}
		}
	}
	if len(waiting) > 0 {
		b.WriteString("Chờ bên kia xác nhận:\n")
		for _, txn := range waiting {
			amount := parser.FormatAmount(txn.Amount)
			if txn.Kind == models.KindDebt {
				fmt.Fprintf(&b, "• [%s] %s nợ bạn %sđ (%s)\n", txn.ConfirmationCode, txn.CounterpartyLabel, amount, txn.Note)
			} else {
				fmt.Fprintf(&b, "• [%s] bạn trả %s %sđ (%s)\n", txn.ConfirmationCode, txn.CounterpartyLabel, amount, txn.Note)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil, nil
}

func (s *BotService) handleFriends(ctx context.Context, partyID string) (string, []messenger.Notification, error) {
	linked, err := s.directory.LinkedCounterparties(ctx, partyID)
	if err != nil {
		return "", nil, err
	}
	if len(linked) == 0 {
		return "Bạn chưa kết bạn với ai. Gõ \"sharecode\" để lấy mã mời.", nil, nil
	}

	var b strings.Builder
	b.WriteString("Bạn bè của bạn:\n")
	for i, ln := range linked {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ln.DisplayName)
	}
	b.WriteString("Dùng @<số> để chỉ nhanh một người (vd: no 50k @1).")
	return b.String(), nil, nil
}

func (s *BotService) handleUndo(ctx context.Context, partyID string) (string, []messenger.Notification, error) {
	txn, err := s.ledger.Undo(ctx, partyID)
	if err != nil {
		return "", nil, err
	}
	kind := "nợ"
	if txn.Kind == models.KindPaid {
		kind = "trả"
	}
	return fmt.Sprintf("Đã xoá giao dịch gần nhất: %s %sđ – %s (%s).",
		kind, parser.FormatAmount(txn.Amount), txn.CounterpartyLabel, txn.Note), nil, nil
}

func (s *BotService) handleSearch(ctx context.Context, partyID, keyword string) (string, []messenger.Notification, error) {
	matches, err := s.ledger.Search(ctx, partyID, keyword)
	if err != nil {
		return "", nil, err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("Không tìm thấy giao dịch nào với \"%s\".", keyword), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Kết quả cho \"%s\":\n", keyword)
	for _, txn := range matches {
		kind := "nợ"
		if txn.Kind == models.KindPaid {
			kind = "trả"
		}
		fmt.Fprintf(&b, "• %s %s %sđ – %s (%s)\n",
			txn.CreatedAt.In(hcmLocation).Format("02/01"),
			kind, parser.FormatAmount(txn.Amount), txn.CounterpartyLabel, txn.Note)
	}
	return strings.TrimRight(b.String(), "\n"), nil, nil
}

func (s *BotService) handleStats(ctx context.Context, partyID, period string) (string, []messenger.Notification, error) {
	report, err := s.ledger.Stats(ctx, partyID, period)
	if err != nil {
		return "", nil, err
	}

	label := map[string]string{
		parser.PeriodDay:   "Hôm nay",
		parser.PeriodWeek:  "Tuần này",
		parser.PeriodMonth: "Tháng này",
	}[period]
	if report.Count == 0 {
		return fmt.Sprintf("%s bạn chưa ghi giao dịch nào.", label), nil, nil
	}
	return fmt.Sprintf("%s: ghi nợ %sđ, ghi trả %sđ (%d giao dịch).",
		label, parser.FormatAmount(report.DebtTotal), parser.FormatAmount(report.PaidTotal), report.Count), nil, nil
}

// peerNames maps linked party ids to the names this party uses for them.
func (s *BotService) peerNames(ctx context.Context, partyID string) (map[string]string, error) {
	linked, err := s.directory.LinkedCounterparties(ctx, partyID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(linked))
	for _, ln := range linked {
		names[ln.PartyID] = ln.DisplayName
	}
	return names, nil
}
