package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// IntentKind identifies the action the user wants the bot to take.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentDebt
	IntentPaid
	IntentCheck
	IntentSetAlias
	IntentShareCode
	IntentLinkFriend
	IntentConfirm
	IntentReject
	IntentPendingList
	IntentListFriends
	IntentMyID
	IntentUndo
	IntentSearch
	IntentStats
	IntentHelp
)

// Stats periods
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// DefaultNote fills the note field when a debt/repayment command carries no
// free text after the amount.
const DefaultNote = "không ghi chú"

// Intent is the typed result of classifying one inbound message.
type Intent struct {
	Kind              IntentKind
	Amount            int64  // DEBT / PAID
	Counterparty      string // raw or resolved counterparty label, "" when absent
	CounterpartyIndex int    // 1-based index into the friend list for "@3", 0 otherwise
	Note              string // DEBT / PAID
	Code              string // CONFIRM / REJECT / LINK_FRIEND
	Name              string // SET_ALIAS / LINK_FRIEND
	Keyword           string // SEARCH
	Period            string // STATS
	OnlyOwing         bool   // CHECK "conno" filter
}

// matcher is one fixed-pattern rule: a pure function from text to an intent
// or nil. Matchers are evaluated in fixed priority order, first match wins.
type matcher func(text string) *Intent

var tier1Matchers = []matcher{
	matchHelp,
	matchMyID,
	matchPendingList,
	matchListFriends,
	matchShareCode,
	matchUndo,
	matchSetAlias,
	matchLinkFriend,
	matchConfirm,
	matchReject,
	matchSearch,
	matchStats,
	matchDebtPaid,
	matchCheck,
}

// Classify runs the fixed-pattern grammar (Tier 1). It returns nil when no
// pattern matches the whole message; the caller may then fall back to the
// flexible scanner.
func Classify(text string) *Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, m := range tier1Matchers {
		if intent := m(text); intent != nil {
			return intent
		}
	}
	return nil
}

var (
	helpRe    = regexp.MustCompile(`^(?i)(?:help|huong dan|hướng dẫn)$`)
	myIDRe    = regexp.MustCompile(`^(?i)id$`)
	pendingRe = regexp.MustCompile(`^(?i)pending$`)
	friendsRe = regexp.MustCompile(`^(?i)friends?$`)
	shareRe   = regexp.MustCompile(`^(?i)sharecode$`)
	undoRe    = regexp.MustCompile(`^(?i)(?:xoa|xóa|undo)$`)
	aliasRe   = regexp.MustCompile(`^(?i)(?:alias|ten|tên)\s+(.+)$`)
	linkRe    = regexp.MustCompile(`^(?i)link\s+(\S+)\s+(.+)$`)
	confirmRe = regexp.MustCompile(`^(?i)(?:ok|xn)\s+(\S+)$`)
	rejectRe  = regexp.MustCompile(`^(?i)(?:huy|hủy|khong|không)\s+(\S+)$`)
	searchRe  = regexp.MustCompile(`^(?i)(?:tim|tìm)\s+(.+)$`)
	debtRe    = regexp.MustCompile(`^(?i)(?:no|nợ)\s+(\S+)(?:\s+(.*))?$`)
	paidRe    = regexp.MustCompile(`^(?i)(?:tra|trả)\s+(\S+)(?:\s+(.*))?$`)
	checkRe   = regexp.MustCompile(`^(?i)(?:check|tong|tổng)(?:\s+(.+))?$`)
)

func matchHelp(text string) *Intent {
	if helpRe.MatchString(text) {
		return &Intent{Kind: IntentHelp}
	}
	return nil
}

func matchMyID(text string) *Intent {
	if myIDRe.MatchString(text) {
		return &Intent{Kind: IntentMyID}
	}
	return nil
}

func matchPendingList(text string) *Intent {
	if pendingRe.MatchString(text) {
		return &Intent{Kind: IntentPendingList}
	}
	return nil
}

func matchListFriends(text string) *Intent {
	if friendsRe.MatchString(text) {
		return &Intent{Kind: IntentListFriends}
	}
	return nil
}

func matchShareCode(text string) *Intent {
	if shareRe.MatchString(text) {
		return &Intent{Kind: IntentShareCode}
	}
	return nil
}

func matchUndo(text string) *Intent {
	if undoRe.MatchString(text) {
		return &Intent{Kind: IntentUndo}
	}
	return nil
}

func matchSetAlias(text string) *Intent {
	if m := aliasRe.FindStringSubmatch(text); m != nil {
		return &Intent{Kind: IntentSetAlias, Name: strings.TrimSpace(m[1])}
	}
	return nil
}

func matchLinkFriend(text string) *Intent {
	if m := linkRe.FindStringSubmatch(text); m != nil {
		return &Intent{
			Kind: IntentLinkFriend,
			Code: strings.ToUpper(m[1]),
			Name: expandName(strings.TrimSpace(m[2])),
		}
	}
	return nil
}

func matchConfirm(text string) *Intent {
	if m := confirmRe.FindStringSubmatch(text); m != nil {
		return &Intent{Kind: IntentConfirm, Code: strings.ToUpper(m[1])}
	}
	return nil
}

func matchReject(text string) *Intent {
	if m := rejectRe.FindStringSubmatch(text); m != nil {
		return &Intent{Kind: IntentReject, Code: strings.ToUpper(m[1])}
	}
	return nil
}

func matchSearch(text string) *Intent {
	if m := searchRe.FindStringSubmatch(text); m != nil {
		return &Intent{Kind: IntentSearch, Keyword: strings.TrimSpace(m[1])}
	}
	return nil
}

// matchStats recognizes bare period keywords ("hom nay", "tuan nay",
// "thang nay") under accent-insensitive comparison.
func matchStats(text string) *Intent {
	switch Normalize(text) {
	case "homnay":
		return &Intent{Kind: IntentStats, Period: PeriodDay}
	case "tuannay":
		return &Intent{Kind: IntentStats, Period: PeriodWeek}
	case "thangnay":
		return &Intent{Kind: IntentStats, Period: PeriodMonth}
	}
	return nil
}

func matchDebtPaid(text string) *Intent {
	kind := IntentDebt
	m := debtRe.FindStringSubmatch(text)
	if m == nil {
		kind = IntentPaid
		m = paidRe.FindStringSubmatch(text)
	}
	if m == nil {
		return nil
	}

	amount, err := ParseAmount(m[1])
	if err != nil {
		// Not an amount: let the flexible scanner have a go at the sentence.
		return nil
	}

	intent := &Intent{Kind: kind, Amount: amount, Note: DefaultNote}
	rest := strings.TrimSpace(m[2])
	if strings.HasPrefix(rest, "@") {
		fields := strings.Fields(rest)
		name := strings.TrimPrefix(fields[0], "@")
		if idx, err := strconv.Atoi(name); err == nil && idx > 0 {
			intent.CounterpartyIndex = idx
		} else {
			intent.Counterparty = expandName(name)
		}
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
	}
	if rest != "" {
		intent.Note = rest
	}
	return intent
}

func matchCheck(text string) *Intent {
	m := checkRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	intent := &Intent{Kind: IntentCheck}
	arg := strings.TrimSpace(m[1])
	switch {
	case arg == "":
	case Normalize(arg) == "conno":
		intent.OnlyOwing = true
	case strings.HasPrefix(arg, "@"):
		intent.Counterparty = expandName(strings.TrimPrefix(arg, "@"))
	default:
		intent.Counterparty = expandName(arg)
	}
	return intent
}

// expandName converts the word separators of an @-marked token back into
// spaces so multi-word names survive tokenization ("anh_Tuan" -> "anh Tuan").
func expandName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}
