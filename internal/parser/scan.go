package parser

import (
	"strconv"
	"strings"
)

// LinkedName is one entry of a party's friend directory, in the stable
// order the directory returns (so "@3" style positional references and the
// scanner agree on numbering).
type LinkedName struct {
	PartyID     string
	DisplayName string
}

// Keyword sets for the flexible scan, compared after normalization so
// accents never matter.
var (
	debtKeywords = map[string]bool{"no": true, "vay": true, "muon": true, "thieu": true}
	paidKeywords = map[string]bool{"tra": true}
)

// Scan is the Tier 2 classifier, attempted only when no fixed pattern
// matched. It locates a debt/paid keyword and an amount anywhere in the
// sentence, then resolves the token span next to them against the party's
// linked names, longest candidate first. A span that normalizes identically
// to two or more distinct linked names is ambiguous and falls back to the
// raw text. Returns nil when no keyword or no amount is found.
func Scan(text string, linked []LinkedName) *Intent {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	// Command anchor: first token matching a keyword fixes the intent kind.
	anchor := -1
	kind := IntentUnknown
	for i, tok := range tokens {
		n := Normalize(tok)
		if debtKeywords[n] {
			anchor, kind = i, IntentDebt
			break
		}
		if paidKeywords[n] {
			anchor, kind = i, IntentPaid
			break
		}
	}
	if anchor < 0 {
		return nil
	}

	// Amount anchor: first token after the command anchor the amount
	// grammar accepts.
	amountAt := -1
	var amount int64
	for i := anchor + 1; i < len(tokens); i++ {
		if v, err := ParseAmount(tokens[i]); err == nil {
			amountAt, amount = i, v
			break
		}
	}
	if amountAt < 0 {
		return nil
	}

	intent := &Intent{Kind: kind, Amount: amount, Note: DefaultNote}

	// The counterparty span sits between the command and amount anchors
	// when the keyword came first ("no Tuan 50k"), otherwise before the
	// keyword ("Tuan no 50k").
	span := tokens[anchor+1 : amountAt]
	if len(span) == 0 {
		span = tokens[:anchor]
	}
	applyCounterparty(intent, span, linked)

	if note := strings.Join(tokens[amountAt+1:], " "); note != "" {
		intent.Note = note
	}
	return intent
}

// applyCounterparty resolves a token span to a linked name, a positional
// index, or a raw free-text label.
func applyCounterparty(intent *Intent, span []string, linked []LinkedName) {
	if len(span) == 0 {
		return
	}
	span = stripMarkers(span)
	if len(span) == 0 {
		return
	}

	// A purely numeric token is a 1-based positional reference into the
	// friend list.
	if len(span) == 1 {
		if idx, err := strconv.Atoi(span[0]); err == nil && idx > 0 {
			intent.CounterpartyIndex = idx
			return
		}
	}

	raw := strings.Join(span, " ")

	// Longest candidate sub-span first; an exact normalized match against a
	// linked name resolves immediately.
	for length := len(span); length >= 1; length-- {
		for start := 0; start+length <= len(span); start++ {
			key := Normalize(strings.Join(span[start:start+length], " "))
			if key == "" {
				continue
			}
			var matches []string
			seen := map[string]bool{}
			for _, ln := range linked {
				if Normalize(ln.DisplayName) == key && !seen[ln.PartyID] {
					seen[ln.PartyID] = true
					matches = append(matches, ln.DisplayName)
				}
			}
			if len(matches) == 1 {
				intent.Counterparty = matches[0]
				return
			}
			if len(matches) > 1 {
				// Ambiguous: do not silently pick one, keep the raw text.
				intent.Counterparty = raw
				return
			}
		}
	}

	intent.Counterparty = raw
}

// stripMarkers drops @-prefixes and expands underscore-joined names before
// span matching.
func stripMarkers(span []string) []string {
	out := make([]string, 0, len(span))
	for _, tok := range span {
		tok = strings.TrimPrefix(tok, "@")
		tok = expandName(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
