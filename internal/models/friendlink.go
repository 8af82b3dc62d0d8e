package models

import "time"

// Friend link statuses
const (
	LinkPending = "PENDING"
	LinkActive  = "ACTIVE"
	LinkExpired = "EXPIRED"
)

// FriendLink is a symmetric peer relationship. A PENDING row is an issued,
// not-yet-redeemed invitation: PartyB is the issuer and PartyA is filled in
// on redemption, which also fixes both directional display names. At most
// one ACTIVE link exists per unordered pair.
type FriendLink struct {
	ID        int64     `json:"id" db:"id"`
	PartyA    string    `json:"party_a" db:"party_a"`
	PartyB    string    `json:"party_b" db:"party_b"`
	NameBForA string    `json:"name_b_for_a" db:"name_b_for_a"` // what A calls B
	NameAForB string    `json:"name_a_for_b" db:"name_a_for_b"` // what B calls A
	ShareCode string    `json:"share_code" db:"share_code"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Peer returns the other party of an active link, or "" when partyID is not
// part of the link.
func (l *FriendLink) Peer(partyID string) string {
	switch partyID {
	case l.PartyA:
		return l.PartyB
	case l.PartyB:
		return l.PartyA
	}
	return ""
}

// NameFor returns the display name the given party uses for its peer.
func (l *FriendLink) NameFor(partyID string) string {
	switch partyID {
	case l.PartyA:
		return l.NameBForA
	case l.PartyB:
		return l.NameAForB
	}
	return ""
}
