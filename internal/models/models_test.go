package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransaction_AwaitsDecisionBy(t *testing.T) {
	txn := Transaction{Status: StatusPending, CounterpartyID: "peer"}

	assert.True(t, txn.AwaitsDecisionBy("peer"))
	assert.False(t, txn.AwaitsDecisionBy("creator"))

	txn.Status = StatusConfirmed
	assert.False(t, txn.AwaitsDecisionBy("peer"))
}

func TestFriendLink_PeerAndNameFor(t *testing.T) {
	link := FriendLink{
		PartyA:    "alice",
		PartyB:    "bob",
		NameBForA: "Bob",
		NameAForB: "Alice",
	}

	assert.Equal(t, "bob", link.Peer("alice"))
	assert.Equal(t, "alice", link.Peer("bob"))
	assert.Empty(t, link.Peer("carol"))

	assert.Equal(t, "Bob", link.NameFor("alice"))
	assert.Equal(t, "Alice", link.NameFor("bob"))
	assert.Empty(t, link.NameFor("carol"))
}
