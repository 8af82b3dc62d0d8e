package services

import (
	"encoding/json"
	"log"
	"time"
)

// AuditEvent is one structured record of a state-changing command.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	PartyID   string    `json:"party_id"`
	Ref       string    `json:"ref,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Status    string    `json:"status,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// AuditLogger emits JSON audit events for ledger and directory mutations.
// This is operational logging only, not an edit trail.
type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogRecord(partyID, ref, kind string, amount int64, status string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "RECORD_" + kind,
		PartyID:   partyID,
		Ref:       ref,
		Amount:    amount,
		Status:    status,
	})
}

func (a *AuditLogger) LogDecision(partyID, ref, decision string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: decision,
		PartyID:   partyID,
		Ref:       ref,
	})
}

func (a *AuditLogger) LogUndo(partyID, ref string, amount int64) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "UNDO",
		PartyID:   partyID,
		Ref:       ref,
		Amount:    amount,
	})
}

func (a *AuditLogger) LogLink(partyID, peerID, via string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "LINK",
		PartyID:   partyID,
		Details:   map[string]string{"peer": peerID, "via": via},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
