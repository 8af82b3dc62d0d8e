package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/sonobot/backend/internal/messenger"
	"github.com/sonobot/backend/internal/services"
)

// CommandProcessor turns one inbound {partyId, text} event into a reply
// plus any cross-party notifications.
type CommandProcessor interface {
	HandleMessage(ctx context.Context, partyID, text string) (string, []messenger.Notification)
}

// MessageSender delivers outbound messages and fetches attachment bytes.
type MessageSender interface {
	SendText(ctx context.Context, partyID, text string) error
	Download(ctx context.Context, url string) ([]byte, error)
}

// Transcriber converts a voice clip into command text.
type Transcriber interface {
	Enabled() bool
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type WebhookHandler struct {
	processor   CommandProcessor
	sender      MessageSender
	transcriber Transcriber
	validator   *services.ValidationHelper
	verifyToken string
}

func NewWebhookHandler(processor CommandProcessor, sender MessageSender, transcriber Transcriber, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		processor:   processor,
		sender:      sender,
		transcriber: transcriber,
		validator:   services.NewValidationHelper(),
		verifyToken: verifyToken,
	}
}

// Verify answers the platform's webhook subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") == "subscribe" && query.Get("hub.verify_token") == h.verifyToken {
		w.Write([]byte(query.Get("hub.challenge")))
		return
	}
	log.Printf("[WEBHOOK] Verification failed from %s", r.RemoteAddr)
	http.Error(w, "Verification failed", http.StatusForbidden)
}

// Receive acknowledges the event batch immediately and processes each
// message on its own goroutine. The platform retries deliveries that do
// not get a fast 200, so processing never blocks the response.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var event messenger.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Printf("[WEBHOOK] Failed to decode event: %v", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateStruct(&event); err != nil {
		log.Printf("[WEBHOOK] Malformed event envelope: %v", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	for _, entry := range event.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Message.IsEcho {
				continue
			}
			go h.process(m)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))
}

func (h *WebhookHandler) process(m messenger.Messaging) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	partyID := m.Sender.ID
	text := m.Message.Text
	if text == "" {
		text = h.transcribe(ctx, partyID, m.Message.Attachments)
		if text == "" {
			return
		}
	}

	reply, notifications := h.processor.HandleMessage(ctx, partyID, text)
	if reply != "" {
		if err := h.sender.SendText(ctx, partyID, reply); err != nil {
			log.Printf("[WEBHOOK] Failed to reply to %s: %v", partyID, err)
		}
	}
	for _, n := range notifications {
		if err := h.sender.SendText(ctx, n.TargetPartyID, n.Text); err != nil {
			log.Printf("[WEBHOOK] Failed to notify %s: %v", n.TargetPartyID, err)
		}
	}
}

// transcribe recovers command text from the first audio attachment, if
// voice input is configured.
func (h *WebhookHandler) transcribe(ctx context.Context, partyID string, attachments []messenger.Attachment) string {
	if h.transcriber == nil || !h.transcriber.Enabled() {
		return ""
	}
	for _, a := range attachments {
		if a.Type != "audio" || a.Payload.URL == "" {
			continue
		}
		audio, err := h.sender.Download(ctx, a.Payload.URL)
		if err != nil {
			log.Printf("[WEBHOOK] Failed to download voice clip from %s: %v", partyID, err)
			return ""
		}
		text, err := h.transcriber.Transcribe(ctx, audio)
		if err != nil {
			log.Printf("[WEBHOOK] Transcription failed for %s: %v", partyID, err)
			return ""
		}
		log.Printf("[WEBHOOK] Transcribed voice clip from %s: %q", partyID, text)
		return text
	}
	return ""
}
