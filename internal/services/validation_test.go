package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sonobot/backend/internal/messenger"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("accepts a well-formed webhook envelope", func(t *testing.T) {
		event := messenger.WebhookEvent{
			Object: "page",
			Entry: []messenger.Entry{{
				ID: "1",
				Messaging: []messenger.Messaging{{
					Sender:  messenger.Participant{ID: "party1"},
					Message: &messenger.Message{MID: "m1", Text: "no 50k"},
				}},
			}},
		}

		assert.NoError(t, vh.ValidateStruct(&event))
	})

	t.Run("rejects an envelope without an object", func(t *testing.T) {
		event := messenger.WebhookEvent{Entry: []messenger.Entry{}}

		assert.Error(t, vh.ValidateStruct(&event))
	})
}
