package models

import "time"

// Alias maps an opaque party id to its chosen display name. DisplayName is
// unique under accent/case-insensitive comparison; NormalizedName stores the
// comparison key.
type Alias struct {
	ID             int64     `json:"id" db:"id"`
	PartyID        string    `json:"party_id" db:"party_id"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
