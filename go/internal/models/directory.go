package models

import "github.com/google/uuid"

// ZoneType selects which zone catalog a local runs ("A" or "B" floor plan).
type ZoneType string

// Local represents a physical venue containing one or more zones.
type Local struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	ZoneType ZoneType  `json:"zone_type"`
}

// Operator represents a staff user authorized to manage sessions in one local.
type Operator struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	LoginCode string    `json:"login_code"`
	LocalID   uuid.UUID `json:"local_id"`
	Active    bool      `json:"active"`
}

// Zone represents a physical play area inside a local.
type Zone struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}
