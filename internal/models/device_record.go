package models

import (
	"sort"
	"time"
)

// Person types carried by device profiles and location rows.
const (
	PersonTypeVictim         = "victim"
	PersonTypeFirstResponder = "first_responder"
)

// DeviceProfile carries the registration details for one field device.
type DeviceProfile struct {
	Type         string   `json:"type"` // "victim" or "first_responder"
	Name         string   `json:"name"`
	Age          *int     `json:"age,omitempty"`
	HeightCM     *float64 `json:"height_cm,omitempty"`
	WeightKG     *float64 `json:"weight_kg,omitempty"`
	MedicalNotes *string  `json:"medical_notes,omitempty"`
}

// LocationState is the last position reported over the wire protocol.
type LocationState struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	LastUpdated time.Time `json:"last_updated"`
}

// BatteryState is the last battery reading reported over the wire protocol.
type BatteryState struct {
	Percentage       int       `json:"percentage"`
	SecondsRemaining int       `json:"seconds_remaining"`
	LastUpdated      time.Time `json:"last_updated"`
}

// MessageEntry is one free-text message stored on a device record.
// Entries are unique by MessageID. Append order is delivery order, not
// time order, so display paths must sort by Time.
type MessageEntry struct {
	MessageID uint32    `json:"message_id"`
	Time      time.Time `json:"time"`
	Text      string    `json:"text"`
}

// DeviceRecord is the persistent per-device document. DeviceID is the
// lookup key (resolved 4-character tag); RecordID is the row identity
// assigned at registration.
type DeviceRecord struct {
	DeviceID      string         `json:"device_id"`
	RecordID      string         `json:"record_id"`
	Profile       DeviceProfile  `json:"profile"`
	Location      *LocationState `json:"location,omitempty"`
	Battery       *BatteryState  `json:"battery,omitempty"`
	Questionnaire *string        `json:"questionnaire,omitempty"`
	Messages      []MessageEntry `json:"messages"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// HasMessage reports whether a message with the given id is already stored.
func (r *DeviceRecord) HasMessage(messageID uint32) bool {
	for _, m := range r.Messages {
		if m.MessageID == messageID {
			return true
		}
	}
	return false
}

// MessagesByTime returns a copy of the record's messages sorted by message
// time, oldest first.
func (r *DeviceRecord) MessagesByTime() []MessageEntry {
	out := make([]MessageEntry, len(r.Messages))
	copy(out, r.Messages)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
