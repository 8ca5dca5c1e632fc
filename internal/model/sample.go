package model

import (
	"encoding/json"
	"time"
)

// Sample is a single timestamped price observation for an asset.
type Sample struct {
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
}

// Event is a fired-alert notification payload handed to notification sinks.
type Event struct {
	Alert Alert     `json:"alert"`
	Value float64   `json:"value"` // price or indicator value that triggered
	TS    time.Time `json:"ts"`
}

// JSON returns the JSON-encoded event (ignoring errors for hot-path usage).
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
