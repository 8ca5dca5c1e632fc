// Package model holds the shared value types of the alert engine: alerts,
// their conditions, price samples and the error taxonomy.
package model

import (
	"encoding/json"
	"math"
	"time"
)

// ConditionType tags the closed set of alert conditions.
type ConditionType string

const (
	PriceAbove     ConditionType = "price_above"
	PriceBelow     ConditionType = "price_below"
	IndicatorCross ConditionType = "indicator_cross"
)

// IndicatorKind names a supported technical indicator.
type IndicatorKind string

const (
	KindRSI IndicatorKind = "RSI"
	KindSMA IndicatorKind = "SMA"
	KindEMA IndicatorKind = "EMA"
)

// CrossDirection is the direction an IndicatorCross condition watches.
type CrossDirection string

const (
	CrossAbove CrossDirection = "above"
	CrossBelow CrossDirection = "below"
)

// Condition is the tagged condition variant. Kind, Period and Direction are
// only meaningful for IndicatorCross.
type Condition struct {
	Type      ConditionType  `json:"type"`
	Threshold float64        `json:"threshold"`
	Kind      IndicatorKind  `json:"kind,omitempty"`
	Period    int            `json:"period,omitempty"`
	Direction CrossDirection `json:"direction,omitempty"`
}

// Validate reports whether the condition is well-formed.
func (c Condition) Validate() error {
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return ErrInvalidCondition
	}
	switch c.Type {
	case PriceAbove, PriceBelow:
		return nil
	case IndicatorCross:
		if c.Period <= 0 {
			return ErrInvalidCondition
		}
		switch c.Kind {
		case KindRSI, KindSMA, KindEMA:
		default:
			return ErrInvalidCondition
		}
		switch c.Direction {
		case CrossAbove, CrossBelow:
		default:
			return ErrInvalidCondition
		}
		return nil
	default:
		return ErrInvalidCondition
	}
}

// Side records which side of the threshold the last observed value was on.
// Unknown means the alert has not been evaluated yet.
type Side int8

const (
	SideUnknown Side = iota
	SideAbove
	SideBelow
)

func (s Side) String() string {
	switch s {
	case SideAbove:
		return "above"
	case SideBelow:
		return "below"
	default:
		return "unknown"
	}
}

// AlertState is the alert lifecycle state. Fired and Cancelled are terminal.
type AlertState string

const (
	StateActive    AlertState = "active"
	StateFired     AlertState = "fired"
	StateCancelled AlertState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s AlertState) Terminal() bool {
	return s == StateFired || s == StateCancelled
}

// Alert is a single user-defined condition on one asset.
// Owner is opaque to the engine; Asset partitions scheduling and lookups.
type Alert struct {
	ID          string     `json:"id"`
	Owner       string     `json:"owner"`
	Asset       string     `json:"asset"`
	Condition   Condition  `json:"condition"`
	State       AlertState `json:"state"`
	OneShot     bool       `json:"one_shot"`
	CreatedAt   time.Time  `json:"created_at"`
	TriggeredAt time.Time  `json:"triggered_at,omitempty"`
	LastSide    Side       `json:"last_side"`
}

// JSON returns the JSON-encoded alert (ignoring errors for hot-path usage).
func (a *Alert) JSON() []byte {
	b, _ := json.Marshal(a)
	return b
}
