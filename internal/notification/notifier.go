// Package notification delivers fired-alert events to external channels
// (Telegram, webhooks, Redis pub/sub). The engine calls a sink at most once
// per firing; delivery failures are logged here and never surface back into
// alert state.
package notification

import (
	"context"
	"fmt"
	"log"

	"pricewatch/internal/model"
)

// Sink is the interface for all notification backends.
type Sink interface {
	// Notify delivers a fired-alert event. Returns error if delivery fails.
	Notify(ctx context.Context, ev model.Event) error
}

// LogSink logs fired events (useful for development).
type LogSink struct{}

// NewLogSink creates a log-based sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Notify(ctx context.Context, ev model.Event) error {
	log.Printf("[notify] alert=%s owner=%s asset=%s %s", ev.Alert.ID, ev.Alert.Owner, ev.Alert.Asset, describe(ev))
	return nil
}

// Multi fans an event out to several sinks. Each sink gets the event even
// when an earlier one fails; the first error is returned.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, ev model.Event) error {
	var first error
	for _, s := range m {
		if err := s.Notify(ctx, ev); err != nil {
			log.Printf("[notify] sink error: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// describe renders the human-readable trigger line shared by all backends.
func describe(ev model.Event) string {
	c := ev.Alert.Condition
	switch c.Type {
	case model.PriceAbove:
		return fmt.Sprintf("price %.4f crossed above %.4f", ev.Value, c.Threshold)
	case model.PriceBelow:
		return fmt.Sprintf("price %.4f crossed below %.4f", ev.Value, c.Threshold)
	case model.IndicatorCross:
		return fmt.Sprintf("%s(%d)=%.4f crossed %s %.4f", c.Kind, c.Period, ev.Value, c.Direction, c.Threshold)
	default:
		return fmt.Sprintf("value %.4f met condition", ev.Value)
	}
}
