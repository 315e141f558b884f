// Package notify delivers fire-and-forget "document ready" events.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"lexiflow/internal/cache"

	"github.com/rs/zerolog"
)

const ReadyChannel = "documents:ready"

type Event struct {
	UserID     string    `json:"user_id"`
	DocumentID string    `json:"document_id"`
	DeepLink   string    `json:"deep_link"`
	At         time.Time `json:"at"`
}

type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// DeepLink points the client at the study view for a document.
func DeepLink(appBaseURL, documentID string) string {
	return strings.TrimRight(appBaseURL, "/") + "/documents/" + url.PathEscape(documentID) + "/study"
}

// RedisSink publishes events on ReadyChannel.
type RedisSink struct {
	pub cache.Publisher
}

func NewRedisSink(pub cache.Publisher) *RedisSink {
	return &RedisSink{pub: pub}
}

func (s *RedisSink) Notify(ctx context.Context, ev Event) error {
	if err := s.pub.Publish(ctx, ReadyChannel, ev); err != nil {
		return fmt.Errorf("publish ready event: %w", err)
	}
	return nil
}

// LogSink only records the event. Used when no Redis is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, ev Event) error {
	s.log.Info().
		Str("user_id", ev.UserID).
		Str("document_id", ev.DocumentID).
		Str("deep_link", ev.DeepLink).
		Msg("document ready")
	return nil
}

// FromCache picks the Redis sink when the cache client can publish.
func FromCache(c cache.Client, log zerolog.Logger) Sink {
	if pub, ok := c.(cache.Publisher); ok {
		return NewRedisSink(pub)
	}
	return NewLogSink(log)
}
