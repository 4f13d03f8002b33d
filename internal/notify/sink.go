// Package notify delivers moderation outcomes to interested users
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel is the pub/sub channel the notification hub consumes
const Channel = "notifications"

// Event types
const (
	EventReportClosed = "forum.report_closed"
	EventTopicLocked  = "forum.topic_locked"
	EventTopicMoved   = "forum.topic_moved"
)

// Event is one moderation outcome addressed to a user
type Event struct {
	Type     string `json:"type"`
	UserID   uint64 `json:"user_id"`
	TopicID  uint64 `json:"topic_id,omitempty"`
	ReportID uint64 `json:"report_id,omitempty"`
	Message  string `json:"message"`
}

// Sink receives events. Delivery failures never affect the forum operation.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// hub envelope: {"member_id": "...", "event": {"type": "notification", "payload": ...}}
type hubEvent struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

type hubMessage struct {
	MemberID string   `json:"member_id"`
	Event    hubEvent `json:"event"`
}

// RedisSink publishes events to the notification hub over Redis pub/sub
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink creates a RedisSink
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// Notify publishes ev for its target user
func (s *RedisSink) Notify(ctx context.Context, ev Event) error {
	if s.client == nil {
		return errors.New("redis client not configured")
	}
	data, err := json.Marshal(hubMessage{
		MemberID: strconv.FormatUint(ev.UserID, 10),
		Event:    hubEvent{Type: "notification", Payload: ev},
	})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, Channel, data).Err()
}

// LogSink writes events to the structured log
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a LogSink
func NewLogSink() *LogSink {
	return &LogSink{log: pkglogger.WithComponent("notify")}
}

// Notify logs ev
func (s *LogSink) Notify(_ context.Context, ev Event) error {
	s.log.Info().
		Str("type", ev.Type).
		Uint64("user_id", ev.UserID).
		Uint64("topic_id", ev.TopicID).
		Uint64("report_id", ev.ReportID).
		Msg(ev.Message)
	return nil
}

// MultiSink fans an event out to every sink and joins their errors
type MultiSink []Sink

// Notify delivers ev to every sink
func (m MultiSink) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers ev and logs a failure instead of returning it
func Send(ctx context.Context, sink Sink, ev Event) {
	if sink == nil || ev.UserID == 0 {
		return
	}
	if err := sink.Notify(ctx, ev); err != nil {
		pkglogger.GetLogger().Warn().
			Err(err).
			Str("type", ev.Type).
			Uint64("user_id", ev.UserID).
			Msg("notification delivery failed")
	}
}
