// Package mq carries profile events over a pluggable broker.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cvdreamjob/apiserver/types"
)

// Attribute keys set on every profile event.
const (
	ContentTypeAttr = "content-type"
	TypeAttr        = "type"
	UserIDAttr      = "user_id"
)

const jsonContentType = "application/json"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// EventHandler receives decoded profile events.
type EventHandler func(ctx context.Context, event types.ProfileEvent) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Publish sends a raw message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishEvent encodes event as JSON and publishes it with its type and
// user id as attributes, so consumers can filter without decoding.
func (m *MQ) PublishEvent(ctx context.Context, channel string, event types.ProfileEvent) (string, error) {
	data, attrs, err := EncodeEvent(event)
	if err != nil {
		return "", err
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes raw messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// SubscribeEvents consumes profile events. Payloads that do not decode are
// passed to onMalformed and acked; a nil onMalformed drops them silently.
func (m *MQ) SubscribeEvents(ctx context.Context, channel string, handler EventHandler, onMalformed func(Message, error)) error {
	return m.backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeEvent(msg)
		if err != nil {
			if onMalformed != nil {
				onMalformed(msg, err)
			}
			return nil
		}
		return handler(ctx, event)
	})
}

func (m *MQ) Close() error {
	return m.backend.Close()
}

// EncodeEvent stamps OccurredAt when unset and returns the payload and
// attributes of event.
func EncodeEvent(event types.ProfileEvent) ([]byte, map[string]string, error) {
	if event.Type == "" || event.UserID == "" {
		return nil, nil, fmt.Errorf("profile event needs a type and a user id")
	}
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("encode profile event: %w", err)
	}
	return data, map[string]string{
		ContentTypeAttr: jsonContentType,
		TypeAttr:        event.Type,
		UserIDAttr:      event.UserID,
	}, nil
}

// DecodeEvent parses a message published by PublishEvent.
func DecodeEvent(msg Message) (types.ProfileEvent, error) {
	if ct := msg.Attributes[ContentTypeAttr]; ct != "" && ct != jsonContentType {
		return types.ProfileEvent{}, fmt.Errorf("unexpected content type %q", ct)
	}
	var event types.ProfileEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.ProfileEvent{}, fmt.Errorf("decode profile event: %w", err)
	}
	if event.Type == "" {
		return types.ProfileEvent{}, fmt.Errorf("decode profile event: missing type")
	}
	return event, nil
}
