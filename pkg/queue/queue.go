package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type QueueService interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // retries before dead-lettering
	RetryDelay time.Duration // delay before a retry becomes visible
	PollWait   time.Duration // BRPOP block time
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

var payloadValidator = validator.New()

// DecodePayload unmarshals and validates a job payload. An empty payload yields the zero value.
func DecodePayload[T any](raw json.RawMessage) (*T, error) {
	var out T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	if err := payloadValidator.Struct(&out); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return &out, nil
}
