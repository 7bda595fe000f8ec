// Package queue carries admitted jobs from the API to the workers over a
// single durable RabbitMQ queue. Delivery is at-least-once.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultQueueName is the one logical queue for all animation jobs.
const DefaultQueueName = "animation-job-queue"

// Payload is the message body. It is not versioned.
type Payload struct {
	JobID          string `json:"jobId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Prompt         string `json:"prompt"`
}

func (p Payload) Validate() error {
	var missing []string
	if strings.TrimSpace(p.JobID) == "" {
		missing = append(missing, "jobId")
	}
	if strings.TrimSpace(p.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(p.ConversationID) == "" {
		missing = append(missing, "conversationId")
	}
	if strings.TrimSpace(p.Prompt) == "" {
		missing = append(missing, "prompt")
	}
	if len(missing) > 0 {
		return fmt.Errorf("payload missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func Encode(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

func Decode(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// ProcessingError tells the consumer how to settle a delivery whose handler
// failed. Requeue puts it back on the queue; otherwise it is dead-lettered.
type ProcessingError struct {
	Err     error
	Requeue bool
}

func (e ProcessingError) Error() string {
	if e.Err == nil {
		return "processing error"
	}
	return e.Err.Error()
}

func (e ProcessingError) Unwrap() error { return e.Err }

// Retry marks err as transient.
func Retry(err error) error { return ProcessingError{Err: err, Requeue: true} }

// Drop marks err as permanent for this delivery.
func Drop(err error) error { return ProcessingError{Err: err, Requeue: false} }

// Settlement is how a delivery is finished.
type Settlement int

const (
	SettleAck Settlement = iota
	SettleRequeue
	SettleDeadLetter
)

func (s Settlement) String() string {
	switch s {
	case SettleAck:
		return "ack"
	case SettleRequeue:
		return "requeue"
	default:
		return "dead-letter"
	}
}

// Settle maps a handler result to a settlement. Unclassified errors are
// dead-lettered so a poison message cannot loop forever.
func Settle(err error) Settlement {
	if err == nil {
		return SettleAck
	}
	var pe ProcessingError
	if errors.As(err, &pe) && pe.Requeue {
		return SettleRequeue
	}
	return SettleDeadLetter
}
