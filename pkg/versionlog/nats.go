package versionlog

import (
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/fystack/modelstore/pkg/messaging"
	"github.com/goccy/go-json"
)

const DefaultSubject = "modelstore.versions"

// NATSRecorder publishes every entry as a JSON event. It keeps no history of
// its own; subscribers decide what to retain.
type NATSRecorder struct {
	pubsub  messaging.PubSub
	subject string
	now     func() time.Time
}

func NewNATSRecorder(pubsub messaging.PubSub, subject string) *NATSRecorder {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSRecorder{pubsub: pubsub, subject: subject, now: time.Now}
}

func (r *NATSRecorder) Record(namespace, name, message string) error {
	entry := newEntry(namespace, name, message, r.now())
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			return r.pubsub.Publish(r.subject, raw)
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Error("Failed to publish version entry", err, "attempt", n+1, "subject", r.subject)
		}),
	)
	if err != nil {
		return fmt.Errorf("publish version %s/%s: %w", namespace, name, err)
	}
	return nil
}

// DecodeEntry parses an event published by NATSRecorder.
func DecodeEntry(data []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(data, &e)
	return e, err
}
