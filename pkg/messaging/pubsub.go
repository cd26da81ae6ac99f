package messaging

import (
	"fmt"

	"github.com/fystack/modelstore/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Subscription interface {
	Unsubscribe() error
}

type PubSub interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string, handler func(data []byte)) (Subscription, error)
}

type natsPubSub struct {
	natsConn *nats.Conn
}

type natsSubscription struct {
	subscription *nats.Subscription
}

func (ns *natsSubscription) Unsubscribe() error {
	return ns.subscription.Unsubscribe()
}

func NewNATSPubSub(natsConn *nats.Conn) PubSub {
	return &natsPubSub{natsConn}
}

func (n *natsPubSub) Publish(topic string, message []byte) error {
	logger.Debug("[NATS] Publishing message", "topic", topic, "size", len(message))
	return n.natsConn.Publish(topic, message)
}

func (n *natsPubSub) Subscribe(topic string, handler func(data []byte)) (Subscription, error) {
	sub, err := n.natsConn.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}

	if err := n.natsConn.Flush(); err != nil {
		if uerr := sub.Unsubscribe(); uerr != nil {
			logger.Error("Failed to unsubscribe", uerr, "topic", topic)
		}
		return nil, fmt.Errorf("flush after subscribe failed: %w", err)
	}

	return &natsSubscription{subscription: sub}, nil
}

// Connect dials the NATS server, adding credentials when a username is set.
func Connect(url, username, password string) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name("modelstore")}
	if username != "" {
		opts = append(opts, nats.UserInfo(username, password))
	}
	return nats.Connect(url, opts...)
}
