// Package eventlog publishes club events to a Kafka topic, keyed by club id so each
// club's events stay ordered within a partition.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
)

const headerEventKind = "event-kind"

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher implements eventlog.Publisher on Kafka.
type Publisher struct {
	producer Producer
	topic    string
}

// NewClient opens a franz-go client producing to topic by default.
func NewClient(brokers []string, topic string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if topic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.ClientID("club-registry"),
	}
	return kgo.NewClient(append(base, opts...)...)
}

func NewPublisher(p Producer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	if p.producer == nil {
		return errors.New("nil kafka producer")
	}
	rec, err := Encode(p.topic, e)
	if err != nil {
		return err
	}
	if err := p.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", e.Kind, err)
	}
	return nil
}

type wireEvent struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	ClubID   uint32 `json:"clubId"`
	Member   string `json:"member,omitempty"`
	NewOwner string `json:"newOwner,omitempty"`
	// At is a decimal string; moments can exceed the range JSON numbers carry exactly.
	At string `json:"at"`
}

// Encode builds the Kafka record for e.
func Encode(topic string, e domain.Event) (*kgo.Record, error) {
	value, err := json.Marshal(wireEvent{
		ID:       e.ID,
		Kind:     string(e.Kind),
		ClubID:   uint32(e.ClubID),
		Member:   string(e.Member),
		NewOwner: string(e.NewOwner),
		At:       strconv.FormatUint(uint64(e.At), 10),
	})
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic:   topic,
		Key:     []byte(strconv.FormatUint(uint64(e.ClubID), 10)),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: headerEventKind, Value: []byte(e.Kind)}},
	}, nil
}

// Decode parses a record produced by Encode.
func Decode(r *kgo.Record) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(r.Value, &w); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	at, err := strconv.ParseUint(w.At, 10, 64)
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode event %s: bad at %q: %w", w.ID, w.At, err)
	}
	return domain.Event{
		ID:       w.ID,
		Kind:     domain.EventKind(w.Kind),
		ClubID:   domain.ClubID(w.ClubID),
		Member:   domain.AccountID(w.Member),
		NewOwner: domain.AccountID(w.NewOwner),
		At:       domain.Moment(at),
	}, nil
}
