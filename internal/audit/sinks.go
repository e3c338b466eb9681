package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"visitas/internal/models"
)

// TimelineWriter is the storage side of the timeline
type TimelineWriter interface {
	Create(ctx context.Context, event *models.TimelineEvent) error
}

// SQLSink appends events to the timeline_events table
type SQLSink struct {
	store TimelineWriter
}

func NewSQLSink(store TimelineWriter) *SQLSink {
	return &SQLSink{store: store}
}

func (s *SQLSink) Write(ctx context.Context, event *models.TimelineEvent) error {
	return s.store.Create(ctx, event)
}

// Publisher is the subset of *nats.Conn the NATS sink needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATSSink publishes each event as JSON on "<subject>.<action>"
type NATSSink struct {
	conn    Publisher
	subject string
}

func NewNATSSink(conn Publisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// ConnectNATS dials the server used by the NATS sink
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name("visitas"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

func (s *NATSSink) Write(_ context.Context, event *models.TimelineEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode timeline event: %w", err)
	}
	if err := s.conn.Publish(s.subject+"."+string(event.Action), data); err != nil {
		return fmt.Errorf("failed to publish timeline event: %w", err)
	}
	return nil
}

// MultiSink writes to every sink, returning the joined errors
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, event *models.TimelineEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
