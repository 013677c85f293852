// Package nodestream carries node-mutation events over a Redis stream.
// The CMS mirror publishes one entry per node mutation; the indexing daemon
// consumes them in order.
package nodestream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"
)

// Event is one node mutation. Path is carried on the event so removals can
// be indexed even after the node's mirror snapshot is gone.
type Event struct {
	NodeIdentifier  string
	Path            string
	Workspace       string
	TargetWorkspace string
	Removed         bool
}

// Message is an event together with its stream position.
type Message struct {
	ID    string
	Event Event
}

// Config holds connection parameters for the mutation stream.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// Stream is the stream key, e.g. "treedex:mutations".
	Stream string
}

// Consumer reads mutation events from the stream, tracking its own position.
type Consumer struct {
	client rueidis.Client
	stream string
	lastID string
}

// NewConsumer creates a stream consumer starting after the given ID.
// An empty startID consumes from the beginning of the stream.
func NewConsumer(cfg Config, startID string) (*Consumer, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("stream is required")
	}
	if startID == "" {
		startID = "0"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Consumer{client: client, stream: cfg.Stream, lastID: startID}, nil
}

// Close shuts down the client.
func (c *Consumer) Close() {
	c.client.Close()
}

// Next blocks up to blockMillis for new entries and returns at most count
// messages. An empty result means the block window elapsed without entries.
func (c *Consumer) Next(ctx context.Context, count int64, blockMillis int64) ([]Message, error) {
	cmd := c.client.B().Xread().
		Count(count).
		Block(blockMillis).
		Streams().Key(c.stream).Id(c.lastID).
		Build()

	streams, err := c.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", c.stream, err)
	}

	entries := streams[c.stream]
	messages := make([]Message, 0, len(entries))
	for _, entry := range entries {
		event, err := eventFromFields(entry.FieldValues)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		messages = append(messages, Message{ID: entry.ID, Event: event})
		c.lastID = entry.ID
	}
	return messages, nil
}

// Publisher appends mutation events to the stream.
type Publisher struct {
	client rueidis.Client
	stream string
}

// NewPublisher creates a stream publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("stream is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Publisher{client: client, stream: cfg.Stream}, nil
}

// Close shuts down the client.
func (p *Publisher) Close() {
	p.client.Close()
}

// Publish appends one event and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	if event.NodeIdentifier == "" {
		return "", fmt.Errorf("event without node identifier")
	}
	cmd := p.client.B().Xadd().Key(p.stream).Id("*").FieldValue().
		FieldValue(fieldNode, event.NodeIdentifier).
		FieldValue(fieldPath, event.Path).
		FieldValue(fieldWorkspace, event.Workspace).
		FieldValue(fieldTarget, event.TargetWorkspace).
		FieldValue(fieldRemoved, strconv.FormatBool(event.Removed)).
		Build()

	id, err := p.client.Do(ctx, cmd).ToString()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", p.stream, err)
	}
	return id, nil
}

const (
	fieldNode      = "node"
	fieldPath      = "path"
	fieldWorkspace = "workspace"
	fieldTarget    = "target"
	fieldRemoved   = "removed"
)

func eventFromFields(fields map[string]string) (Event, error) {
	event := Event{
		NodeIdentifier:  fields[fieldNode],
		Path:            fields[fieldPath],
		Workspace:       fields[fieldWorkspace],
		TargetWorkspace: fields[fieldTarget],
	}
	if event.NodeIdentifier == "" {
		return Event{}, fmt.Errorf("missing %s field", fieldNode)
	}
	if raw, ok := fields[fieldRemoved]; ok && raw != "" {
		removed, err := strconv.ParseBool(raw)
		if err != nil {
			return Event{}, fmt.Errorf("parse %s field: %w", fieldRemoved, err)
		}
		event.Removed = removed
	}
	return event, nil
}
