// Package hooks broadcasts dispatched file events to external consumers over
// a Redis pub/sub channel.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"anything/internal/logging"
	"anything/internal/plugin"
)

// Key is the plugin key the hooks publisher registers under.
const Key plugin.Key = "hooks"

const publishTimeout = 5 * time.Second

// Options configure the Redis connection and channel.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Plugin publishes file events as JSON messages. It satisfies plugin.Handler.
type Plugin struct {
	opts   Options
	logger *slog.Logger
	client *redis.Client
}

// Message is the wire form of one published event.
type Message struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	OldPath string `json:"old_path,omitempty"`
	NewPath string `json:"new_path,omitempty"`
	At      string `json:"at"`
}

// New builds a hooks plugin. Returns nil when no Redis address is configured;
// the factory registry treats a nil handler as the plugin declining to load.
func New(opts Options, logger *slog.Logger) *Plugin {
	if opts.Addr == "" {
		return nil
	}
	if opts.Channel == "" {
		opts.Channel = "anything.events"
	}
	return &Plugin{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "hooks"),
	}
}

// Start connects to Redis and verifies the server is reachable.
func (p *Plugin) Start(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     p.opts.Addr,
		Password: p.opts.Password,
		DB:       p.opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis %s: %w", p.opts.Addr, err)
	}
	p.client = client
	p.logger.Info("hooks publisher connected",
		logging.String("addr", p.opts.Addr),
		logging.String("channel", p.opts.Channel),
		logging.String(logging.FieldEventType, "hooks_connected"),
	)
	return nil
}

// Stop closes the Redis connection.
func (p *Plugin) Stop() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func (p *Plugin) OnFileCreated(path string) {
	p.publish(Message{Kind: "created", Path: path})
}

func (p *Plugin) OnFileDeleted(path string) {
	p.publish(Message{Kind: "deleted", Path: path})
}

func (p *Plugin) OnFileRenamed(oldPath, newPath string) {
	p.publish(Message{Kind: "renamed", Path: newPath, OldPath: oldPath, NewPath: newPath})
}

func (p *Plugin) publish(msg Message) {
	if p.client == nil {
		return
	}
	msg.At = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("failed to encode hook message",
			logging.Error(err),
			logging.String(logging.FieldEventType, "hooks_encode_failed"),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.opts.Channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish hook message",
			logging.Error(err),
			logging.String("channel", p.opts.Channel),
			logging.String(logging.FieldEventType, "hooks_publish_failed"),
			logging.String(logging.FieldErrorHint, "check redis connectivity"),
			logging.String(logging.FieldImpact, "external consumers missed this event"),
		)
	}
}
