package events

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEventName is the socket.io event every notification is emitted as.
const DefaultEventName = "callgrid"

// SocketIOConfig describes the notification endpoint.
type SocketIOConfig struct {
	URL                string
	Namespace          string
	EventName          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIOSink emits events to a connected socket.io client.
type SocketIOSink struct {
	io        *socket.Socket
	eventName string
}

// DialSocketIO connects to cfg.URL and waits for the connect handshake.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIOSink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if cfg.EventName == "" {
		cfg.EventName = DefaultEventName
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to notification endpoint", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIOSink{io: io, eventName: cfg.EventName}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(cfg.ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", cfg.ConnectTimeout)
	}
}

func (s *SocketIOSink) Emit(ctx context.Context, ev Event) {
	s.io.Emit(s.eventName, Payload(ev))
}

// Close disconnects the client.
func (s *SocketIOSink) Close() error {
	s.io.Disconnect()
	return nil
}

// Payload renders ev as the JSON-friendly map sent over the wire.
func Payload(ev Event) map[string]any {
	p := map[string]any{
		"type":   string(ev.Type),
		"run_id": ev.RunID,
		"time":   ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Node != "" {
		p["node"] = ev.Node
		p["role"] = ev.Role
	}
	if len(ev.Paths) > 0 {
		p["paths"] = ev.Paths
	}
	if ev.Err != nil {
		p["error"] = ev.Err.Error()
	}
	if ev.Elapsed > 0 {
		p["elapsed_ms"] = ev.Elapsed.Milliseconds()
	}
	return p
}
