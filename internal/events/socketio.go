package events

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DialOptions configures the Socket.IO connection.
type DialOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// Timeout bounds the initial connection; zero means 15s.
	Timeout time.Duration
}

// Publisher emits lifecycle notifications to a Socket.IO server.
type Publisher struct {
	mu    sync.Mutex
	emit  func(event string, payload any)
	close func()
}

// newPublisher wraps an emit function; used by Dial and by tests.
func newPublisher(emit func(event string, payload any), closeFn func()) *Publisher {
	if closeFn == nil {
		closeFn = func() {}
	}
	return &Publisher{emit: emit, close: closeFn}
}

// Dial connects to the server and waits for the connection to be accepted.
func Dial(ctx context.Context, opt DialOptions) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("component", "events", "url", opt.URL)
	logger.Info("Connecting to event server...")

	parsedURL, err := url.Parse(opt.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event server URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("event server URL %q must include scheme and host", opt.URL)
	}

	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if opt.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(opt.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to event server.", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return newPublisher(
		func(event string, payload any) { io.Emit(event, payload) },
		func() {
			logger.Debug("Disconnecting from event server.")
			io.Disconnect()
		},
	), nil
}

func (p *Publisher) send(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit(event, payload)
}

func (p *Publisher) RunStarted(_ context.Context, info RunInfo)   { p.send(NameRunStarted, info) }
func (p *Publisher) TaskStarted(_ context.Context, ev TaskEvent)  { p.send(NameTaskStarted, ev) }
func (p *Publisher) TaskFinished(_ context.Context, ev TaskEvent) { p.send(NameTaskFinished, ev) }
func (p *Publisher) RunFinished(_ context.Context, out RunOutcome) {
	p.send(NameRunFinished, out)
}

// Close disconnects from the server.
func (p *Publisher) Close() {
	p.close()
}
