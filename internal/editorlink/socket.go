package editorlink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/dripflow/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultConnectTimeout bounds Dial when the options leave it unset.
const DefaultConnectTimeout = 15 * time.Second

// Options configure the socket.io connection to the canvas.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// connectError normalizes the arguments of a connect_error event.
func connectError(args []any) error {
	if len(args) == 0 {
		return errors.New("connect_error")
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", args[0])
}

// SocketTransport is a Transport over a connected socket.io client.
type SocketTransport struct {
	io *socket.Socket
}

// Dial connects to the canvas and waits for the connection to be
// acknowledged.
func Dial(ctx context.Context, o Options) (*SocketTransport, error) {
	logger := ctxlog.FromContext(ctx).With("url", o.URL, "namespace", o.Namespace)
	logger.Info("Connecting to editor...")

	parsedURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse editor URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("editor URL %q must be absolute", o.URL)
	}
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to editor.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connectChan <- connectError(errs)
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketTransport{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}

// On registers fn for event.
func (t *SocketTransport) On(event string, fn func(args ...any)) {
	t.io.On(types.EventName(event), fn)
}

// Emit sends event with args.
func (t *SocketTransport) Emit(event string, args ...any) {
	t.io.Emit(event, args...)
}

// Close disconnects from the canvas.
func (t *SocketTransport) Close() {
	t.io.Disconnect()
}

// Serve pushes the current validation result and keeps t open until ctx is
// cancelled.
func Serve(ctx context.Context, l *Link, t *SocketTransport) error {
	l.Sync()
	<-ctx.Done()
	ctxlog.FromContext(ctx).Info("Disconnecting from editor.", "sid", t.io.Id())
	t.Close()
	return nil
}
