package feed

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"arbview/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const defaultHandshakeTimeout = 10 * time.Second

// Option configures a Client.
type Option struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	// ReadTimeout closes a connection that stays silent this long. Zero disables it.
	ReadTimeout time.Duration
	Backoff     Backoff
	// OnConnect runs after every successful dial.
	OnConnect func()
	// OnDisconnect runs when a connection is lost, with the read error.
	OnDisconnect func(err error)
}

// Client dials a websocket feed and hands every binary frame to a handler,
// one frame per call. It redials with backoff until its context ends.
type Client struct {
	opt       Option
	dialer    *websocket.Dialer
	handler   func([]byte)
	connected atomic.Bool
}

// NewClient validates opt and builds a client.
// handler owns the slice it receives.
func NewClient(opt Option, handler func([]byte)) (*Client, error) {
	if opt.URL == "" {
		return nil, exception.ErrFeedEmptyURL
	}
	if handler == nil {
		return nil, exception.ErrFeedNilHandler
	}
	if opt.HandshakeTimeout <= 0 {
		opt.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opt.Backoff == (Backoff{}) {
		opt.Backoff = DefaultBackoff()
	}
	return &Client{
		opt:     opt,
		dialer:  &websocket.Dialer{HandshakeTimeout: opt.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		handler: handler,
	}, nil
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run keeps the feed connected until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	retry := retrier{backoff: c.opt.Backoff}
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := c.dialer.DialContext(ctx, c.opt.URL, c.opt.Header)
		if err != nil {
			wait := retry.dialFailed()
			logs.Errorf("dial feed %s, retry in %s, err: %+v", c.opt.URL, wait, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
				continue
			}
		}

		logs.Infof("feed connected: %s", c.opt.URL)
		if c.opt.OnConnect != nil {
			c.opt.OnConnect()
		}

		connectedAt := time.Now()
		err = c.read(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		wait := retry.sessionEnded(time.Since(connectedAt))
		logs.Errorf("feed disconnected: %s, redial in %s, err: %+v", c.opt.URL, wait, err)
		if c.opt.OnDisconnect != nil {
			c.opt.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	c.connected.Store(true)
	defer c.connected.Store(false)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		if c.opt.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.opt.ReadTimeout)); err != nil {
				return errors.Wrap(err, "set read deadline")
			}
		}
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read message")
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		c.handler(msg)
	}
}
