package feed

import (
	"net/http"
	"sync"
	"time"

	"arbview/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultSendBuffer   = 256
)

// OverflowPolicy decides what happens when a subscriber's queue is full.
type OverflowPolicy uint8

const (
	// OverflowDropOldest discards the oldest queued frame to make room.
	OverflowDropOldest OverflowPolicy = iota
	// OverflowDropNewest discards the incoming frame.
	OverflowDropNewest
	// OverflowEvict disconnects the subscriber.
	OverflowEvict
)

// ServerOption configures a Server. Zero values use defaults.
type ServerOption struct {
	// SendBuffer is the per-subscriber queue length.
	SendBuffer int
	// WriteTimeout bounds one frame write; a subscriber that exceeds it is dropped.
	WriteTimeout time.Duration
	Overflow     OverflowPolicy
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (sub *subscriber) close() {
	sub.once.Do(func() {
		close(sub.done)
		if sub.conn != nil {
			_ = sub.conn.Close()
		}
	})
}

// offer queues msg without blocking. It reports false when the subscriber
// has to be evicted.
func (sub *subscriber) offer(msg []byte, policy OverflowPolicy) bool {
	select {
	case sub.send <- msg:
		return true
	default:
	}

	switch policy {
	case OverflowEvict:
		return false
	case OverflowDropNewest:
		return true
	default:
		select {
		case <-sub.send:
		default:
		}
		select {
		case sub.send <- msg:
		default:
		}
		return true
	}
}

// Server accepts websocket subscribers and broadcasts binary frames to all
// of them. Each subscriber has its own bounded queue and writer goroutine,
// so a slow peer never holds up Broadcast or the others.
type Server struct {
	opt      ServerOption
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewServer creates a server that accepts any origin.
func NewServer(opt ServerOption) *Server {
	if opt.SendBuffer <= 0 {
		opt.SendBuffer = defaultSendBuffer
	}
	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = defaultWriteTimeout
	}
	return &Server{
		opt: opt,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the subscriber.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Errorf("upgrade subscriber, err: %+v", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, s.opt.SendBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(sub)

	// subscribers never send data; reading keeps control frames flowing
	// and notices when the peer goes away
	for {
		if _, _, err := conn.NextReader(); err != nil {
			s.remove(sub)
			return
		}
	}
}

func (s *Server) writeLoop(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(s.opt.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				s.remove(sub)
				return
			}
		}
	}
}

// Broadcast queues msg for every subscriber and returns how many accepted
// it. It never waits on the network. msg must not be modified afterwards.
func (s *Server) Broadcast(msg []byte) (int, error) {
	var evicted []*subscriber

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, exception.ErrFeedClosed
	}
	queued := 0
	for sub := range s.subs {
		if !sub.offer(msg, s.opt.Overflow) {
			delete(s.subs, sub)
			evicted = append(evicted, sub)
			continue
		}
		queued++
	}
	s.mu.Unlock()

	for _, sub := range evicted {
		sub.close()
	}
	return queued, nil
}

// Len returns the number of subscribers.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		sub.close()
	}
}

func (s *Server) remove(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.close()
}
