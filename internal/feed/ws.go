package feed

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsClient owns one websocket connection: a write pump draining send, a read
// pump filling recv, ping keepalive, and redial with resubscription when the
// peer drops us.
type wsClient struct {
	name string
	url  string
	log  *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	send chan []byte
	recv chan []byte
	done chan struct{}
	once sync.Once

	readTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration
	redialWait   time.Duration

	// re-sent after every successful redial
	onConnect func()
}

func newWSClient(name, url string, log *zap.Logger) *wsClient {
	return &wsClient{
		name:         name,
		url:          url,
		log:          log,
		send:         make(chan []byte, 256),
		recv:         make(chan []byte, 4096),
		done:         make(chan struct{}),
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		pingInterval: 20 * time.Second,
		redialWait:   2 * time.Second,
	}
}

func (c *wsClient) connect(ctx context.Context) error {
	if err := c.dial(); err != nil {
		return err
	}
	go c.readPump(ctx)
	go c.writePump(ctx)
	return nil
}

func (c *wsClient) dial() error {
	c.log.Info("connecting", zap.String("feed", c.name), zap.String("url", c.url))
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(5 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
}

func (c *wsClient) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg := <-c.send:
			conn := c.current()
			_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Warn("write failed", zap.String("feed", c.name), zap.Error(err))
			}
		case <-ticker.C:
			conn := c.current()
			_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn("ping failed", zap.String("feed", c.name), zap.Error(err))
			}
		}
	}
}

// readPump feeds recv until closed, redialing on read errors. recv is closed
// only on shutdown so downstream ranges terminate.
func (c *wsClient) readPump(ctx context.Context) {
	defer close(c.recv)

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn := c.current()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-ctx.Done():
				return
			default:
			}
			c.log.Warn("read failed, redialing",
				zap.String("feed", c.name), zap.Error(err))
			if !c.redial(ctx) {
				return
			}
			continue
		}

		select {
		case c.recv <- msg:
		default:
			// drop rather than stall the socket
		}
	}
}

func (c *wsClient) redial(ctx context.Context) bool {
	for {
		select {
		case <-c.done:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(c.redialWait):
		}
		if err := c.dial(); err != nil {
			c.log.Warn("redial failed", zap.String("feed", c.name), zap.Error(err))
			continue
		}
		if c.onConnect != nil {
			c.onConnect()
		}
		return true
	}
}
