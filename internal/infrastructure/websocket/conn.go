package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tickfeed/internal/application/port"
)

// ErrClosed 连接已被本地关闭
var ErrClosed = errors.New("websocket closed")

// Options 传输层参数
type Options struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration // 协议层 ping，0 表示不发送
	ReadTimeout      time.Duration // 收到消息或 pong 时顺延，0 表示不设读超时
	WriteTimeout     time.Duration
}

// DefaultOptions 默认传输参数
var DefaultOptions = Options{
	HandshakeTimeout: 10 * time.Second,
	PingInterval:     25 * time.Second,
	ReadTimeout:      60 * time.Second,
	WriteTimeout:     5 * time.Second,
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultOptions.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultOptions.WriteTimeout
	}
	return o
}

// Conn 基于 gorilla/websocket 的 port.Conn 实现
type Conn struct {
	conn *gws.Conn
	opts Options

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial 建立连接并启动 ping 保活
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	dialer := &gws.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	c := &Conn{
		conn: conn,
		opts: opts,
		done: make(chan struct{}),
	}
	c.extendDeadline()
	conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})
	if opts.PingInterval > 0 {
		go c.keepalive()
	}
	return c, nil
}

func (c *Conn) extendDeadline() {
	if c.opts.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	}
}

func (c *Conn) keepalive() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(gws.PingMessage, []byte("ping"), time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				log.Debug().Err(err).Msg("ws ping failed")
				return
			}
		}
	}
}

// ReadMessage 读取下一条数据帧；ctx 结束时关闭连接使读取返回
func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		typ, b, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil, ErrClosed
			default:
			}
			return nil, err
		}
		c.extendDeadline()
		if typ == gws.TextMessage || typ == gws.BinaryMessage {
			return b, nil
		}
	}
}

func (c *Conn) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.conn.WriteMessage(gws.TextMessage, b)
}

// Close 发送 close 帧并关闭底层连接，可重复调用
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

var _ port.Conn = (*Conn)(nil)
