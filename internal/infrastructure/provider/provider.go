package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tickfeed/internal/application/port"
	"tickfeed/internal/infrastructure/websocket"
)

var (
	// ErrMalformed 消息无法解析或不含任何有效记录
	ErrMalformed = errors.New("malformed message")
	// ErrMissingCredential provider 需要凭证但未配置
	ErrMissingCredential = errors.New("missing credential")
)

// AuthMode 凭证的传递方式
type AuthMode string

const (
	AuthNone    AuthMode = "none"
	AuthMessage AuthMode = "message" // 连接后先发送一条鉴权消息
	AuthQuery   AuthMode = "query"   // 作为 URL query 参数
)

// Config 一个 WebSocket provider 的静态描述
type Config struct {
	Name              string
	URL               string
	APIKey            string
	RequireCredential bool
	Managed           bool

	AuthMode      AuthMode
	TokenParam    string // AuthQuery: query 参数名，默认 token
	AuthType      string // AuthMessage: 鉴权消息的 type，默认 auth
	AuthKeyField  string // AuthMessage: 凭证字段名，默认 apiKey
	SubscribeType string // 订阅消息的 type，默认 subscribe

	Dialect   Dialect
	Transport websocket.Options
}

// Settings 来自配置文件的覆盖项
type Settings struct {
	URL       string
	APIKey    string
	Dialect   Dialect
	Transport websocket.Options
}

// Apply 将非空的 settings 覆盖到描述上
func (c Config) Apply(s Settings) Config {
	if u := strings.TrimSpace(s.URL); u != "" {
		c.URL = u
	}
	if k := strings.TrimSpace(s.APIKey); k != "" {
		c.APIKey = k
	}
	c.Dialect = c.Dialect.Merge(s.Dialect)
	if s.Transport != (websocket.Options{}) {
		c.Transport = s.Transport
	}
	return c
}

func (c Config) withDefaults() Config {
	if c.AuthMode == "" {
		c.AuthMode = AuthNone
	}
	if c.TokenParam == "" {
		c.TokenParam = "token"
	}
	if c.AuthType == "" {
		c.AuthType = "auth"
	}
	if c.AuthKeyField == "" {
		c.AuthKeyField = "apiKey"
	}
	if c.SubscribeType == "" {
		c.SubscribeType = "subscribe"
	}
	if c.Transport == (websocket.Options{}) {
		c.Transport = websocket.DefaultOptions
	}
	return c
}

// WSProvider 通用 WebSocket provider：按 Config 拨号、鉴权、逐个订阅，按 Dialect 解析
type WSProvider struct {
	cfg Config
}

func NewWSProvider(cfg Config) *WSProvider {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.URL = strings.TrimSpace(cfg.URL)
	return &WSProvider{cfg: cfg.withDefaults()}
}

func (p *WSProvider) Name() string             { return p.cfg.Name }
func (p *WSProvider) RequiresCredential() bool { return p.cfg.RequireCredential }
func (p *WSProvider) HasCredential() bool      { return p.cfg.APIKey != "" }
func (p *WSProvider) Managed() bool            { return p.cfg.Managed }

// Endpoint 实际拨号的 URL（AuthQuery 时带凭证）
func (p *WSProvider) Endpoint() (string, error) {
	if p.cfg.URL == "" {
		return "", fmt.Errorf("%s: ws url empty", p.cfg.Name)
	}
	if p.cfg.AuthMode != AuthQuery || p.cfg.APIKey == "" {
		return p.cfg.URL, nil
	}
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("%s: parse ws url: %w", p.cfg.Name, err)
	}
	q := u.Query()
	q.Set(p.cfg.TokenParam, p.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *WSProvider) Connect(ctx context.Context) (port.Conn, error) {
	if p.cfg.RequireCredential && !p.HasCredential() {
		return nil, fmt.Errorf("%s: %w", p.cfg.Name, ErrMissingCredential)
	}
	endpoint, err := p.Endpoint()
	if err != nil {
		return nil, err
	}
	conn, err := websocket.Dial(ctx, endpoint, p.cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", p.cfg.Name, err)
	}
	return conn, nil
}

type authMsg map[string]string

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

func (p *WSProvider) Subscribe(ctx context.Context, conn port.Conn, symbols []string) error {
	if p.cfg.AuthMode == AuthMessage && p.cfg.APIKey != "" {
		msg := authMsg{"type": p.cfg.AuthType, p.cfg.AuthKeyField: p.cfg.APIKey}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("%s: auth: %w", p.cfg.Name, err)
		}
	}
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.WriteJSON(subscribeMsg{Type: p.cfg.SubscribeType, Symbol: s}); err != nil {
			return fmt.Errorf("%s: subscribe %s: %w", p.cfg.Name, s, err)
		}
	}
	return nil
}

func (p *WSProvider) Parse(raw []byte) ([]port.Quote, error) {
	return p.cfg.Dialect.Parse(raw)
}

var _ port.Provider = (*WSProvider)(nil)
