package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultActivityWSSURL = "wss://ws-live-data.polymarket.com"

// Trade is one wallet-activity event as delivered on the wire.
type Trade struct {
	WalletAddress string  `json:"proxyWallet"`
	MarketID      string  `json:"conditionId"`
	MarketTitle   string  `json:"title"`
	Side          string  `json:"side"`
	Outcome       string  `json:"outcome"`
	SizeUSD       float64 `json:"size"`
	Price         float64 `json:"price"`
	Timestamp     int64   `json:"timestamp"`
	Category      string  `json:"eventSlug"`
}

type subscribeRequest struct {
	Type    string   `json:"type"`
	Wallets []string `json:"wallets,omitempty"`
}

type envelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type wsClient struct {
	url  string
	conn *websocket.Conn
}

func newWSClient(url string) *wsClient {
	if strings.TrimSpace(url) == "" {
		url = DefaultActivityWSSURL
	}
	return &wsClient{url: url}
}

func (c *wsClient) connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)
	c.conn = conn
	return nil
}

func (c *wsClient) close(status websocket.StatusCode, reason string) error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close(status, reason)
}

func (c *wsClient) subscribe(ctx context.Context, wallets []string) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("ws not connected")
	}
	payload, err := json.Marshal(subscribeRequest{Type: "trades", Wallets: wallets})
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsClient) read(ctx context.Context) (envelope, []byte, error) {
	if c == nil || c.conn == nil {
		return envelope{}, nil, fmt.Errorf("ws not connected")
	}
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return envelope{}, nil, err
	}
	var env envelope
	_ = json.Unmarshal(data, &env)
	return env, data, nil
}

// StreamOptions configures the wallet-activity stream. WalletProvider, when
// set, is polled so newly-followed wallets get picked up on reconnect.
type StreamOptions struct {
	URL            string
	Wallets        []string
	WalletProvider func(context.Context) ([]string, error)
	PingInterval   time.Duration
	PingTimeout    time.Duration
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	Logger         *zap.Logger
}

// Stream maintains a reconnecting subscription to the wallet-activity feed
// and delivers each observed trade to the handler.
type Stream struct {
	opts StreamOptions
}

func NewStream(opts StreamOptions) *Stream {
	if opts.URL == "" {
		opts.URL = DefaultActivityWSSURL
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin == 0 {
		opts.BackoffMin = 1 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &Stream{opts: opts}
}

func (s *Stream) Run(ctx context.Context, onTrade func(Trade)) error {
	if s == nil {
		return fmt.Errorf("stream is nil")
	}
	backoff := s.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		client := newWSClient(s.opts.URL)
		if err := client.connect(ctx); err != nil {
			if s.opts.Logger != nil {
				s.opts.Logger.Warn("activity ws connect failed", zap.Error(err))
			}
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}

		wallets := s.opts.Wallets
		if s.opts.WalletProvider != nil {
			if list, err := s.opts.WalletProvider(ctx); err == nil && len(list) > 0 {
				wallets = list
			}
		}
		if err := client.subscribe(ctx, wallets); err != nil {
			if s.opts.Logger != nil {
				s.opts.Logger.Warn("activity ws subscribe failed", zap.Error(err))
			}
			_ = client.close(websocket.StatusInternalError, "subscribe failed")
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Info("activity ws subscribed", zap.Int("wallets", len(wallets)))
		}
		backoff = s.opts.BackoffMin

		err := s.consume(ctx, client, onTrade)
		_ = client.close(websocket.StatusNormalClosure, "reconnect")
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, s.opts.BackoffMax)
	}
}

func (s *Stream) consume(ctx context.Context, client *wsClient, onTrade func(Trade)) error {
	pingErr := make(chan error, 1)
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(s.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				pingErr <- pingCtx.Err()
				return
			case <-ticker.C:
				c, cancelPing := context.WithTimeout(pingCtx, s.opts.PingTimeout)
				err := client.conn.Ping(c)
				cancelPing()
				if err != nil {
					pingErr <- err
					return
				}
			}
		}
	}()

	for {
		select {
		case err := <-pingErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		default:
		}
		env, raw, err := client.read(ctx)
		if err != nil {
			if s.opts.Logger != nil && !errors.Is(err, context.Canceled) {
				s.opts.Logger.Warn("activity ws read failed", zap.Error(err))
			}
			return err
		}
		if strings.EqualFold(env.EventType, "ping") {
			continue
		}
		var trade Trade
		payload := raw
		if len(env.Payload) > 0 {
			payload = env.Payload
		}
		if err := json.Unmarshal(payload, &trade); err != nil {
			continue
		}
		if trade.WalletAddress == "" || trade.MarketID == "" {
			continue
		}
		if onTrade != nil {
			onTrade(trade)
		}
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base / 2)))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
