package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trybotster/seshterm/internal/relay"
)

// Client talks to a seshterm server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     websocket.Dialer
	logger     *slog.Logger
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://127.0.0.1:7681". A nil logger uses slog.Default().
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Health fetches GET /healthz.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.getJSON(ctx, "/healthz", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Scrollback fetches scrollback rows; offset 0 is the most recent row.
func (c *Client) Scrollback(ctx context.Context, offset, count int) (*relay.ServerMessage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("count", strconv.Itoa(count))

	var result relay.ServerMessage
	if err := c.getJSON(ctx, "/scrollback?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Dial opens the websocket stream and sends hello. With since set, the
// server resumes from that generation when it still can.
func (c *Client) Dial(ctx context.Context, since *uint64) (*Conn, error) {
	wsURL := strings.Replace(c.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/ws"

	ws, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect failed: %w", err)
	}
	conn := &Conn{ws: ws, log: c.logger}
	if err := conn.Send(relay.HelloCommand(since)); err != nil {
		ws.Close()
		return nil, fmt.Errorf("hello failed: %w", err)
	}
	return conn, nil
}

// Dial connects to the server at baseURL with a default client.
func Dial(ctx context.Context, baseURL string, since *uint64) (*Conn, error) {
	return NewClient(baseURL, nil).Dial(ctx, since)
}

// Conn is an open websocket stream. Send may be called concurrently with
// Recv or Follow.
type Conn struct {
	ws  *websocket.Conn
	log *slog.Logger
	wmu sync.Mutex
}

// Send writes a command.
func (c *Conn) Send(cmd relay.ClientCommand) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteJSON(cmd)
}

// Input sends keystrokes to the session.
func (c *Conn) Input(data []byte) error {
	return c.Send(relay.InputCommand(data))
}

// Resize asks the session to change its dimensions.
func (c *Conn) Resize(rows, cols int) error {
	return c.Send(relay.ResizeCommand(uint16(rows), uint16(cols)))
}

// Recv reads the next server message.
func (c *Conn) Recv() (*relay.ServerMessage, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return relay.ParseServerMessage(data)
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.wmu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.ws.Close()
}

// Follow applies every snapshot and delta to m and passes each message to
// fn (which may be nil) until ctx is done or the server closes the stream.
// On a gap it sends a new hello and skips deltas until the snapshot
// arrives.
func (c *Conn) Follow(ctx context.Context, m *relay.Mirror, fn func(*relay.ServerMessage)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.ws.Close()
		case <-stop:
		}
	}()

	resyncing := false
	for {
		msg, err := c.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		if msg.Type == relay.TypeSnapshot {
			resyncing = false
		}
		if _, err := m.Apply(msg); err != nil {
			if !errors.Is(err, relay.ErrGap) {
				return err
			}
			if resyncing {
				continue
			}
			c.log.Info("Stream gap, requesting snapshot", "error", err)
			resyncing = true
			m.Reset()
			if err := c.Send(relay.HelloCommand(nil)); err != nil {
				return fmt.Errorf("hello failed: %w", err)
			}
			continue
		}
		if fn != nil {
			fn(msg)
		}
	}
}
