package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/trybotster/seshterm/internal/relay"
	"github.com/trybotster/seshterm/internal/session"
)

// conn is one websocket observer. The read loop owns the connection's
// subscription; the write loop is the only goroutine writing data frames.
type conn struct {
	srv    *Server
	ws     *websocket.Conn
	out    *relay.Sender
	log    *slog.Logger
	cancel context.CancelFunc

	pump *pump
}

// pump forwards one subscription to the connection.
type pump struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Server) serveConn(ctx context.Context, ws *websocket.Conn, remote string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &conn{
		srv:    s,
		ws:     ws,
		out:    relay.NewSender(s.cfg.SendQueue),
		log:    s.log.With("conn", uuid.NewString()),
		cancel: cancel,
	}
	c.log.Info("Client connected", "remote", remote)
	s.track(c)
	defer s.untrack(c)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		// Closing the socket unblocks the read loop.
		defer ws.Close()
		c.writeLoop(ctx)
	}()

	err := c.readLoop(ctx)
	c.stopPump()
	cancel()
	wg.Wait()
	c.out.Close()

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
		c.log.Warn("Client read failed", "error", err)
	}
	c.log.Info("Client disconnected")
}

func (c *conn) writeLoop(ctx context.Context) {
	cfg := c.srv.cfg
	ticker := time.NewTicker(cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteTimeout))
			return
		case data := <-c.out.C():
			if err := c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("Client write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

// flush writes whatever is already queued, such as a final error.
func (c *conn) flush() {
	for {
		select {
		case data := <-c.out.C():
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) readLoop(ctx context.Context) error {
	cfg := c.srv.cfg
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		// Any client traffic proves the peer is alive.
		_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))

		cmd, err := relay.ParseClientCommand(data)
		if err != nil {
			c.reply(relay.ErrorMessage(fmt.Sprintf("invalid command: %v", err)))
			continue
		}
		event, err := relay.CommandToEvent(cmd)
		if err != nil {
			c.reply(relay.ErrorMessage(err.Error()))
			continue
		}
		c.handleEvent(ctx, event)
	}
}

func (c *conn) handleEvent(ctx context.Context, e relay.Event) {
	switch e.Type {
	case relay.EventHello:
		c.startPump(ctx, e.Since)
		return
	case relay.EventPing:
		c.reply(relay.PongMessage())
		return
	case relay.EventUnknown:
		c.log.Debug("Unknown command", "type", e.Raw)
		c.reply(relay.ErrorMessage("unknown command type: " + e.Raw))
		return
	}

	cmd, ok := relay.EventToCommand(e)
	if !ok {
		return
	}
	var res session.Result
	select {
	case res = <-c.srv.sess.Submit(cmd):
	case <-ctx.Done():
		return
	}
	if res.Err != nil {
		c.log.Debug("Command failed", "command", cmd.Kind, "error", res.Err)
		c.reply(relay.ErrorMessage(fmt.Sprintf("%s: %v", cmd.Kind, res.Err)))
		return
	}
	if cmd.Kind == session.CommandScrollback {
		c.reply(relay.ScrollbackMessage(cmd.Offset, res.Total, res.Lines))
	}
}

func (c *conn) reply(msg relay.ServerMessage) {
	if err := c.out.Send(msg); err != nil {
		c.log.Debug("Dropped reply", "type", msg.Type, "error", err)
	}
}

// startPump replaces the current subscription. A hello with since resumes
// from that generation when the session still has the deltas.
func (c *conn) startPump(ctx context.Context, since *uint64) {
	c.stopPump()

	var sub *session.Subscription
	if since != nil {
		sub = c.srv.sess.Resume(*since)
	} else {
		sub = c.srv.sess.Subscribe()
	}
	pctx, cancel := context.WithCancel(ctx)
	p := &pump{cancel: cancel, done: make(chan struct{})}
	c.pump = p

	go func() {
		defer close(p.done)
		defer sub.Close()
		c.forward(pctx, sub)
	}()
}

func (c *conn) stopPump() {
	if c.pump == nil {
		return
	}
	c.pump.cancel()
	<-c.pump.done
	c.pump = nil
}

// forward blocks on the outbound queue, so a slow client backs up into its
// subscription, which resyncs it with a snapshot.
func (c *conn) forward(ctx context.Context, sub *session.Subscription) {
	id := c.srv.sess.ID.String()
	for {
		u, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, session.ErrClosed) {
				c.reply(relay.ErrorMessage("session closed"))
				c.cancel()
			}
			return
		}
		if err := c.out.SendWait(ctx, relay.UpdateMessage(id, u)); err != nil {
			return
		}
	}
}
