package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"remotedesk/internal/capture"
	"remotedesk/internal/codec"
	"remotedesk/internal/config"
	"remotedesk/internal/frame"
	"remotedesk/internal/input"
	"remotedesk/internal/session"
)

// conn drives one accepted websocket. Only one goroutine writes frames: the
// reader in the pull model, the pusher in the push model.
type conn struct {
	srv      *Server
	ws       *websocket.Conn
	sess     *session.Session
	clientID string
	log      *slog.Logger

	// Push model bookkeeping, in unix nanoseconds.
	lastSent atomic.Int64
	lastAck  atomic.Int64
}

func newConn(srv *Server, ws *websocket.Conn, sess *session.Session, clientID string) *conn {
	return &conn{
		srv:      srv,
		ws:       ws,
		sess:     sess,
		clientID: clientID,
		log:      sess.Log(),
	}
}

func (c *conn) push() bool {
	return c.sess.Role.Frames() && c.srv.cfg.Model == config.ModelPush
}

// serve runs the session until the peer leaves, the transport fails or ctx
// is cancelled. The session is closed, releasing held keys, only after all
// of this connection's goroutines have returned.
func (c *conn) serve(ctx context.Context) {
	c.register()
	defer func() {
		c.unregister()
		_ = c.ws.Close()
		c.sess.Close()
	}()

	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()

	c.ws.SetReadLimit(readLimit)
	c.extendDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	cfg := c.srv.cfg
	c.sess.SetViewport(codec.FrameRequest{Width: cfg.Width, Height: cfg.Height, Quality: cfg.Quality})
	if c.sess.Role.Input() {
		c.declareViewport(codec.FrameRequest{})
	}
	if err := c.sess.Start(); err != nil {
		c.log.Error("session start", tint.Err(err))
		return
	}

	var err error
	if c.push() {
		err = c.runPush(ctx)
	} else {
		err = c.readLoop()
	}
	if err != nil && !isClosure(err) {
		c.log.Warn("connection ended", tint.Err(err))
	} else {
		c.log.Debug("connection ended")
	}
}

func (c *conn) register() {
	m := c.srv.clients
	switch c.sess.Role {
	case session.RoleInput:
		if old := m.SetInput(c.clientID, c.ws); old != nil {
			c.log.Info("revoking previous input connection")
			_ = old.Close()
		}
	default:
		m.AddView(c.clientID, c.ws)
	}
}

func (c *conn) unregister() {
	m := c.srv.clients
	switch c.sess.Role {
	case session.RoleInput:
		m.RemoveInput(c.clientID, c.ws)
	default:
		m.RemoveView(c.clientID, c.ws)
	}
}

func (c *conn) extendDeadline() {
	if d := c.srv.cfg.IdleTimeout; d > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(d))
	}
}

func isClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

// readLoop handles inbound packets until the transport fails.
func (c *conn) readLoop() error {
	for {
		mt, msg, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		c.extendDeadline()
		if err := c.handle(mt, msg); err != nil {
			return err
		}
	}
}

// handle processes one message. Protocol errors and panics are logged and
// the packet dropped; only transport errors are returned.
func (c *conn) handle(mt int, msg []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("packet handler panicked", "panic", fmt.Sprint(r))
			err = nil
		}
	}()

	if mt == websocket.TextMessage && string(msg) == codec.LegacyAck {
		c.ack()
		return nil
	}
	p, err := codec.Decode(msg)
	if err != nil {
		c.log.Warn("dropping packet", "len", len(msg), tint.Err(err))
		return nil
	}

	switch p.Type {
	case codec.PacketFrameRequest:
		return c.frameRequest(p.Frame)
	case codec.PacketInput:
		c.input(p.Payload)
	case codec.PacketFrameAck:
		c.ack()
	}
	return nil
}

func (c *conn) frameRequest(req codec.FrameRequest) error {
	switch {
	case !c.sess.Role.Frames():
		c.declareViewport(req)
		return nil
	case c.push():
		c.sess.SetViewport(req)
		return nil
	}
	c.sess.SetViewport(req)
	return c.send(c.nextFrame(req))
}

// declareViewport sets the geometry of an input-only connection from the
// display bounds and the viewport its viewer renders into. A zero request
// means the client sends real display coordinates.
func (c *conn) declareViewport(req codec.FrameRequest) {
	cfg := c.srv.cfg
	bounds, err := c.srv.capturer.Bounds(cfg.Fullscreen, cfg.Display)
	if err != nil {
		c.log.Warn("reading display bounds", tint.Err(err))
		return
	}
	geo := input.Geometry{Origin: bounds.Min, RealWidth: bounds.Dx(), RealHeight: bounds.Dy()}
	if req.Width > 0 && req.Height > 0 {
		// Same clamp the frames for this viewport go through.
		req = frame.NormalizeRequest(req)
		geo.ViewWidth, geo.ViewHeight = capture.Fit(geo.RealWidth, geo.RealHeight, req.Width, req.Height)
	}
	c.sess.SetGeometry(geo)
}

func (c *conn) input(payload []byte) {
	if !c.sess.Role.Input() {
		c.log.Debug("ignoring input on view connection")
		return
	}
	events, err := codec.DecodeInput(payload)
	if err != nil {
		c.log.Warn("malformed input", "decoded", len(events), tint.Err(err))
	}
	if len(events) == 0 {
		return
	}
	c.srv.dispatcher.Dispatch(c.sess.Access, c.sess.Geometry(), c.sess, events)
}

func (c *conn) ack() {
	c.lastAck.Store(time.Now().UnixNano())
}

// nextFrame captures and diffs one frame. Boundary failures yield a NoOp
// and leave the frame state untouched.
func (c *conn) nextFrame(req codec.FrameRequest) codec.Response {
	cfg := c.srv.cfg
	f, err := c.srv.capturer.Capture(cfg.Fullscreen, cfg.Display)
	if err != nil {
		c.log.Warn("capture failed", tint.Err(err))
		return codec.Response{Type: codec.ResponseNoOp}
	}
	resp, err := c.srv.differ.Next(&c.sess.Frame, f, req)
	if err != nil {
		c.log.Warn("encode failed", tint.Err(err))
		return codec.Response{Type: codec.ResponseNoOp}
	}
	if resp.Type != codec.ResponseNoOp {
		vw, vh := c.sess.Frame.ViewSize()
		c.sess.SetGeometry(input.Geometry{
			Origin:     f.Bounds.Min,
			RealWidth:  f.Width(),
			RealHeight: f.Height(),
			ViewWidth:  vw,
			ViewHeight: vh,
		})
	}
	return resp
}

func (c *conn) send(resp codec.Response) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.BinaryMessage, resp.Encode()); err != nil {
		return fmt.Errorf("write %s frame: %w", resp.Type, err)
	}
	if resp.Type != codec.ResponseNoOp {
		c.log.Debug("sent frame", "type", resp.Type, "bytes", len(resp.Image),
			"partial", c.sess.Frame.PartialSinceFull, "empty", c.sess.Frame.EmptySinceFull)
	}
	return nil
}

// runPush pairs the packet reader with a pusher sending frames at the
// configured rate.
func (c *conn) runPush(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(c.readLoop)
	g.Go(func() error {
		err := c.pushLoop(ctx)
		// Unblocks the reader.
		_ = c.ws.Close()
		return err
	})
	return g.Wait()
}

// pushReady reports whether the pusher may send at now, and whether the
// previous frame went unacked past timeout so the client must be resynced.
// An ack stamped at or after the send timestamp counts.
func (c *conn) pushReady(now time.Time, timeout time.Duration) (ready, resync bool) {
	sent := c.lastSent.Load()
	if sent == 0 || c.lastAck.Load() >= sent {
		return true, false
	}
	if now.Sub(time.Unix(0, sent)) < timeout {
		return false, false
	}
	return true, true
}

// pushLoop sends a frame every tick once the previous one is acked. When no
// ack arrives within the ack timeout the frame state is reset and a full
// frame goes out regardless.
func (c *conn) pushLoop(ctx context.Context) error {
	cfg := c.srv.cfg
	timeout := cfg.AckTimeout()
	ticker := time.NewTicker(cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			ready, resync := c.pushReady(now, timeout)
			if !ready {
				continue
			}
			if resync {
				c.log.Debug("ack timed out, resending")
				c.sess.Frame.Reset()
			}
			resp := c.nextFrame(c.sess.Viewport())
			if resp.Type == codec.ResponseNoOp {
				continue
			}
			// Stamped before the write so an ack racing the write is never older.
			c.lastSent.Store(time.Now().UnixNano())
			if err := c.send(resp); err != nil {
				return err
			}
		}
	}
}
