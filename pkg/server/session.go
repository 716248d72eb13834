package server

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/export"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

const (
	writeWait   = 10 * time.Second
	sendBuffer  = 32
	eventBuffer = 64
)

// Message types pushed to the browser.
const (
	MessageHello  = "hello"
	MessageFrame  = "frame"
	MessageReload = "reload"
	MessageError  = "error"
)

// ClientMessage is an input event sent by the page script.
type ClientMessage struct {
	Type    string   `json:"type"` // select or pointer
	Mount   string   `json:"mount"`
	Control string   `json:"control,omitempty"`
	Values  []string `json:"values,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
}

// ServerMessage is pushed to the page: a session greeting, a frame of one
// mount, a reload request or an error.
type ServerMessage struct {
	Type     string          `json:"type"`
	Session  string          `json:"session,omitempty"`
	Mount    string          `json:"mount,omitempty"`
	SVG      string          `json:"svg,omitempty"`
	Controls []chart.Control `json:"controls,omitempty"`
	Active   bool            `json:"active,omitempty"`
	Error    string          `json:"error,omitempty"`
}

var pointerKinds = map[string]chart.PointerKind{
	"move":  chart.PointerMove,
	"leave": chart.PointerLeave,
	"down":  chart.PointerDown,
	"up":    chart.PointerUp,
	"click": chart.PointerClick,
}

// Event converts the message into a dashboard event.
func (m ClientMessage) Event() (dashboard.Event, error) {
	switch m.Type {
	case "select":
		return dashboard.Select(m.Mount, m.Control, m.Values...), nil
	case "pointer":
		kind, ok := pointerKinds[m.Kind]
		if !ok {
			return dashboard.Event{}, fmt.Errorf("unknown pointer kind %q", m.Kind)
		}
		return dashboard.PointerAt(m.Mount, kind, m.X, m.Y), nil
	default:
		return dashboard.Event{}, fmt.Errorf("unknown message type %q", m.Type)
	}
}

// Session is one browser page lifetime: its own dashboard, event loop and
// websocket.
type Session struct {
	ID     string
	conn   *websocket.Conn
	dash   *dashboard.Dashboard
	events chan dashboard.Event
	send   chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newSession(ctx context.Context, conn *websocket.Conn, t *model.Table, opts dashboard.Options) (*Session, error) {
	s := &Session{
		ID:     newSessionID(),
		conn:   conn,
		events: make(chan dashboard.Event, eventBuffer),
		send:   make(chan []byte, sendBuffer),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	opts.OnUpdate = s.push
	d, err := dashboard.Bind(dashboard.AllMounts(), t, opts)
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.dash = d
	return s, nil
}

// Close ends the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}

// Notify queues a message for the browser without blocking the caller.
func (s *Session) Notify(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		debug.Log("server: marshal %s: %v", msg.Type, err)
		return
	}
	select {
	case s.send <- data:
	case <-s.ctx.Done():
	default:
		debug.Log("server: session %s send buffer full, dropping %s", s.ID, msg.Type)
	}
}

// push renders an updated frame. It runs on the dashboard loop and waits
// for room in the send buffer so final frames are never dropped.
func (s *Session) push(u dashboard.Update) {
	var buf bytes.Buffer
	if err := export.RenderSVG(&buf, u.Frame, u.Mount+"-svg"); err != nil {
		debug.Log("server: render %s: %v", u.Mount, err)
		return
	}
	data, err := json.Marshal(ServerMessage{
		Type:     MessageFrame,
		Mount:    u.Mount,
		SVG:      buf.String(),
		Controls: u.Controls,
		Active:   u.Active,
	})
	if err != nil {
		debug.Log("server: marshal frame: %v", err)
		return
	}
	select {
	case s.send <- data:
	case <-s.ctx.Done():
	}
}

// serve runs the session until the socket closes or ctx ends.
func (s *Session) serve(hub *Hub, interval time.Duration) {
	hub.add(s)
	defer hub.remove(s)
	defer s.Close()

	s.Notify(ServerMessage{Type: MessageHello, Session: s.ID})

	go func() {
		if err := s.dash.Run(s.ctx, s.events); err != nil && err != context.Canceled {
			debug.Log("server: session %s loop: %v", s.ID, err)
		}
	}()
	go s.tick(interval)
	go s.writePump()
	s.readPump()
}

// tick feeds animation frames into the loop. Ticks are skipped while the
// loop is busy.
func (s *Session) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			select {
			case s.events <- dashboard.Tick(now):
			default:
			}
		}
	}
}

func (s *Session) readPump() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Log("server: session %s read: %v", s.ID, err)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Notify(ServerMessage{Type: MessageError, Error: "invalid message: " + err.Error()})
			continue
		}
		ev, err := msg.Event()
		if err != nil {
			s.Notify(ServerMessage{Type: MessageError, Error: err.Error()})
			continue
		}
		if _, ok := s.dash.View(ev.Mount); !ok {
			s.Notify(ServerMessage{Type: MessageError, Error: fmt.Sprintf("unknown mount %q", ev.Mount)})
			continue
		}
		select {
		case s.events <- ev:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) writePump() {
	for {
		select {
		case <-s.ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				debug.Log("server: session %s write: %v", s.ID, err)
				s.Close()
				return
			}
		}
	}
}
