package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Frames buffered per client before it is dropped as too slow
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// command is a request sent by a client over the event stream
type command struct {
	Action string `json:"action"` // "start", "stop", "resolve" or "state"
	Type   string `json:"type,omitempty"`
	Name   string `json:"name,omitempty"`
	Domain string `json:"domain,omitempty"`
}

type client struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue hands a frame to the write pump without blocking. It reports
// false when the client cannot keep up.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	c := &client{
		id:         s.newClientID(),
		remoteAddr: r.RemoteAddr,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}

	// Register and snapshot under the same lock as broadcasts so no event
	// is delivered to the client before its snapshot
	s.mu.Lock()
	select {
	case <-s.baseCtx.Done():
		s.mu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	c.enqueue(encode(Message{Type: MessageSnapshot, Snapshot: &SnapshotView{
		StateView: newStateView(s.orch),
		Services:  NewServiceViews(s.orch.Services()),
	}}))
	s.clients[c.id] = c
	s.wg.Add(2)
	s.mu.Unlock()

	logging.LogConnection(c.remoteAddr, "websocket_connected")

	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(c)
	}()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
}

// readPump handles client commands and pongs until the connection ends
func (s *Server) readPump(c *client) {
	defer s.removeClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Connection closed unexpectedly",
					zap.String("client_id", c.id),
					zap.Error(err))
			}
			return
		}
		logging.LogWebSocketMessage(c.remoteAddr, "received", msgType, data)

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.enqueue(encode(Message{Type: MessageError, Error: "invalid command: " + err.Error()}))
			continue
		}
		s.runCommand(c, cmd)
	}
}

func (s *Server) runCommand(c *client, cmd command) {
	switch cmd.Action {
	case "start":
		s.orch.StartDiscovery(s.baseCtx)
	case "stop":
		s.orch.StopDiscovery()
	case "resolve":
		id, err := s.identityFor(resolveRequest{Type: cmd.Type, Name: cmd.Name, Domain: cmd.Domain})
		if err != nil {
			c.enqueue(encode(Message{Type: MessageError, Error: err.Error()}))
			return
		}
		s.orch.ResolveService(s.baseCtx, id)
	case "state":
		c.enqueue(encode(Message{Type: MessageSnapshot, Snapshot: &SnapshotView{
			StateView: newStateView(s.orch),
			Services:  NewServiceViews(s.orch.Services()),
		}}))
	default:
		c.enqueue(encode(Message{Type: MessageError, Error: "unknown action: " + cmd.Action}))
	}
}

// writePump sends queued frames and keeps the connection alive with pings
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		logging.LogConnection(c.remoteAddr, "websocket_closed")
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug("Write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
			logging.LogWebSocketMessage(c.remoteAddr, "sent", websocket.TextMessage, frame)
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// broadcastEvent runs on the orchestrator's dispatcher goroutine and must
// not block; clients that fall behind are disconnected.
func (s *Server) broadcastEvent(ev discovery.Event) {
	frame := encode(Message{Type: MessageEvent, Event: newEventView(ev)})

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		if !c.enqueue(frame) {
			logging.Warn("Dropping slow WebSocket client", zap.String("client_id", id))
			delete(s.clients, id)
			c.close()
		}
	}
}

func encode(m Message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		logging.Error("Failed to encode message", zap.Error(err))
		data, _ = json.Marshal(Message{Type: MessageError, Error: "encoding failed"})
	}
	return data
}
