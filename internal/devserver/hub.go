package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/skillswap/chatsync/internal/logger"
)

var log = logger.New("devserver")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// socketEvent is the frame pushed to clients. The client treats it purely as
// a refresh trigger.
type socketEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
}

type hubClient struct {
	userID string
	socket *websocket.Conn
	send   chan []byte
}

// hub tracks connected sockets by user id. A user may hold several
// connections (multiple tabs); events go to all of them.
type hub struct {
	mu         sync.Mutex
	clients    map[string]map[*hubClient]struct{}
	register   chan *hubClient
	unregister chan *hubClient
	done       chan struct{}
	stopOnce   sync.Once
}

func newHub() *hub {
	return &hub{
		clients:    make(map[string]map[*hubClient]struct{}),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		done:       make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*hubClient]struct{})
			}
			h.clients[client.userID][client] = struct{}{}
			h.mu.Unlock()
			log.Info("socket connected: user %s", client.userID)
		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.userID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.userID)
					}
					log.Info("socket disconnected: user %s", client.userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// stop ends the run loop. Safe to call more than once. Connected pumps exit
// on their own when their sockets close.
func (h *hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// notify pushes ev to every connection held by each of userIDs. Slow
// connections are dropped rather than allowed to block the hub.
func (h *hub) notify(userIDs []string, ev socketEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error("marshaling socket event: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userID := range userIDs {
		for client := range h.clients[userID] {
			select {
			case client.send <- payload:
			default:
				close(client.send)
				delete(h.clients[userID], client)
				log.Warn("dropping slow socket for user %s", userID)
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dev fixture only; the production backend enforces origins.
		return true
	},
}

// handleSocket upgrades GET /socket?id=<userID>. The user id travels as a
// query parameter, mirroring how the production backend routes events.
func (s *Server) handleSocket(c *gin.Context) {
	userID := c.Query("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}
	if _, err := s.store.GetUserByID(userID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("socket upgrade failed: %v", err)
		return
	}

	client := &hubClient{
		userID: userID,
		socket: conn,
		send:   make(chan []byte, 32),
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go client.readPump(s.hub)
	go client.writePump()
}

// readPump consumes inbound frames. The only frame the contract defines is
// join; everything else is logged and ignored.
func (c *hubClient) readPump(h *hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.socket.Close()
	}()

	c.socket.SetReadLimit(64 * 1024)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error("socket read for user %s: %v", c.userID, err)
			}
			return
		}
		c.socket.SetReadDeadline(time.Now().Add(pongWait))

		var frame struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		}
		if err := json.Unmarshal(payload, &frame); err != nil {
			log.Warn("malformed frame from user %s: %v", c.userID, err)
			continue
		}
		switch frame.Type {
		case "join":
			log.Debug("join from user %s", frame.ID)
		default:
			log.Debug("ignoring frame type %q from user %s", frame.Type, c.userID)
		}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
