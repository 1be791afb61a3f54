package mockserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS layer on the REST surface.
		return true
	},
}

// wsRequest is the client-to-server subscription frame.
type wsRequest struct {
	Method       string `json:"method"`
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
}

// midsFrame is the server-to-client price frame.
type midsFrame struct {
	Channel string            `json:"channel"`
	Data    map[string]string `json:"data"`
}

// Hub fans mid-price frames out to subscribed WebSocket clients.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	log        *zap.SugaredLogger
	mu         sync.RWMutex
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		log:        log,
	}
}

// Run is the hub's main loop. Call in a goroutine before serving.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugw("ws_client_connected", "id", client.id, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.subscribed() {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Buffer full, drop the frame for this client.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastMids pushes an allMids frame to every subscribed client.
func (h *Hub) BroadcastMids(mids map[string]string) {
	frame, err := json.Marshal(midsFrame{Channel: "allMids", Data: mids})
	if err != nil {
		h.log.Errorw("ws_marshal_failed", "err", err)
		return
	}
	select {
	case h.broadcast <- frame:
	default:
	}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	mu     sync.RWMutex
	wantsM bool // subscribed to allMids
}

func (c *wsClient) subscribed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wantsM
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		if req.Subscription.Type != "allMids" {
			continue
		}
		c.mu.Lock()
		c.wantsM = req.Method == "subscribe"
		c.mu.Unlock()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("ws_upgrade_failed", "err", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   conn.RemoteAddr().String(),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
