package websocket

import (
	"sync"
	"time"

	"malariascope/internal/logger"

	"github.com/gorilla/websocket"
)

// NotifyBuffer is how many undelivered status messages the hub holds before
// new ones are dropped.
const NotifyBuffer = 64

// WriteWait bounds a single write so one stalled viewer cannot hold up the
// others.
const WriteWait = 5 * time.Second

type client struct {
	conn     *websocket.Conn
	username string
}

type notification struct {
	username string
	message  []byte
}

// HubService fans run status messages out to every open page of a user.
// Only the Run loop writes to connections.
type HubService struct {
	clients    map[*websocket.Conn]string
	notify     chan notification
	register   chan client
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	writeWait  time.Duration
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]string),
		notify:     make(chan notification, NotifyBuffer),
		register:   make(chan client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
		writeWait:  WriteWait,
	}
}

// Run serves registrations and notifications until Stop is called.
func (h *HubService) Run() {
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.conn] = c.username
			h.mutex.Unlock()
			h.logger.Info("Viewer %s connected. Total: %d", c.username, h.GetClientCount())

		case conn := <-h.unregister:
			h.remove(conn)
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case n := <-h.notify:
			for _, conn := range h.connsOf(n.username) {
				conn.SetWriteDeadline(time.Now().Add(h.writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, n.message); err != nil {
					h.logger.Error("Error sending message to %s: %v", n.username, err)
					h.remove(conn)
				}
			}

		case <-h.done:
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]string)
			h.mutex.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every connection.
func (h *HubService) Stop() {
	close(h.done)
}

func (h *HubService) Register(conn *websocket.Conn, username string) {
	select {
	case h.register <- client{conn: conn, username: username}:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Notify queues message for username's viewers without blocking the caller.
func (h *HubService) Notify(username string, message []byte) {
	select {
	case h.notify <- notification{username: username, message: message}:
	default:
		h.logger.Warning("Dropping status message for %s: queue full", username)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *HubService) connsOf(username string) []*websocket.Conn {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var conns []*websocket.Conn
	for conn, owner := range h.clients {
		if owner == username {
			conns = append(conns, conn)
		}
	}
	return conns
}

func (h *HubService) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}
