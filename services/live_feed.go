package services

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// LiveReading is one collector observation pushed to the dashboard.
type LiveReading struct {
	RoomID     int       `json:"room_id"`
	Utility    string    `json:"utility"`
	SourceType string    `json:"source_type"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// LiveFeed fans collector readings out to connected dashboard clients.
type LiveFeed struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

func NewLiveFeed() *LiveFeed {
	return &LiveFeed{
		conns: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin is already handled by the CORS layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the request and keeps the connection registered until
// the client goes away.
func (lf *LiveFeed) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := lf.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: Live feed upgrade failed: %v", err)
		return
	}

	lf.mu.Lock()
	lf.conns[conn] = true
	count := len(lf.conns)
	lf.mu.Unlock()
	log.Printf("Live feed client connected (%d total)", count)

	// Reader loop only to detect disconnects; clients never send data
	go func() {
		defer lf.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (lf *LiveFeed) remove(conn *websocket.Conn) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.conns[conn] {
		delete(lf.conns, conn)
		conn.Close()
		log.Printf("Live feed client disconnected (%d total)", len(lf.conns))
	}
}

// Broadcast sends a reading to every connected client, dropping clients
// whose writes fail.
func (lf *LiveFeed) Broadcast(reading LiveReading) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	for conn := range lf.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(reading); err != nil {
			delete(lf.conns, conn)
			conn.Close()
		}
	}
}
