package realtime

import (
	"sync"
	"time"

	"golang.org/x/net/websocket"
	"golang.org/x/text/language"
)

// peer is one WebSocket connection of an authenticated user.
type peer struct {
	conn         *websocket.Conn
	userID       string
	locale       language.Tag
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu        sync.Mutex
	rooms     map[string]struct{}
	closeOnce sync.Once
}

func newPeer(conn *websocket.Conn, userID string, locale language.Tag, writeTimeout time.Duration) *peer {
	return &peer{
		conn:         conn,
		userID:       userID,
		locale:       locale,
		writeTimeout: writeTimeout,
		rooms:        make(map[string]struct{}),
	}
}

func (p *peer) write(f frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return err
	}
	return websocket.JSON.Send(p.conn, f)
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		_ = p.conn.Close()
	})
}

func (p *peer) addRoom(roomID string) {
	p.mu.Lock()
	p.rooms[roomID] = struct{}{}
	p.mu.Unlock()
}

func (p *peer) removeRoom(roomID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rooms[roomID]; !ok {
		return false
	}
	delete(p.rooms, roomID)
	return true
}

func (p *peer) inRoom(roomID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rooms[roomID]
	return ok
}

func (p *peer) roomIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.rooms))
	for id := range p.rooms {
		ids = append(ids, id)
	}
	return ids
}
