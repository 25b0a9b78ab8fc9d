// internal/hub/hub.go
package hub

import (
	"crypto/subtle"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/keldurben/internal/game"
	"github.com/sirupsen/logrus"
)

// membership ties a connection to the player it seated in a room.
type membership struct {
	room   string
	player uuid.UUID
}

// Config carries the hub's collaborators. Zero values are usable.
type Config struct {
	Logger      *logrus.Logger
	AdminSecret string
	Sink        RoundSink
	// NewRand seeds each lazily created room. Defaults to a time-seeded source.
	NewRand func() *rand.Rand
}

// Hub owns every room and every connection. All state sits behind one mutex so the
// connection -> player -> room tables are always updated together.
type Hub struct {
	mu sync.Mutex

	rooms   map[string]*game.Room
	members map[uuid.UUID]membership
	conns   map[uuid.UUID]*Connection

	logger      *logrus.Logger
	adminSecret string
	sink        RoundSink
	newRand     func() *rand.Rand
}

// NewHub returns a hub with the default room already open.
func NewHub(cfg Config) *Hub {
	h := &Hub{
		rooms:       make(map[string]*game.Room),
		members:     make(map[uuid.UUID]membership),
		conns:       make(map[uuid.UUID]*Connection),
		logger:      cfg.Logger,
		adminSecret: cfg.AdminSecret,
		sink:        cfg.Sink,
		newRand:     cfg.NewRand,
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	if h.sink == nil {
		h.sink = nopSink{}
	}
	if h.newRand == nil {
		h.newRand = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	h.roomUnsafe(game.DefaultRoomName)
	return h
}

// Register makes conn reachable for broadcasts. It does not seat a player; that takes a join.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
}

// Disconnect forgets the connection, closes its queue and removes its player, if any.
func (h *Hub) Disconnect(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.conns[connID]; ok {
		delete(h.conns, connID)
		conn.close()
	}

	m, ok := h.members[connID]
	if !ok {
		return
	}
	delete(h.members, connID)
	h.leaveUnsafe(m)
}

// Dispatch applies one decoded command for the given connection and broadcasts the result.
func (h *Hub) Dispatch(connID uuid.UUID, cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch c := cmd.(type) {
	case JoinCommand:
		h.joinUnsafe(connID, c)
		return
	case AdminResetCommand:
		if h.CheckAdminSecret(c.Secret) {
			h.resetUnsafe(c.Room)
		}
		return
	case AdminKickCommand:
		if h.CheckAdminSecret(c.Secret) {
			h.kickUnsafe(c.Room, c.Player)
		}
		return
	}

	m, ok := h.members[connID]
	if !ok {
		return
	}
	room, ok := h.rooms[m.room]
	if !ok {
		return
	}

	var result *game.RoundResult
	switch c := cmd.(type) {
	case StartGameCommand:
		room.Start()
	case LockCue1Command:
		room.LockCue1(c.Cue)
	case LockCue2Command:
		room.LockCue2(c.Cue2)
	case GuessCommand:
		result = room.Guess(m.player, c.Cell)
	case NextRoundCommand:
		room.NextRound()
	case ChooseTargetCommand:
		if !room.ChooseTarget(m.player, c.Index) {
			h.logger.WithFields(logrus.Fields{
				"room":   m.room,
				"player": m.player,
				"index":  c.Index,
			}).Debug("choose_target rejected")
		}
	default:
		return
	}

	h.broadcastUnsafe(room)
	h.recordUnsafe(result)
}

// SendError queues an error message for a single connection.
func (h *Hub) SendError(connID uuid.UUID, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	h.sendUnsafe(conn, ErrorMessage{Message: message})
}

// CheckAdminSecret compares secret against the configured admin secret.
// An empty configured secret disables admin operations.
func (h *Hub) CheckAdminSecret(secret string) bool {
	if h.adminSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(h.adminSecret)) == 1
}

// ResetRoom puts the named room (default room when empty) back to a fresh lobby.
// It reports false if no such room exists.
func (h *Hub) ResetRoom(room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resetUnsafe(room)
}

// KickPlayer removes one player from the named room (default room when empty).
func (h *Hub) KickPlayer(room string, player uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kickUnsafe(room, player)
}

// RoomStats is the debug view of one room.
type RoomStats struct {
	Round   int           `json:"round"`
	Phase   game.Phase    `json:"phase"`
	Players []game.Player `json:"players"`
	Members int           `json:"members"`
}

// Stats is the debug view of the whole hub.
type Stats struct {
	Rooms map[string]RoomStats `json:"rooms"`
	Conns int                  `json:"conns"`
}

// Stats copies out a summary of every room and the number of live connections.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := Stats{Rooms: make(map[string]RoomStats, len(h.rooms)), Conns: len(h.conns)}
	for name, r := range h.rooms {
		rs := RoomStats{Round: r.Round, Phase: r.Phase, Players: make([]game.Player, 0, len(r.Players))}
		for _, p := range r.Players {
			rs.Players = append(rs.Players, *p)
		}
		out.Rooms[name] = rs
	}
	for _, m := range h.members {
		rs := out.Rooms[m.room]
		rs.Members++
		out.Rooms[m.room] = rs
	}
	return out
}

// Snapshot returns the current view of a room, as members would receive it.
func (h *Hub) Snapshot(room string) (game.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomName(room)]
	if !ok {
		return game.Snapshot{}, false
	}
	return r.Snapshot(), true
}

func roomName(room string) string {
	if room == "" {
		return game.DefaultRoomName
	}
	return room
}

// roomUnsafe finds or creates a room. Caller holds h.mu.
func (h *Hub) roomUnsafe(name string) *game.Room {
	name = roomName(name)
	r, ok := h.rooms[name]
	if !ok {
		r = game.NewRoom(name, h.newRand())
		h.rooms[name] = r
		h.logger.WithField("room", name).Debug("room created")
	}
	return r
}

func (h *Hub) joinUnsafe(connID uuid.UUID, c JoinCommand) {
	if old, ok := h.members[connID]; ok {
		delete(h.members, connID)
		h.leaveUnsafe(old)
	}

	room := h.roomUnsafe(c.Room)
	p := room.AddPlayer(c.Name)
	h.members[connID] = membership{room: room.Name, player: p.ID}

	h.logger.WithFields(logrus.Fields{
		"conn":          connID,
		"name":          c.Name,
		"room":          room.Name,
		"player_id":     p.ID,
		"total_players": len(room.Players),
	}).Info("player joined")

	if conn, ok := h.conns[connID]; ok {
		h.sendUnsafe(conn, WelcomeMessage{ID: p.ID, Room: room.Name})
	}
	h.broadcastUnsafe(room)
}

// leaveUnsafe removes a seated player and rebroadcasts. The membership must already be deleted.
func (h *Hub) leaveUnsafe(m membership) {
	room, ok := h.rooms[m.room]
	if !ok {
		return
	}
	removed, result := room.RemovePlayer(m.player)
	if !removed {
		return
	}
	h.logger.WithFields(logrus.Fields{
		"room":          m.room,
		"player_id":     m.player,
		"total_players": len(room.Players),
	}).Info("player left")
	h.broadcastUnsafe(room)
	h.recordUnsafe(result)
}

func (h *Hub) resetUnsafe(name string) bool {
	room, ok := h.rooms[roomName(name)]
	if !ok {
		return false
	}
	room.Reset()
	// the old players are gone, so their sockets get one last snapshot and must join again
	seated := h.connsInRoomUnsafe(room.Name)
	for _, id := range seated {
		delete(h.members, id)
	}
	h.logger.WithField("room", room.Name).Warn("room reset by admin")
	h.broadcastMembersUnsafe(room, seated)
	return true
}

func (h *Hub) kickUnsafe(name string, player uuid.UUID) bool {
	room, ok := h.rooms[roomName(name)]
	if !ok {
		return false
	}
	removed, result := room.RemovePlayer(player)
	if !removed {
		return false
	}
	// the kicked socket stays open, unseated, and sees the room without its player
	targets := h.connsInRoomUnsafe(room.Name)
	for _, id := range targets {
		if h.members[id].player == player {
			delete(h.members, id)
		}
	}
	h.logger.WithFields(logrus.Fields{
		"room":      room.Name,
		"player_id": player,
	}).Warn("player kicked by admin")
	h.broadcastMembersUnsafe(room, targets)
	h.recordUnsafe(result)
	return true
}

func (h *Hub) connsInRoomUnsafe(room string) []uuid.UUID {
	var ids []uuid.UUID
	for connID, m := range h.members {
		if m.room == room {
			ids = append(ids, connID)
		}
	}
	return ids
}

// broadcastUnsafe sends the room snapshot to every connection seated in it.
func (h *Hub) broadcastUnsafe(room *game.Room) {
	h.broadcastMembersUnsafe(room, h.connsInRoomUnsafe(room.Name))
}

func (h *Hub) broadcastMembersUnsafe(room *game.Room, connIDs []uuid.UUID) {
	data, err := Encode(StateMessage{State: room.Snapshot()})
	if err != nil {
		h.logger.WithError(err).WithField("room", room.Name).Error("failed to encode state")
		return
	}
	h.logger.WithFields(logrus.Fields{
		"room":    room.Name,
		"players": len(room.Players),
		"phase":   room.Phase,
		"round":   room.Round,
		"targets": len(connIDs),
	}).Debug("broadcast state")

	for _, id := range connIDs {
		if conn, ok := h.conns[id]; ok {
			h.pushUnsafe(conn, data)
		}
	}
}

func (h *Hub) sendUnsafe(conn *Connection, msg ServerMessage) {
	data, err := Encode(msg)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode message")
		return
	}
	h.pushUnsafe(conn, data)
}

// pushUnsafe enqueues without blocking. A client whose queue is full is cut loose;
// its reader then fails and the normal disconnect path cleans up.
func (h *Hub) pushUnsafe(conn *Connection, data []byte) {
	if conn.push(data) || conn.closed {
		return
	}
	if !conn.slow {
		conn.slow = true
		h.logger.WithFields(logrus.Fields{
			"conn":   conn.ID,
			"userID": conn.UserID,
		}).Warn("outbound queue full, dropping slow connection")
	}
	conn.Cancel()
}

func (h *Hub) recordUnsafe(result *game.RoundResult) {
	if result == nil {
		return
	}
	h.logger.WithFields(logrus.Fields{
		"room":   result.Room,
		"round":  result.Round,
		"target": result.Target,
	}).Info("round revealed")
	h.sink.RecordRound(*result)
}
