package world

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a player name for uniqueness checks: NFKC
// normalization, then lower-casing. Display names keep their given form.
func NormalizeName(name string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
}

// Registry tracks connected players and room presence.
//
// All methods run on the game loop goroutine only. No locks by design;
// session goroutines never touch the registry directly.
type Registry struct {
	byName    map[string]*Player // normalized name -> player
	bySession map[uint64]*Player
	byRoom    map[string]map[string]*Player // room id -> normalized name -> player
}

func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]*Player),
		bySession: make(map[uint64]*Player),
		byRoom:    make(map[string]map[string]*Player),
	}
}

// Add registers a player. Returns false when the normalized name is
// already connected.
func (r *Registry) Add(p *Player) bool {
	key := NormalizeName(p.Name)
	if _, taken := r.byName[key]; taken {
		return false
	}
	r.byName[key] = p
	r.bySession[p.SessionID] = p
	r.enterRoom(p)
	return true
}

// Remove unregisters a player on disconnect.
func (r *Registry) Remove(p *Player) {
	delete(r.byName, NormalizeName(p.Name))
	delete(r.bySession, p.SessionID)
	r.leaveRoom(p)
}

// ByName looks a player up by (unnormalized) name.
func (r *Registry) ByName(name string) *Player {
	return r.byName[NormalizeName(name)]
}

// BySession looks a player up by session id.
func (r *Registry) BySession(id uint64) *Player {
	return r.bySession[id]
}

// Move relocates a player to another room, updating presence maps.
func (r *Registry) Move(p *Player, roomID string) {
	r.leaveRoom(p)
	p.RoomID = roomID
	p.Dirty = true
	r.enterRoom(p)
}

// InRoom returns the players in a room sorted by name, so callers that
// need a deterministic pick can take the first.
func (r *Registry) InRoom(roomID string) []*Player {
	m := r.byRoom[roomID]
	out := make([]*Player, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns every connected player. Order is not defined.
func (r *Registry) All() []*Player {
	out := make([]*Player, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	return out
}

// Count returns the number of connected players.
func (r *Registry) Count() int { return len(r.byName) }

func (r *Registry) enterRoom(p *Player) {
	m := r.byRoom[p.RoomID]
	if m == nil {
		m = make(map[string]*Player)
		r.byRoom[p.RoomID] = m
	}
	m[NormalizeName(p.Name)] = p
}

func (r *Registry) leaveRoom(p *Player) {
	if m := r.byRoom[p.RoomID]; m != nil {
		delete(m, NormalizeName(p.Name))
		if len(m) == 0 {
			delete(r.byRoom, p.RoomID)
		}
	}
}
