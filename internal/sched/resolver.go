// Package sched resolves where scheduled NPCs are at the current world
// time and gates shop rooms on their opening hours. Presence is computed
// lazily when a room is looked at; nothing walks schedules on a timer.
package sched

import (
	"sort"

	"github.com/saltmere/server/internal/clock"
	"github.com/saltmere/server/internal/data"
)

// Deferral records why an NPC is pinned in place instead of following its
// schedule.
type Deferral struct {
	Reason string // "combat", "transaction", "dialogue"
}

// Resolver answers "which scheduled NPCs are in this room right now".
// Game loop goroutine only.
type Resolver struct {
	clock     *clock.Clock
	schedules map[string][]data.ScheduleBlock
	roomIndex map[string]map[string]struct{} // room id -> candidate npc ids
	deferred  map[string]Deferral
}

// NewResolver indexes the schedule blocks of every NPC in the catalog.
func NewResolver(c *clock.Clock, npcs *data.NpcTable) *Resolver {
	r := &Resolver{
		clock:     c,
		schedules: make(map[string][]data.ScheduleBlock),
		roomIndex: make(map[string]map[string]struct{}),
		deferred:  make(map[string]Deferral),
	}
	for id, npc := range npcs.All() {
		if len(npc.Schedule) == 0 {
			continue
		}
		r.Add(id, npc.Schedule)
	}
	return r
}

// Add registers (or replaces) an NPC's schedule.
func (r *Resolver) Add(npcID string, blocks []data.ScheduleBlock) {
	r.schedules[npcID] = blocks
	for _, b := range blocks {
		if b.RoomID == "" {
			continue
		}
		set := r.roomIndex[b.RoomID]
		if set == nil {
			set = make(map[string]struct{})
			r.roomIndex[b.RoomID] = set
		}
		set[npcID] = struct{}{}
	}
}

// PresentNPCs returns the NPC ids scheduled to be in roomID at the current
// world time, sorted. busy, when non-nil, reports NPCs that cannot change
// rooms right now; such NPCs are deferred and stay wherever they are until
// ClearDeferral.
func (r *Resolver) PresentNPCs(roomID string, busy func(npcID string) bool) []string {
	var present []string
	for npcID := range r.roomIndex[roomID] {
		if _, isDeferred := r.deferred[npcID]; isDeferred {
			continue
		}
		if busy != nil && busy(npcID) {
			r.Defer(npcID, "busy")
			continue
		}
		for _, block := range r.schedules[npcID] {
			if block.RoomID != roomID {
				continue
			}
			in, err := r.clock.IsTimeInRange(block.Start, block.End)
			if err != nil {
				continue
			}
			if in {
				present = append(present, npcID)
				break // one place at a time
			}
		}
	}
	sort.Strings(present)
	return present
}

// Defer pins an NPC in place, suppressing schedule moves.
func (r *Resolver) Defer(npcID, reason string) {
	r.deferred[npcID] = Deferral{Reason: reason}
}

// ClearDeferral lets a deferred NPC resume its schedule.
func (r *Resolver) ClearDeferral(npcID string) {
	delete(r.deferred, npcID)
}

// Deferred returns the ids of every deferred NPC, sorted.
func (r *Resolver) Deferred() []string {
	ids := make([]string, 0, len(r.deferred))
	for id := range r.deferred {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsDeferred reports whether an NPC has a pending deferral.
func (r *Resolver) IsDeferred(npcID string) bool {
	_, ok := r.deferred[npcID]
	return ok
}

// DeferralReason returns the reason an NPC is deferred, or "".
func (r *Resolver) DeferralReason(npcID string) string {
	return r.deferred[npcID].Reason
}
