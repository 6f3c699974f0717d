package game

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/core/event"
	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/state"
	"github.com/saltmere/server/internal/world"
)

// enterRoom is the one path by which a player arrives in a room: login,
// movement, or respawn. It touches room activity, rolls weather and
// encounters, announces the arrival, and renders the room.
func (g *Game) enterRoom(p *world.Player, roomID, reason string) {
	room := g.catalog.Rooms.Get(roomID)
	if room == nil {
		g.log.Error("enter into unknown room", zap.String("room", roomID), zap.String("player", p.Name))
		roomID = world.StartRoom
		room = g.catalog.Rooms.Get(roomID)
		if room == nil {
			return
		}
	}

	g.registry.Move(p, roomID)
	p.Dirty = true

	if err := g.store.TouchRoomActive(g.ctx, roomID); err != nil {
		g.log.Warn("touch room failed", zap.String("room", roomID), zap.Error(err))
	}
	if _, err := g.store.MaybeResetRoom(g.ctx, roomID); err != nil {
		g.log.Warn("room reset check failed", zap.String("room", roomID), zap.Error(err))
	}

	g.weather.MaybeUpdate(room.Region)

	event.Emit(g.bus, event.PlayerEntered{RoomID: roomID, PlayerName: p.Name})

	g.sendRoom(p)

	if reason != "respawn" && room.Zone != "" {
		if _, err := g.enc.Roll(g.ctx, roomID, room.Zone); err != nil {
			g.log.Warn("encounter roll failed", zap.String("room", roomID), zap.Error(err))
		}
	}

	g.greetFrom(room, p)
	g.aggress(roomID)
}

// greetFrom lets one scripted NPC in the room greet the arrival.
func (g *Game) greetFrom(room *data.Room, p *world.Player) {
	for _, npcID := range g.presentNPCs(room.ID) {
		if !g.scripts.HasDialogue(npcID) {
			continue
		}
		greeting := g.scripts.Greeting(npcID, p.Name)
		if greeting == "" {
			continue
		}
		tpl := g.catalog.Npcs.Get(npcID)
		if tpl == nil {
			continue
		}
		g.sendTo(p, tpl.Name+" says: "+greeting)
		return
	}
}

// presentNPCs lists NPC ids in a room right now: the room's static
// placements plus whoever the schedule resolver puts here, minus anyone
// held by a deferral or slain and waiting on respawn.
func (g *Game) presentNPCs(roomID string) []string {
	room := g.catalog.Rooms.Get(roomID)
	if room == nil {
		return nil
	}
	down, err := g.store.DefeatedNpcs(g.ctx, roomID)
	if err != nil {
		g.log.Warn("defeated lookup failed", zap.String("room", roomID), zap.Error(err))
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range room.Npcs {
		if !seen[id] && !down[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range g.schedule.PresentNPCs(roomID, g.npcBusy) {
		if !seen[id] && !down[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// npcBusy reports whether a scheduled NPC is pinned by an active fight.
func (g *Game) npcBusy(npcID string) bool {
	tpl := g.catalog.Npcs.Get(npcID)
	if tpl == nil {
		return false
	}
	for roomID := range g.catalog.Rooms.All() {
		st := g.combat.State(roomID)
		if st != nil && st.Active && st.Combatants[tpl.Name] != nil {
			return true
		}
	}
	return false
}

// sendRoom renders the full room view to one player.
func (g *Game) sendRoom(p *world.Player) {
	room := g.catalog.Rooms.Get(p.RoomID)
	if room == nil {
		return
	}

	g.sendTo(p, room.Name)
	g.sendTo(p, room.Description)

	if overlay := g.weather.Overlay(room.Region, room.Exposure); overlay != "" {
		g.sendTo(p, overlay)
	}

	if room.ShopID != "" {
		g.sendTo(p, g.shopGate.Status(room.ShopID))
	}

	if exits := exitLine(room); exits != "" {
		g.sendTo(p, exits)
	}

	for _, npcID := range g.presentNPCs(room.ID) {
		if tpl := g.catalog.Npcs.Get(npcID); tpl != nil {
			g.sendTo(p, tpl.Name+" is here.")
		}
	}

	ents, err := g.store.EntitiesInRoom(g.ctx, room.ID)
	if err != nil {
		g.log.Warn("entities in room failed", zap.String("room", room.ID), zap.Error(err))
	}
	for _, ent := range ents {
		switch ent.Type {
		case state.TypeItem:
			if tpl := g.catalog.Items.Get(ent.TemplateID); tpl != nil {
				g.sendTo(p, "A "+strings.ToLower(tpl.Name)+" lies here.")
			}
		default:
			if tpl := g.catalog.Npcs.Get(ent.TemplateID); tpl != nil && ent.HPCurrent > 0 {
				g.sendTo(p, "A "+strings.ToLower(tpl.Name)+" is here, watching you.")
			}
		}
	}

	for _, other := range g.registry.InRoom(room.ID) {
		if other.Name != p.Name {
			g.sendTo(p, other.Name+" is here.")
		}
	}
}

func exitLine(room *data.Room) string {
	if len(room.Exits) == 0 {
		return "There is no way out."
	}
	dirs := make([]string, 0, len(room.Exits))
	for dir := range room.Exits {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return "Exits: " + strings.Join(dirs, ", ")
}

// aggress makes hostile creatures in a room pick a fight with the
// players standing there. First player by name takes the heat.
func (g *Game) aggress(roomID string) {
	players := g.registry.InRoom(roomID)
	if len(players) == 0 {
		return
	}
	ents, err := g.store.EntitiesInRoom(g.ctx, roomID)
	if err != nil {
		g.log.Warn("aggress lookup failed", zap.String("room", roomID), zap.Error(err))
		return
	}

	st := g.combat.State(roomID)
	for _, ent := range ents {
		if ent.Type != state.TypeCreature || ent.HPCurrent <= 0 {
			continue
		}
		tpl := g.catalog.Npcs.Get(ent.TemplateID)
		if tpl == nil || !tpl.Hostile {
			continue
		}
		name := g.combatNameFor(roomID, ent.Instance)
		if st != nil && st.Combatants[name] != nil {
			continue
		}

		target := players[0]
		creature := g.creatureEntity(name, ent.Instance, tpl)
		if st == nil || !st.Active {
			st = g.combat.StartCombat(roomID, creature, kindFor(ent.Type), g.playerEntity(target), "player")
			g.broadcastRoom(roomID, "The "+strings.ToLower(tpl.Name)+" lunges at "+target.Name+"!")
			continue
		}
		if err := g.combat.JoinCombat(roomID, creature, kindFor(ent.Type), target.Name); err == nil {
			g.broadcastRoom(roomID, "The "+strings.ToLower(tpl.Name)+" joins the fray!")
		}
	}
}

func kindFor(entType string) string {
	if entType == state.TypeNpc {
		return "npc"
	}
	return "creature"
}
