package game

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/combat"
	"github.com/saltmere/server/internal/core/event"
	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/errs"
	"github.com/saltmere/server/internal/state"
	"github.com/saltmere/server/internal/weather"
	"github.com/saltmere/server/internal/world"
)

// cmdAttack starts or continues a fight against something in the room.
func (g *Game) cmdAttack(p *world.Player, targetName string) error {
	if targetName == "" {
		return errs.Invalidf("attack what?")
	}
	if other := g.findPlayerInRoom(p.RoomID, targetName); other != nil && other.Name != p.Name {
		return errs.Rejectedf("the harbor watch frowns on that")
	}

	st := g.combat.State(p.RoomID)

	// Already in the fight: just switch targets.
	if st != nil && st.Active && st.Combatants[p.Name] != nil {
		if c := g.findCombatant(st, targetName); c != nil {
			return g.combat.SetTarget(p.RoomID, p.Name, c.Name)
		}
	}

	name, ent, kind, err := g.resolveOpponent(p.RoomID, targetName)
	if err != nil {
		return err
	}

	if st != nil && st.Active {
		if st.Combatants[name] == nil {
			if err := g.combat.JoinCombat(p.RoomID, ent, kind, ""); err != nil {
				return err
			}
		}
		if st.Combatants[p.Name] == nil {
			if err := g.combat.JoinCombat(p.RoomID, g.playerEntity(p), combat.KindPlayer, name); err != nil {
				return err
			}
		} else if err := g.combat.SetTarget(p.RoomID, p.Name, name); err != nil {
			return err
		}
	} else {
		g.combat.StartCombat(p.RoomID, g.playerEntity(p), combat.KindPlayer, ent, kind)
	}

	g.sendTo(p, "You square up against the "+strings.ToLower(name)+".")
	g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" squares up against the "+strings.ToLower(name)+".")
	return nil
}

// cmdJoin enters an ongoing fight in the room, optionally picking a target.
func (g *Game) cmdJoin(p *world.Player, typed string) error {
	st := g.combat.State(p.RoomID)
	if st == nil || !st.Active {
		return errs.NotFoundf("there is no fight to join")
	}
	if st.Combatants[p.Name] != nil {
		return errs.Rejectedf("you are already in the fight")
	}
	target := ""
	if typed != "" {
		c := g.findCombatant(st, typed)
		if c == nil {
			return errs.NotFoundf("%s is not fighting here", typed)
		}
		target = c.Name
	}
	if err := g.combat.JoinCombat(p.RoomID, g.playerEntity(p), combat.KindPlayer, target); err != nil {
		return err
	}
	g.sendTo(p, "You wade into the fight.")
	g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" wades into the fight!")
	return nil
}

// cmdTarget switches the player's combat target without costing an action.
func (g *Game) cmdTarget(p *world.Player, targetName string) error {
	if targetName == "" {
		return errs.Invalidf("target whom?")
	}
	st := g.combat.State(p.RoomID)
	if st == nil || !st.Active {
		return errs.NotFoundf("no fight here")
	}
	c := g.findCombatant(st, targetName)
	if c == nil {
		return errs.NotFoundf("%s is not fighting here", targetName)
	}
	if err := g.combat.SetTarget(p.RoomID, p.Name, c.Name); err != nil {
		return err
	}
	g.sendTo(p, "You turn on "+c.Name+".")
	return nil
}

// cmdFlee rolls dodging to break away. Squalls make disengaging harder
// outdoors; a failed attempt burns the round's primary action.
func (g *Game) cmdFlee(p *world.Player) error {
	st := g.combat.State(p.RoomID)
	if st == nil || !st.Active || st.Combatants[p.Name] == nil {
		return errs.NotFoundf("you are not fighting anything")
	}

	mod := 0
	if room := g.catalog.Rooms.Get(p.RoomID); room != nil {
		mod = -g.weather.Modifier(room.Region, room.Exposure, weather.EffectDisengageFailure)
	}

	check := p.RollSkillCheck(g.rng, "dodging", mod)
	p.CheckSkillAdvancement(g.rng, "dodging", check.Degree.Passed())
	if !check.Degree.Passed() {
		if err := g.combat.UseMinor(p.RoomID, p.Name, combat.ActionMove); err != nil {
			// Minor slot already spent; the failed attempt still stands.
			g.log.Debug("flee without minor slot", zap.String("player", p.Name))
		}
		g.sendTo(p, "You look for an opening and find none.")
		g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" tries to break away and fails.")
		return nil
	}

	g.combat.LeaveCombat(p.RoomID, p.Name)
	g.sendTo(p, "You slip out of the fight.")
	g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" breaks away from the fight.")
	return nil
}

// resolveOpponent finds something attackable in the room: a runtime
// creature first, then a scheduled or static NPC fought on template stats.
func (g *Game) resolveOpponent(roomID, typed string) (string, combat.Entity, string, error) {
	ents, err := g.store.EntitiesInRoom(g.ctx, roomID)
	if err != nil {
		return "", nil, "", errs.Transientf("entities in %s: %v", roomID, err)
	}
	for _, ent := range ents {
		if ent.Type == state.TypeItem || ent.HPCurrent <= 0 {
			continue
		}
		tpl := g.catalog.Npcs.Get(ent.TemplateID)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		name := g.combatNameFor(roomID, ent.Instance)
		return name, g.creatureEntity(name, ent.Instance, tpl), kindFor(ent.Type), nil
	}

	for _, npcID := range g.presentNPCs(roomID) {
		tpl := g.catalog.Npcs.Get(npcID)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		name := g.uniqueCombatName(roomID, tpl.Name)
		return name, g.scheduledNpcEntity(name, tpl), combat.KindNpc, nil
	}
	return "", nil, "", errs.NotFoundf("there is no %s here", typed)
}

// findCombatant matches typed input against the fight's roster.
func (g *Game) findCombatant(st *combat.State, typed string) *combat.Combatant {
	for _, entry := range st.Order {
		if matchName(entry.Name, typed) {
			return st.Combatants[entry.Name]
		}
	}
	return nil
}

// combatNameFor gives a creature instance a stable, room-unique name.
// The first rat is "harbor rat", the second "harbor rat (2)".
func (g *Game) combatNameFor(roomID string, inst *state.Instance) string {
	tpl := g.catalog.Npcs.Get(inst.TemplateID)
	base := inst.TemplateID
	if tpl != nil {
		base = tpl.Name
	}
	st := g.combat.State(roomID)
	if st != nil {
		// Reuse the name already assigned to this instance.
		for _, c := range st.Combatants {
			if ne, ok := c.Entity.(*npcEntity); ok && ne.inst != nil && ne.inst.ID == inst.ID {
				return c.Name
			}
		}
	}
	return g.uniqueCombatName(roomID, base)
}

func (g *Game) uniqueCombatName(roomID, base string) string {
	st := g.combat.State(roomID)
	if st == nil || st.Combatants[base] == nil {
		return base
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s (%d)", base, n)
		if st.Combatants[name] == nil {
			return name
		}
	}
}

// onAttackResult narrates one resolved attack to the room and writes
// creature health through to the store.
func (g *Game) onAttackResult(roomID string, res *combat.AttackResult) {
	st := g.combat.State(roomID)
	if st != nil {
		if c := st.Combatants[res.Target]; c != nil {
			if ne, ok := c.Entity.(*npcEntity); ok && ne.inst != nil && !res.TargetDefeated {
				if err := g.store.UpdateInstance(g.ctx, ne.inst); err != nil {
					g.log.Warn("instance update failed",
						zap.String("instance", ne.inst.ID), zap.Error(err))
				}
			}
		}
	}

	if !res.Hit {
		g.broadcastRoom(roomID, fmt.Sprintf("%s swings at %s and misses.", res.Attacker, res.Target))
		return
	}

	verb := "hits"
	if res.Critical {
		verb = "tears into"
	} else if res.Glancing {
		verb = "grazes"
	}
	g.broadcastRoom(roomID, fmt.Sprintf("%s %s %s with %s for %d damage.",
		res.Attacker, verb, res.Target, res.WeaponLabel, res.Damage))

	for _, abs := range res.Mitigation.Pieces {
		if abs.Broke {
			g.broadcastRoom(roomID, fmt.Sprintf("%s's %s gives out!", res.Target, abs.Piece.Label()))
		}
	}
	if res.WeaponBroke {
		g.broadcastRoom(roomID, fmt.Sprintf("%s's %s breaks!", res.Attacker, res.WeaponLabel))
	}

	if target := g.registry.ByName(res.Target); target != nil {
		g.sendTo(target, fmt.Sprintf("You have %d/%d health.", target.Health, target.MaxHealth))
	}
}

// onDefeat runs the hand-off after a combatant drops: players respawn at
// the start room, creatures are deleted, looted, and worth experience.
func (g *Game) onDefeat(roomID string, defeated *combat.Combatant, killer string) {
	switch ent := defeated.Entity.(type) {
	case *playerEntity:
		g.defeatPlayer(roomID, ent.p, killer)
	case *npcEntity:
		g.defeatNpc(roomID, defeated.Name, ent, killer)
	}
}

func (g *Game) defeatPlayer(roomID string, p *world.Player, killer string) {
	g.broadcastRoom(roomID, p.Name+" collapses!")
	g.log.Info("player defeated",
		zap.String("player", p.Name), zap.String("room", roomID), zap.String("killer", killer))

	event.Emit(g.bus, event.EntityDefeated{
		RoomID:     roomID,
		PlayerName: p.Name,
		KillerName: killer,
	})

	p.Health = p.MaxHealth / 2
	if p.Health < 1 {
		p.Health = 1
	}
	p.Dirty = true
	g.sendTo(p, "Darkness, then the smell of tar and old beer. You wake at the Black Anchor.")
	g.enterRoom(p, world.StartRoom, "respawn")
}

func (g *Game) defeatNpc(roomID, name string, ent *npcEntity, killer string) {
	g.broadcastRoom(roomID, "The "+strings.ToLower(name)+" is slain!")

	instanceID := ""
	if ent.inst != nil {
		instanceID = ent.inst.ID
		if err := g.store.RemoveEntity(g.ctx, ent.inst.ID, true); err != nil {
			g.log.Warn("defeated instance removal failed",
				zap.String("instance", ent.inst.ID), zap.Error(err))
		}
		if ent.inst.SpawnGroupID != "" {
			if err := g.store.DecrementSpawnAlive(g.ctx, roomID, ent.inst.SpawnGroupID); err != nil {
				g.log.Warn("spawn decrement failed", zap.String("room", roomID), zap.Error(err))
			}
		}
	} else {
		// Catalog NPCs have no instance record; keep them out of the room
		// until the respawn window passes.
		if err := g.store.MarkNpcDefeated(g.ctx, roomID, ent.tpl.ID, g.cfg.Encounter.RespawnInterval); err != nil {
			g.log.Warn("defeat mark failed", zap.String("npc", ent.tpl.ID), zap.Error(err))
		}
	}

	g.dropLoot(roomID, ent.tpl)

	if kp := g.registry.ByName(killer); kp != nil {
		exp := expAward(ent.tpl)
		kp.AddExperience(exp)
		g.sendTo(kp, fmt.Sprintf("You gain %d experience.", exp))
	}

	event.Emit(g.bus, event.EntityDefeated{
		RoomID:     roomID,
		InstanceID: instanceID,
		TemplateID: ent.tpl.ID,
		KillerName: killer,
	})
}

// dropLoot rolls the template's loot table onto the room floor.
func (g *Game) dropLoot(roomID string, tpl *data.NpcTemplate) {
	for _, entry := range tpl.LootTable {
		if g.catalog.Items.Get(entry.Item) == nil {
			continue
		}
		if g.rng.Intn(100)+1 > entry.Chance {
			continue
		}
		inst := state.Instance{
			TemplateID: entry.Item,
			Type:       state.TypeItem,
			Quantity:   1,
		}
		id, err := g.store.CreateInstance(g.ctx, inst)
		if err != nil {
			g.log.Warn("loot create failed", zap.String("item", entry.Item), zap.Error(err))
			continue
		}
		if err := g.store.PlaceEntity(g.ctx, id, roomID); err != nil {
			g.log.Warn("loot place failed", zap.String("item", entry.Item), zap.Error(err))
			continue
		}
		if item := g.catalog.Items.Get(entry.Item); item != nil {
			g.broadcastRoom(roomID, "A "+strings.ToLower(item.Name)+" drops to the ground.")
		}
	}
}

// expAward values a kill: the template's exp_value, or a floor derived
// from health and tier when the template does not set one.
func expAward(tpl *data.NpcTemplate) int {
	tier := tpl.Tier
	if tier == "" {
		tier = data.TierForLevel(tpl.Level)
	}
	fallback := 25 + (tpl.MaxHealth/2)*data.TierMultiplier(tier)
	if tpl.ExpValue > fallback {
		return tpl.ExpValue
	}
	return fallback
}
