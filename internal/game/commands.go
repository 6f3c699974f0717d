package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/clock"
	"github.com/saltmere/server/internal/errs"
	"github.com/saltmere/server/internal/net"
	"github.com/saltmere/server/internal/world"
)

// directionAliases folds short forms onto the exit keys used in room data.
var directionAliases = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west",
	"ne": "northeast", "nw": "northwest", "se": "southeast", "sw": "southwest",
	"u": "up", "d": "down",
	"north": "north", "south": "south", "east": "east", "west": "west",
	"northeast": "northeast", "northwest": "northwest",
	"southeast": "southeast", "southwest": "southwest",
	"up": "up", "down": "down", "out": "out", "in": "in",
}

// handleCommand parses and runs one command line from a playing session.
func (g *Game) handleCommand(sess *net.Session, line string) {
	p := g.registry.BySession(sess.ID)
	if p == nil {
		return
	}

	if lim := g.limiters[sess.ID]; lim != nil && !lim.Allow(time.Now()) {
		sess.Send("You are doing that too fast.")
		return
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	if dir, ok := directionAliases[verb]; ok {
		g.report(p, g.cmdMove(p, dir))
		return
	}

	var err error
	switch verb {
	case "look", "l", "inspect", "examine":
		err = g.cmdLook(p, args)
	case "go", "move":
		if len(args) == 0 {
			err = errs.Invalidf("go where?")
		} else {
			// Exits are not limited to compass points ("out", "in").
			dir := strings.ToLower(args[0])
			if full, ok := directionAliases[dir]; ok {
				dir = full
			}
			err = g.cmdMove(p, dir)
		}
	case "attack", "kill", "k":
		err = g.cmdAttack(p, strings.Join(args, " "))
	case "target":
		err = g.cmdTarget(p, strings.Join(args, " "))
	case "join":
		if len(args) > 0 && strings.ToLower(args[0]) == "combat" {
			args = args[1:]
		}
		err = g.cmdJoin(p, strings.Join(args, " "))
	case "flee", "disengage":
		err = g.cmdFlee(p)
	case "talk":
		err = g.cmdTalk(p, args)
	case "list", "shop":
		err = g.cmdShopList(p)
	case "repair":
		err = g.cmdRepair(p, strings.Join(args, " "))
	case "buy":
		err = g.cmdBuy(p, strings.Join(args, " "))
	case "sell":
		err = g.cmdSell(p, strings.Join(args, " "))
	case "get", "take":
		err = g.cmdGet(p, strings.Join(args, " "))
	case "drop":
		err = g.cmdDrop(p, strings.Join(args, " "))
	case "equip", "wield", "wear":
		err = g.cmdEquip(p, strings.Join(args, " "))
	case "unequip", "remove":
		err = g.cmdUnequip(p, strings.Join(args, " "))
	case "inventory", "inv", "i":
		g.cmdInventory(p)
	case "stats", "score":
		g.cmdStats(p)
	case "time":
		g.sendTo(p, g.clock.TimeString(p.Admin && len(args) > 0 && args[0] == "exact"))
	case "weather":
		g.cmdWeather(p)
	case "say":
		err = g.cmdSay(p, strings.Join(args, " "))
	case "who":
		g.cmdWho(p)
	case "help":
		g.cmdHelp(p)
	case "skills":
		g.cmdSkills(p)
	case "maneuvers":
		g.sendTo(p, "You have not learned any maneuvers.")
	case "use":
		err = errs.Rejectedf("you have not learned any maneuvers")
	case "settime":
		err = g.cmdSetTime(p, args)
	case "goto":
		err = g.cmdGoto(p, args)
	case "quit":
		sess.Send("The tide will keep your place. Farewell.")
		sess.FlushOutput()
		g.handleDisconnect(sess)
	default:
		err = errs.Invalidf("unknown command %q, try help", verb)
	}
	g.report(p, err)
}

// report renders a command error to the player. Transient failures get a
// generic line; the detail goes to the log only.
func (g *Game) report(p *world.Player, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errs.ErrTransient) {
		g.log.Warn("command failed", zap.String("player", p.Name), zap.Error(err))
		g.sendTo(p, "Something is wrong with the world. Try again shortly.")
		return
	}
	g.sendTo(p, upperFirst(errs.Message(err))+".")
}

// cmdMove walks the player through an exit.
func (g *Game) cmdMove(p *world.Player, dir string) error {
	if st := g.combat.State(p.RoomID); st != nil && st.Active && st.Combatants[p.Name] != nil {
		return errs.Rejectedf("you are in a fight, flee first")
	}
	room := g.catalog.Rooms.Get(p.RoomID)
	if room == nil {
		return errs.Transientf("room %s missing", p.RoomID)
	}
	dest, ok := room.Exits[dir]
	if !ok {
		return errs.Rejectedf("you cannot go %s", dir)
	}
	if destRoom := g.catalog.Rooms.Get(dest); destRoom != nil && destRoom.ShopID != "" &&
		!g.shopGate.IsOpen(destRoom.ShopID) {
		return errs.Rejectedf("the door of %s is barred. %s",
			destRoom.Name, g.shopGate.Status(destRoom.ShopID))
	}
	g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" leaves "+dir+".")
	g.enterRoom(p, dest, "move")
	return nil
}

// cmdLook renders the room, or one thing in it.
func (g *Game) cmdLook(p *world.Player, args []string) error {
	if len(args) == 0 {
		g.sendRoom(p)
		return nil
	}
	name := strings.ToLower(strings.Join(args, " "))

	for _, npcID := range g.presentNPCs(p.RoomID) {
		tpl := g.catalog.Npcs.Get(npcID)
		if tpl != nil && matchName(tpl.Name, name) {
			g.sendTo(p, tpl.Description)
			return nil
		}
	}
	ents, err := g.store.EntitiesInRoom(g.ctx, p.RoomID)
	if err != nil {
		return errs.Transientf("entities in %s: %v", p.RoomID, err)
	}
	for _, ent := range ents {
		tpl := g.catalog.Npcs.Get(ent.TemplateID)
		if tpl != nil && matchName(tpl.Name, name) {
			g.sendTo(p, tpl.Description)
			return nil
		}
		item := g.catalog.Items.Get(ent.TemplateID)
		if item != nil && matchName(item.Name, name) {
			g.sendTo(p, item.Description)
			return nil
		}
	}
	for _, owned := range p.Inventory {
		tpl := g.catalog.Items.Get(owned.ItemID)
		if tpl != nil && matchName(tpl.Name, name) {
			g.sendTo(p, tpl.Description)
			return nil
		}
	}
	if other := g.findPlayerInRoom(p.RoomID, name); other != nil && other.Name != p.Name {
		g.sendTo(p, other.Name+" stands here, weathered by the road.")
		return nil
	}
	return errs.NotFoundf("you see no %s here", name)
}

// cmdTalk speaks to an NPC, optionally about a keyword. Scripted dialogue
// wins; template keywords are the fallback.
func (g *Game) cmdTalk(p *world.Player, args []string) error {
	if len(args) == 0 {
		return errs.Invalidf("talk to whom?")
	}
	npcName := strings.ToLower(args[0])
	keyword := ""
	if len(args) > 1 {
		keyword = strings.ToLower(strings.Join(args[1:], " "))
	}

	for _, npcID := range g.presentNPCs(p.RoomID) {
		tpl := g.catalog.Npcs.Get(npcID)
		if tpl == nil || !matchName(tpl.Name, npcName) {
			continue
		}
		if g.scripts.HasDialogue(npcID) {
			var reply string
			if keyword == "" {
				reply = g.scripts.Greeting(npcID, p.Name)
			} else {
				reply = g.scripts.Talk(npcID, p.Name, keyword)
			}
			if reply == "" && keyword != "" {
				reply = shrugLine(tpl.Name)
			}
			if reply == "" {
				reply = tpl.Name + " nods at you."
			}
			g.sendTo(p, tpl.Name+" says: "+reply)
			return nil
		}
		if keyword == "" {
			if len(tpl.Keywords) == 0 {
				g.sendTo(p, tpl.Name+" has nothing to say.")
				return nil
			}
			keys := make([]string, 0, len(tpl.Keywords))
			for k := range tpl.Keywords {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			g.sendTo(p, tpl.Name+" could speak of: "+strings.Join(keys, ", "))
			return nil
		}
		if reply, ok := tpl.Keywords[keyword]; ok {
			g.sendTo(p, tpl.Name+" says: "+reply)
		} else {
			g.sendTo(p, tpl.Name+" says: "+shrugLine(tpl.Name))
		}
		return nil
	}
	return errs.NotFoundf("there is no %s here to talk to", npcName)
}

func shrugLine(string) string {
	return "I know nothing of that."
}

// cmdSay broadcasts speech to the room.
func (g *Game) cmdSay(p *world.Player, text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.Invalidf("say what?")
	}
	g.sendTo(p, `You say: `+text)
	g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+` says: `+text)
	return nil
}

func (g *Game) cmdWho(p *world.Player) {
	all := g.registry.All()
	names := make([]string, 0, len(all))
	for _, other := range all {
		names = append(names, other.Name)
	}
	sort.Strings(names)
	g.sendTo(p, fmt.Sprintf("%d adrift in %s: %s",
		len(names), g.cfg.Server.Name, strings.Join(names, ", ")))
}

func (g *Game) cmdWeather(p *world.Player) {
	room := g.catalog.Rooms.Get(p.RoomID)
	if room == nil {
		return
	}
	overlay := g.weather.Overlay(room.Region, room.Exposure)
	if overlay == "" {
		g.sendTo(p, "Walls and a roof. The weather is somebody else's problem.")
		return
	}
	g.sendTo(p, overlay)
}

func (g *Game) cmdStats(p *world.Player) {
	g.sendTo(p, fmt.Sprintf("%s  level %d  exp %d  gold %d", p.Name, p.Level, p.Experience, p.Gold))
	g.sendTo(p, fmt.Sprintf("Health %d/%d  Mana %d/%d  Stamina %d/%d",
		p.Health, p.MaxHealth, p.Mana, p.MaxMana, p.Stamina, p.MaxStamina))
	attrs := make([]string, 0, len(p.Attributes))
	for name, v := range p.Attributes {
		attrs = append(attrs, fmt.Sprintf("%s %d", name, v))
	}
	sort.Strings(attrs)
	g.sendTo(p, "Attributes: "+strings.Join(attrs, "  "))
	skills := make([]string, 0, len(p.Skills))
	for name, v := range p.Skills {
		if v > 1 {
			skills = append(skills, fmt.Sprintf("%s %d", name, v))
		}
	}
	if len(skills) > 0 {
		sort.Strings(skills)
		g.sendTo(p, "Skills: "+strings.Join(skills, "  "))
	}
}

func (g *Game) cmdHelp(p *world.Player) {
	g.sendTo(p, "Commands: look, north/south/east/west, attack <target>, join combat, target <name>,")
	g.sendTo(p, "  flee, talk <npc> [keyword], list, buy <item>, sell <item>, repair <item>, get, drop,")
	g.sendTo(p, "  equip <item>, unequip <slot>, inventory, stats, skills, time, weather, say, who, quit")
}

func (g *Game) cmdSkills(p *world.Player) {
	var lines []string
	for name, v := range p.Skills {
		lines = append(lines, fmt.Sprintf("  %-16s %d", name, v))
	}
	sort.Strings(lines)
	g.sendTo(p, "Your skills:")
	for _, l := range lines {
		g.sendTo(p, l)
	}
}

// cmdGoto is the admin teleport, "goto <room_id>".
func (g *Game) cmdGoto(p *world.Player, args []string) error {
	if !p.Admin {
		return errs.Rejectedf("you do not have that authority")
	}
	if len(args) != 1 {
		return errs.Invalidf("goto <room_id>")
	}
	roomID := args[0]
	if g.catalog.Rooms.Get(roomID) == nil {
		return errs.NotFoundf("no room %s", roomID)
	}
	g.combat.LeaveCombat(p.RoomID, p.Name)
	g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" vanishes in a swirl of salt air.")
	g.enterRoom(p, roomID, "admin")
	return nil
}

// cmdSetTime is the admin clock override, "settime HH:MM".
func (g *Game) cmdSetTime(p *world.Player, args []string) error {
	if !p.Admin {
		return errs.Rejectedf("you do not have that authority")
	}
	if len(args) != 1 {
		return errs.Invalidf("settime HH:MM")
	}
	minutes, err := clock.ParseClockTime(args[0])
	if err != nil {
		return errs.Invalidf("settime HH:MM: %v", err)
	}
	day := g.clock.DayNumber()
	if err := g.clock.SetWorldSeconds(day*86400 + int64(minutes)*60); err != nil {
		return errs.Invalidf("cannot set time: %v", err)
	}
	g.log.Info("world time set", zap.String("admin", p.Name), zap.String("time", args[0]))
	g.sendTo(p, "The bells ring out of turn. "+g.clock.TimeString(true))
	return nil
}

func (g *Game) findPlayerInRoom(roomID, name string) *world.Player {
	for _, other := range g.registry.InRoom(roomID) {
		if matchName(other.Name, name) {
			return other
		}
	}
	return nil
}

// matchName reports whether a typed name selects a display name: a full
// case-insensitive match or a prefix of any word.
func matchName(display, typed string) bool {
	display = strings.ToLower(display)
	typed = strings.ToLower(typed)
	if display == typed {
		return true
	}
	for _, word := range strings.Fields(display) {
		if strings.HasPrefix(word, typed) {
			return true
		}
	}
	return strings.HasPrefix(display, typed)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
