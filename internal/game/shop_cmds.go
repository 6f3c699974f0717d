package game

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/errs"
	"github.com/saltmere/server/internal/state"
	"github.com/saltmere/server/internal/world"
)

// shopHere returns the room's shop if it is open for business right now:
// inside hours, not a closed or festival day, keeper on the floor.
func (g *Game) shopHere(p *world.Player) (*data.Shop, error) {
	room := g.catalog.Rooms.Get(p.RoomID)
	if room == nil || room.ShopID == "" {
		return nil, errs.NotFoundf("there is no shop here")
	}
	shop := g.catalog.Shops.Get(room.ShopID)
	if shop == nil {
		return nil, errs.NotFoundf("there is no shop here")
	}
	if !g.shopGate.IsOpen(shop.ID) {
		return nil, errs.Rejectedf("%s", g.shopGate.Status(shop.ID))
	}
	if shop.Keeper != "" && !g.npcPresent(p.RoomID, shop.Keeper) {
		return nil, errs.Rejectedf("the counter is unattended")
	}
	return shop, nil
}

func (g *Game) npcPresent(roomID, npcID string) bool {
	for _, id := range g.presentNPCs(roomID) {
		if id == npcID {
			return true
		}
	}
	return false
}

// cmdShopList prints the shop's stock with live prices and counts.
func (g *Game) cmdShopList(p *world.Player) error {
	shop, err := g.shopHere(p)
	if err != nil {
		return err
	}
	g.sendTo(p, shop.Name+" offers:")
	for _, line := range shop.Inventory {
		tpl := g.catalog.Items.Get(line.Item)
		if tpl == nil {
			continue
		}
		price := shopPrice(line, tpl)
		left := g.stockLeft(shop, line)
		switch {
		case line.Stock == 0:
			g.sendTo(p, fmt.Sprintf("  %-24s %d gold", tpl.Name, price))
		case left <= 0:
			g.sendTo(p, fmt.Sprintf("  %-24s sold out", tpl.Name))
		default:
			g.sendTo(p, fmt.Sprintf("  %-24s %d gold (%d left)", tpl.Name, price, left))
		}
	}
	return nil
}

// cmdBuy purchases one item from the room's shop.
func (g *Game) cmdBuy(p *world.Player, typed string) error {
	if typed == "" {
		return errs.Invalidf("buy what?")
	}
	shop, err := g.shopHere(p)
	if err != nil {
		return err
	}
	for _, line := range shop.Inventory {
		tpl := g.catalog.Items.Get(line.Item)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		if line.Stock > 0 && g.stockLeft(shop, line) <= 0 {
			return errs.Rejectedf("the %s is sold out", strings.ToLower(tpl.Name))
		}
		price := shopPrice(line, tpl)
		if p.Gold < price {
			return errs.Rejectedf("you cannot afford the %s (%d gold)", strings.ToLower(tpl.Name), price)
		}
		p.Gold -= price
		p.Inventory = append(p.Inventory, world.NewOwnedItem(tpl))
		p.Dirty = true
		g.takeStock(shop, line)
		g.sendTo(p, fmt.Sprintf("You buy a %s for %d gold.", strings.ToLower(tpl.Name), price))
		g.log.Debug("purchase",
			zap.String("player", p.Name), zap.String("shop", shop.ID),
			zap.String("item", tpl.ID), zap.Int("price", price))
		return nil
	}
	return errs.NotFoundf("the shop does not sell %s", typed)
}

// cmdSell sells one carried item back at the shop's buyback rate.
func (g *Game) cmdSell(p *world.Player, typed string) error {
	if typed == "" {
		return errs.Invalidf("sell what?")
	}
	shop, err := g.shopHere(p)
	if err != nil {
		return err
	}
	for _, owned := range p.Inventory {
		tpl := g.catalog.Items.Get(owned.ItemID)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		rate := shop.BuybackRate
		if rate <= 0 {
			rate = 0.5
		}
		price := int(math.Round(float64(tpl.Value) * rate))
		p.RemoveInventory(owned.UID)
		p.Gold += price
		p.Dirty = true
		g.sendTo(p, fmt.Sprintf("You sell the %s for %d gold.", strings.ToLower(tpl.Name), price))
		return nil
	}
	return errs.NotFoundf("you are not carrying a %s", typed)
}

// cmdRepair pays the keeper to restore a carried or equipped item to full
// durability. Quarter of the item's value, minimum one gold.
func (g *Game) cmdRepair(p *world.Player, typed string) error {
	if typed == "" {
		return errs.Invalidf("repair what?")
	}
	shop, err := g.shopHere(p)
	if err != nil {
		return err
	}
	owned, tpl := g.findOwned(p, typed)
	if owned == nil {
		return errs.NotFoundf("you are not carrying a %s", typed)
	}
	if owned.Durability >= tpl.Durability && owned.ArmorHP >= tpl.ArmorHP {
		return errs.Rejectedf("the %s needs no work", strings.ToLower(tpl.Name))
	}
	price := tpl.Value / 4
	if price < 1 {
		price = 1
	}
	if p.Gold < price {
		return errs.Rejectedf("you cannot afford the repair (%d gold)", price)
	}
	p.Gold -= price
	owned.Durability = tpl.Durability
	owned.ArmorHP = tpl.ArmorHP
	p.Dirty = true
	g.sendTo(p, fmt.Sprintf("The keeper mends the %s for %d gold.", strings.ToLower(tpl.Name), price))
	g.log.Debug("repair",
		zap.String("player", p.Name), zap.String("shop", shop.ID), zap.String("item", tpl.ID))
	return nil
}

// findOwned matches typed input against carried then equipped items.
func (g *Game) findOwned(p *world.Player, typed string) (*world.OwnedItem, *data.ItemTemplate) {
	for _, owned := range p.Inventory {
		if tpl := g.catalog.Items.Get(owned.ItemID); tpl != nil && matchName(tpl.Name, typed) {
			return owned, tpl
		}
	}
	for _, owned := range p.Equipped {
		if tpl := g.catalog.Items.Get(owned.ItemID); tpl != nil && matchName(tpl.Name, typed) {
			return owned, tpl
		}
	}
	return nil, nil
}

func shopPrice(line data.ShopItem, tpl *data.ItemTemplate) int {
	if line.Price > 0 {
		return line.Price
	}
	return tpl.Value
}

// stockLeft reads the runtime count for a limited line, seeding it from
// the catalog on first touch.
func (g *Game) stockLeft(shop *data.Shop, line data.ShopItem) int {
	if line.Stock == 0 {
		return 0
	}
	counts, ok := g.stock[shop.ID]
	if !ok {
		counts = make(map[string]int)
		g.stock[shop.ID] = counts
	}
	left, ok := counts[line.Item]
	if !ok {
		left = line.Stock
		counts[line.Item] = left
	}
	return left
}

func (g *Game) takeStock(shop *data.Shop, line data.ShopItem) {
	if line.Stock == 0 {
		return
	}
	g.stockLeft(shop, line)
	g.stock[shop.ID][line.Item]--
}

// cmdGet picks an item up off the ground.
func (g *Game) cmdGet(p *world.Player, typed string) error {
	if typed == "" {
		return errs.Invalidf("get what?")
	}
	ents, err := g.store.EntitiesInRoom(g.ctx, p.RoomID)
	if err != nil {
		return errs.Transientf("entities in %s: %v", p.RoomID, err)
	}
	for _, ent := range ents {
		if ent.Type != state.TypeItem {
			continue
		}
		tpl := g.catalog.Items.Get(ent.TemplateID)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		if err := g.store.RemoveEntity(g.ctx, ent.ID, true); err != nil {
			return errs.Transientf("pick up %s: %v", ent.ID, err)
		}
		if ent.SpawnGroupID != "" {
			// Free the spawn point so the room restocks after the cooldown.
			if err := g.store.DecrementSpawnAlive(g.ctx, p.RoomID, ent.SpawnGroupID); err != nil {
				g.log.Warn("spawn decrement failed", zap.String("room", p.RoomID), zap.Error(err))
			}
		}
		owned := world.NewOwnedItem(tpl)
		if ent.Durability > 0 {
			owned.Durability = ent.Durability
		}
		p.Inventory = append(p.Inventory, owned)
		p.Dirty = true
		g.sendTo(p, "You pick up the "+strings.ToLower(tpl.Name)+".")
		g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" picks up the "+strings.ToLower(tpl.Name)+".")
		return nil
	}
	return errs.NotFoundf("there is no %s here", typed)
}

// cmdDrop puts a carried item on the ground as a room entity.
func (g *Game) cmdDrop(p *world.Player, typed string) error {
	if typed == "" {
		return errs.Invalidf("drop what?")
	}
	for _, owned := range p.Inventory {
		tpl := g.catalog.Items.Get(owned.ItemID)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		inst := state.Instance{
			TemplateID: owned.ItemID,
			Type:       state.TypeItem,
			Quantity:   1,
			Durability: owned.Durability,
		}
		id, err := g.store.CreateInstance(g.ctx, inst)
		if err != nil {
			return errs.Transientf("drop %s: %v", owned.ItemID, err)
		}
		if err := g.store.PlaceEntity(g.ctx, id, p.RoomID); err != nil {
			return errs.Transientf("drop %s: %v", owned.ItemID, err)
		}
		p.RemoveInventory(owned.UID)
		p.Dirty = true
		g.sendTo(p, "You drop the "+strings.ToLower(tpl.Name)+".")
		g.broadcastRoomExcept(p.RoomID, p.Name, p.Name+" drops a "+strings.ToLower(tpl.Name)+".")
		return nil
	}
	return errs.NotFoundf("you are not carrying a %s", typed)
}

// cmdEquip readies a carried weapon or armor piece.
func (g *Game) cmdEquip(p *world.Player, typed string) error {
	if typed == "" {
		return errs.Invalidf("equip what?")
	}
	for _, owned := range p.Inventory {
		tpl := g.catalog.Items.Get(owned.ItemID)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		var slot string
		switch {
		case tpl.IsWeapon():
			slot = world.SlotWeapon
		case tpl.IsArmor() && len(tpl.ArmorSlots) > 0:
			slot = world.CanonicalSlot(tpl.ArmorSlots[0])
		case tpl.IsArmor():
			slot = world.SlotChest
		default:
			return errs.Rejectedf("the %s cannot be equipped", strings.ToLower(tpl.Name))
		}
		if owned.Broken() {
			return errs.Rejectedf("the %s is broken", strings.ToLower(tpl.Name))
		}
		p.RemoveInventory(owned.UID)
		if prev := p.Equip(slot, owned); prev != nil {
			p.Inventory = append(p.Inventory, prev)
		}
		p.Dirty = true
		g.sendTo(p, "You ready the "+strings.ToLower(tpl.Name)+" ("+slot+").")
		return nil
	}
	return errs.NotFoundf("you are not carrying a %s", typed)
}

// cmdUnequip stows an equipped item by slot name or item name.
func (g *Game) cmdUnequip(p *world.Player, typed string) error {
	if typed == "" {
		return errs.Invalidf("unequip what?")
	}
	slot := world.CanonicalSlot(strings.ToLower(typed))
	if owned := p.Unequip(slot); owned != nil {
		p.Inventory = append(p.Inventory, owned)
		p.Dirty = true
		g.sendTo(p, "You stow the item from your "+slot+" slot.")
		return nil
	}
	for s, owned := range p.Equipped {
		tpl := g.catalog.Items.Get(owned.ItemID)
		if tpl == nil || !matchName(tpl.Name, typed) {
			continue
		}
		p.Unequip(s)
		p.Inventory = append(p.Inventory, owned)
		p.Dirty = true
		g.sendTo(p, "You stow the "+strings.ToLower(tpl.Name)+".")
		return nil
	}
	return errs.NotFoundf("nothing like %s is equipped", typed)
}

// cmdInventory prints carried and equipped items.
func (g *Game) cmdInventory(p *world.Player) {
	g.sendTo(p, fmt.Sprintf("You carry %d gold.", p.Gold))
	if len(p.Inventory) == 0 {
		g.sendTo(p, "Your pack is empty.")
	} else {
		var lines []string
		for _, owned := range p.Inventory {
			if tpl := g.catalog.Items.Get(owned.ItemID); tpl != nil {
				lines = append(lines, "  "+tpl.Name)
			}
		}
		sort.Strings(lines)
		g.sendTo(p, "You carry:")
		for _, l := range lines {
			g.sendTo(p, l)
		}
	}
	slots := append([]string{world.SlotWeapon}, world.ArmorSlots...)
	for _, slot := range slots {
		owned := p.Equipped[slot]
		if owned == nil {
			continue
		}
		if tpl := g.catalog.Items.Get(owned.ItemID); tpl != nil {
			g.sendTo(p, fmt.Sprintf("Equipped (%s): %s", slot, tpl.Name))
		}
	}
}
