package data

// Constructors for assembling tables in code. Used by tests and by the
// admin room editor; production load paths go through the Load functions.

// NewRoomTable builds a room table from literals.
func NewRoomTable(rooms ...*Room) *RoomTable {
	t := &RoomTable{rooms: make(map[string]*Room, len(rooms))}
	for _, r := range rooms {
		if r.Exposure == "" {
			r.Exposure = ExposureOutdoor
		}
		if r.Region == "" {
			r.Region = "town"
		}
		t.rooms[r.ID] = r
	}
	return t
}

// NewNpcTable builds an NPC table from literals.
func NewNpcTable(npcs ...*NpcTemplate) *NpcTable {
	t := &NpcTable{templates: make(map[string]*NpcTemplate, len(npcs))}
	for _, n := range npcs {
		if n.Level < 1 {
			n.Level = 1
		}
		if n.Tier == "" {
			n.Tier = TierForLevel(n.Level)
		}
		if n.MaxHealth < 1 {
			n.MaxHealth = 50
		}
		t.templates[n.ID] = n
	}
	return t
}

// NewItemTable builds an item table from literals.
func NewItemTable(items ...*ItemTemplate) *ItemTable {
	t := &ItemTable{templates: make(map[string]*ItemTemplate, len(items))}
	for _, it := range items {
		if it.Type == "" {
			it.Type = TypeItem
		}
		if it.IsWeapon() {
			if it.Hands < 1 {
				it.Hands = 1
			}
			if it.SpeedCost <= 0 {
				it.SpeedCost = 1.0
			}
			if it.Durability < 1 {
				it.Durability = 50
			}
		}
		if it.IsArmor() {
			if it.Durability < 1 {
				it.Durability = 50
			}
			if it.ArmorHP < 1 {
				it.ArmorHP = 20
			}
		}
		t.templates[it.ID] = it
	}
	return t
}

// NewShopTable builds a shop table from literals.
func NewShopTable(shops ...*Shop) *ShopTable {
	t := &ShopTable{shops: make(map[string]*Shop, len(shops))}
	for _, s := range shops {
		if s.Open == "" {
			s.Open = "08:00"
		}
		if s.Close == "" {
			s.Close = "20:00"
		}
		if s.BuybackRate <= 0 {
			s.BuybackRate = 0.5
		}
		t.shops[s.ID] = s
	}
	return t
}

// NewZoneTable builds a zone table from literals. No validation; the YAML
// path validates because hand-built tables are assumed correct.
func NewZoneTable(zones map[string][]EncounterRow, compositions map[string][]CompositionEntry) *ZoneTable {
	if zones == nil {
		zones = map[string][]EncounterRow{}
	}
	if compositions == nil {
		compositions = map[string][]CompositionEntry{}
	}
	return &ZoneTable{zones: zones, compositions: compositions}
}
