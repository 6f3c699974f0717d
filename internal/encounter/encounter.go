// Package encounter rolls zone random-encounter tables when players enter
// rooms and spawns the resulting creature groups. The cooldown stamp is
// committed atomically through the runtime store, so two players entering
// at once produce at most one group.
package encounter

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saltmere/server/internal/core/event"
	"github.com/saltmere/server/internal/data"
	"github.com/saltmere/server/internal/state"
)

// RNG is the subset of math/rand the service rolls with.
type RNG interface {
	Float64() float64
	Intn(n int) int
}

// Service rolls and spawns random encounters.
type Service struct {
	store    *state.Store
	zones    *data.ZoneTable
	npcs     *data.NpcTable
	bus      *event.Bus
	log      *zap.Logger
	rng      RNG
	chance   float64
	cooldown int64
	now      func() int64
}

func NewService(store *state.Store, zones *data.ZoneTable, npcs *data.NpcTable, bus *event.Bus, rng RNG, chance float64, cooldown time.Duration, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		zones:    zones,
		npcs:     npcs,
		bus:      bus,
		log:      log,
		rng:      rng,
		chance:   chance,
		cooldown: int64(cooldown / time.Second),
		now:      func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc replaces the time source, for tests. Keep it aligned with the
// store's.
func (s *Service) SetNowFunc(now func() int64) { s.now = now }

// Roll runs the encounter guard sequence for one room entry. Returns the
// spawned instance ids, empty when nothing spawned.
func (s *Service) Roll(ctx context.Context, roomID, zone string) ([]string, error) {
	rows := s.zones.Rows(zone)
	if len(rows) == 0 {
		return nil, nil
	}
	if s.rng.Float64() > s.chance {
		return nil, nil
	}

	// Cooldown check and stamp commit together; concurrent entries race
	// for one stamp.
	now := s.now()
	stamped, err := s.store.MutateRoomState(ctx, roomID, func(st *state.RoomState) (bool, error) {
		if st.LastEncounterRoll != 0 && now-st.LastEncounterRoll < s.cooldown {
			return false, nil
		}
		st.LastEncounterRoll = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !stamped {
		return nil, nil
	}

	roll := s.rng.Intn(100) + 1
	var matched *data.EncounterRow
	for i := range rows {
		if rows[i].MinRoll <= roll && roll <= rows[i].MaxRoll {
			matched = &rows[i]
			break
		}
	}
	if matched == nil || matched.Type != data.EncounterCombat || matched.Composition == "" {
		return nil, nil
	}

	return s.spawnGroup(ctx, roomID, matched.Composition)
}

func (s *Service) spawnGroup(ctx context.Context, roomID, compKey string) ([]string, error) {
	comp := s.zones.Composition(compKey)
	if len(comp) == 0 {
		return nil, nil
	}
	encounterID := uuid.NewString()
	var spawned []string
	for _, entry := range comp {
		tpl := s.npcs.Get(entry.Template)
		if tpl == nil {
			s.log.Warn("composition references unknown template",
				zap.String("composition", compKey), zap.String("template", entry.Template))
			continue
		}
		count := entry.MinCount
		if entry.MaxCount > entry.MinCount {
			count += s.rng.Intn(entry.MaxCount - entry.MinCount + 1)
		}
		role := strings.ToLower(tpl.Role)
		if role == "" {
			role = "minion"
		}
		for i := 0; i < count; i++ {
			id, err := s.store.CreateInstance(ctx, state.Instance{
				TemplateID:  tpl.ID,
				Type:        state.TypeCreature,
				Tier:        tpl.Tier,
				Role:        role,
				HPCurrent:   tpl.MaxHealth,
				HPMax:       tpl.MaxHealth,
				SpeedCost:   1.0,
				EncounterID: encounterID,
			})
			if err != nil {
				// Abandon the group member; the kill-through path tolerates
				// partial groups.
				s.log.Error("spawn instance", zap.String("template", tpl.ID), zap.Error(err))
				continue
			}
			if err := s.store.PlaceEntity(ctx, id, roomID); err != nil {
				s.log.Error("place instance", zap.String("instance", id), zap.Error(err))
				continue
			}
			spawned = append(spawned, id)
		}
	}
	if len(spawned) > 0 {
		s.log.Info("encounter spawned",
			zap.String("room", roomID),
			zap.String("composition", compKey),
			zap.String("encounter", encounterID),
			zap.Int("count", len(spawned)))
		event.Emit(s.bus, event.EncounterSpawned{RoomID: roomID, EncounterID: encounterID, Instances: spawned})
	}
	return spawned, nil
}
