// Package weather tracks per-region weather with lazy initialization,
// weighted transitions, and light mechanical modifiers. Regions that no
// player ever looks at never roll.
package weather

import (
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/saltmere/server/internal/clock"
	"github.com/saltmere/server/internal/core/event"
	"github.com/saltmere/server/internal/data"
)

// Effect names accepted by Modifier.
const (
	EffectRangedAccuracyFar = "ranged_accuracy_far" // fog
	EffectDisengageFailure  = "disengage_failure"   // squall
	EffectStaminaDrain      = "stamina_drain"       // cold snap, outdoor/coastal only
)

const (
	initialChangeDelay = 900
	minDuration        = 600
	maxDuration        = 1800
	maxIntensity       = 3
)

// State is the current weather of one region.
type State struct {
	Region       string
	Type         string
	Intensity    int
	StartedAt    int64
	NextChangeAt int64
}

// Service manages regional weather. Game loop goroutine only.
type Service struct {
	clock   *clock.Clock
	table   *data.WeatherTable
	bus     *event.Bus
	log     *zap.Logger
	rng     *rand.Rand
	regions map[string]*State
}

func NewService(c *clock.Clock, table *data.WeatherTable, bus *event.Bus, rng *rand.Rand, log *zap.Logger) *Service {
	return &Service{
		clock:   c,
		table:   table,
		bus:     bus,
		log:     log,
		rng:     rng,
		regions: make(map[string]*State),
	}
}

// Region returns the region's weather, initializing it to calm clear
// weather with the first change due in fifteen world minutes.
func (s *Service) Region(region string) *State {
	if region == "" {
		return nil
	}
	st, ok := s.regions[region]
	if !ok {
		now := s.clock.WorldSeconds()
		st = &State{
			Region:       region,
			Type:         data.WeatherClear,
			Intensity:    0,
			StartedAt:    now,
			NextChangeAt: now + initialChangeDelay,
		}
		s.regions[region] = st
	}
	return st
}

// MaybeUpdate rolls new weather for the region when its change time has
// passed. A change to a different type emits a WeatherChanged event.
func (s *Service) MaybeUpdate(region string) {
	st := s.Region(region)
	if st == nil {
		return
	}
	now := s.clock.WorldSeconds()
	if now < st.NextChangeAt {
		return
	}
	oldType := st.Type
	st.Type = s.rollNext(oldType)
	if st.Type != data.WeatherClear {
		st.Intensity++
	} else {
		st.Intensity--
	}
	if st.Intensity > maxIntensity {
		st.Intensity = maxIntensity
	}
	if st.Intensity < 0 {
		st.Intensity = 0
	}
	st.StartedAt = now
	st.NextChangeAt = now + minDuration + int64(s.rng.Intn(maxDuration-minDuration+1))

	if st.Type != oldType {
		s.log.Debug("weather change",
			zap.String("region", region),
			zap.String("from", oldType),
			zap.String("to", st.Type),
			zap.Int("intensity", st.Intensity))
		event.Emit(s.bus, event.WeatherChanged{
			Region:    region,
			OldType:   oldType,
			NewType:   st.Type,
			Intensity: st.Intensity,
		})
	}
}

// rollNext picks the next weather type from the weighted transition row.
func (s *Service) rollNext(from string) string {
	row, ok := s.table.Transitions[from]
	if !ok || len(row) == 0 {
		return data.WeatherClear
	}
	// Deterministic iteration so a seeded rng replays identically.
	keys := make([]string, 0, len(row))
	total := 0
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		total += row[k]
	}
	pick := s.rng.Intn(total)
	for _, k := range keys {
		pick -= row[k]
		if pick < 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}

// ChangeMessage returns the broadcast line for a weather type.
func (s *Service) ChangeMessage(weatherType string) string {
	if msg, ok := s.table.Messages[weatherType]; ok {
		return msg
	}
	return "The weather changes."
}

// Overlay returns the look line for a region and exposure, or "" for
// indoor rooms and unknown regions.
func (s *Service) Overlay(region, exposure string) string {
	if exposure == data.ExposureIndoor || region == "" {
		return ""
	}
	st := s.Region(region)
	row, ok := s.table.Overlays[st.Type]
	if !ok {
		return ""
	}
	switch exposure {
	case data.ExposureSheltered, data.ExposureOutdoor, data.ExposureCoastal:
	default:
		exposure = data.ExposureOutdoor
	}
	if line, ok := row[exposure]; ok && line != "" {
		return line
	}
	return row[data.ExposureOutdoor]
}

// Modifier returns the integer modifier an effect takes from the region's
// current weather. Indoor rooms always return 0. The magnitude scales with
// intensity: scale = (intensity+1)/4.
func (s *Service) Modifier(region, exposure, effect string) int {
	if exposure == data.ExposureIndoor || region == "" {
		return 0
	}
	st := s.Region(region)
	scale := s.scale(st)
	switch {
	case effect == EffectRangedAccuracyFar && st.Type == data.WeatherFog:
		return int(-15 * scale)
	case effect == EffectDisengageFailure && st.Type == data.WeatherSquall:
		return int(20 * scale)
	case effect == EffectStaminaDrain && st.Type == data.WeatherColdSnap &&
		(exposure == data.ExposureOutdoor || exposure == data.ExposureCoastal):
		return int(2 * scale)
	}
	return 0
}

// DurabilityLossScale returns the extra equipment wear factor from salt
// rain, zero in any other weather or indoors.
func (s *Service) DurabilityLossScale(region, exposure string) float64 {
	if exposure == data.ExposureIndoor || region == "" {
		return 0
	}
	st := s.Region(region)
	if st.Type != data.WeatherSaltRain {
		return 0
	}
	return s.scale(st)
}

func (s *Service) scale(st *State) float64 {
	i := st.Intensity
	if i < 0 {
		i = 0
	}
	if i > maxIntensity {
		i = maxIntensity
	}
	return float64(i+1) / 4.0
}
