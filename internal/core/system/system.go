package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain session command queues
	PhasePreUpdate               // 1: deliver last tick's events
	PhaseUpdate                  // 2: game logic (combat, schedules, weather)
	PhasePostUpdate              // 3: spawns, room expiry
	PhaseOutput                  // 4: flush session output
	PhasePersist                 // 5: batch save dirty records
	PhaseCleanup                 // 6: remove dead instances, closed sessions
)

// System is one stage of the tick pipeline.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
