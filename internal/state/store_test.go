package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, *int64) {
	t.Helper()
	now := int64(1_000_000)
	s := NewStore(NewMemoryBackend(), time.Hour, zap.NewNop())
	s.SetNowFunc(func() int64 { return now })
	return s, &now
}

func TestLazyRoomStateCreation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetOrCreateRoomState(ctx, "dock")
	require.NoError(t, err)
	assert.Equal(t, "dock", st.RoomID)
	assert.Equal(t, 1, st.StateVersion)
	assert.NotZero(t, st.Seed)
	assert.Equal(t, st.CreatedAt+3600, st.NextResetAt)

	// Second load returns the same document, not a fresh one.
	again, err := s.GetOrCreateRoomState(ctx, "dock")
	require.NoError(t, err)
	assert.Equal(t, st.Seed, again.Seed)
	assert.Equal(t, st.CreatedAt, again.CreatedAt)
}

func TestSpawnEligibilitySingleWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryConsumeSpawnEligibility(ctx, "dock", "crab_nest", 1, time.Minute)
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)

	timer, err := s.SpawnTimer(ctx, "dock", "crab_nest")
	require.NoError(t, err)
	assert.Equal(t, 1, timer.AliveCount)
}

func TestSpawnEligibilityCooldownAndAliveCap(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	ok, err := s.TryConsumeSpawnEligibility(ctx, "dock", "nest", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Cooldown not elapsed.
	ok, err = s.TryConsumeSpawnEligibility(ctx, "dock", "nest", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	*now += 61
	ok, err = s.TryConsumeSpawnEligibility(ctx, "dock", "nest", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// At the alive cap even after cooldown.
	*now += 61
	ok, err = s.TryConsumeSpawnEligibility(ctx, "dock", "nest", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Death frees a slot.
	require.NoError(t, s.DecrementSpawnAlive(ctx, "dock", "nest"))
	ok, err = s.TryConsumeSpawnEligibility(ctx, "dock", "nest", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEntitiesInRoomExpiry(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	keep, err := s.CreateInstance(ctx, Instance{TemplateID: "dune_crab", Type: TypeCreature, HPCurrent: 10, HPMax: 10})
	require.NoError(t, err)
	require.NoError(t, s.PlaceEntity(ctx, keep, "beach"))

	gone, err := s.CreateInstance(ctx, Instance{TemplateID: "driftwood", Type: TypeItem, ExpiresAt: *now + 30})
	require.NoError(t, err)
	require.NoError(t, s.PlaceEntity(ctx, gone, "beach"))

	ents, err := s.EntitiesInRoom(ctx, "beach")
	require.NoError(t, err)
	assert.Len(t, ents, 2)

	*now += 31
	ents, err = s.EntitiesInRoom(ctx, "beach")
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, keep, ents[0].ID)

	// Expired instance record is gone, not just hidden.
	inst, err := s.Instance(ctx, gone)
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestRemoveEntity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateInstance(ctx, Instance{TemplateID: "gull", Type: TypeCreature})
	require.NoError(t, err)
	require.NoError(t, s.PlaceEntity(ctx, id, "pier"))

	require.NoError(t, s.RemoveEntity(ctx, id, false))
	pos, err := s.Position(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, pos)
	inst, err := s.Instance(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, inst)

	require.NoError(t, s.RemoveEntity(ctx, id, true))
	inst, err = s.Instance(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestDefeatedNpcRespawnWindow(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkNpcDefeated(ctx, "inn", "keeper", 2*time.Minute))
	down, err := s.DefeatedNpcs(ctx, "inn")
	require.NoError(t, err)
	assert.True(t, down["keeper"])

	*now += 121
	down, err = s.DefeatedNpcs(ctx, "inn")
	require.NoError(t, err)
	assert.Empty(t, down)

	// A room reset clears the markers early.
	require.NoError(t, s.MarkNpcDefeated(ctx, "inn", "keeper", 2*time.Hour))
	*now += 3601
	_, err = s.MaybeResetRoom(ctx, "inn")
	require.NoError(t, err)
	down, err = s.DefeatedNpcs(ctx, "inn")
	require.NoError(t, err)
	assert.Empty(t, down)
}

func TestMaybeResetRoom(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	before, err := s.GetOrCreateRoomState(ctx, "alley")
	require.NoError(t, err)
	_, err = s.TryConsumeSpawnEligibility(ctx, "alley", "rat_hole", 1, time.Minute)
	require.NoError(t, err)

	// Inside the window: nothing changes.
	st, err := s.MaybeResetRoom(ctx, "alley")
	require.NoError(t, err)
	assert.Equal(t, before.StateVersion, st.StateVersion)

	*now += 3601
	st, err = s.MaybeResetRoom(ctx, "alley")
	require.NoError(t, err)
	assert.Equal(t, before.StateVersion+1, st.StateVersion)
	assert.Empty(t, st.SpawnTimers)
	assert.Equal(t, *now+3600, st.NextResetAt)
}

func TestEncounterStampViaMutate(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	stamped, err := s.MutateRoomState(ctx, "cove", func(st *RoomState) (bool, error) {
		if *now-st.LastEncounterRoll < 120 && st.LastEncounterRoll != 0 {
			return false, nil
		}
		st.LastEncounterRoll = *now
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, stamped)

	st, err := s.GetOrCreateRoomState(ctx, "cove")
	require.NoError(t, err)
	assert.Equal(t, *now, st.LastEncounterRoll)
}
