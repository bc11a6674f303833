package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightspire/dungeonpulse/internal/apperrors"
	"github.com/nightspire/dungeonpulse/internal/protocol"
)

// captureSink records every frame pushed to a player's connection.
type captureSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *captureSink) SendFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *captureSink) countMagic(magic protocol.Magic) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		if m, _, err := protocol.DecodeFrame(f); err == nil && m == magic {
			n++
		}
	}
	return n
}

// recordingSaver records best-effort persistence calls.
type recordingSaver struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordingSaver) UpdatePlayerState(_ context.Context, playerID string, _ int, _, _ float64, _, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, playerID)
	return nil
}

func (s *recordingSaver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestManager(t *testing.T) (*Manager, *recordingSaver) {
	t.Helper()
	saver := &recordingSaver{}
	m, err := NewManager(1, 10, 50*time.Millisecond, saver)
	require.NoError(t, err)
	return m, saver
}

func profileFor(playerID string) PlayerProfile {
	return PlayerProfile{
		PlayerID:  playerID,
		Username:  playerID,
		RoomID:    UnplacedRoomID,
		CurrentHP: 100,
		MaxHP:     100,
	}
}

// playerHP reads a player's HP under the manager lock.
func (m *Manager) playerHP(playerID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return 0, false
	}
	return p.CurrentHP, true
}

func TestInitializePlayer_SpawnsAtCenterOfSpawnRoom(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	info, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	assert.Equal(t, 0, info.CurrentRoom)
	assert.Nil(t, info.FromDirection)
	assert.Equal(t, Point{RoomMid, RoomMid}, info.SpawnLocation)
	assert.Empty(t, info.OtherPlayersInRoom)
}

func TestInitializePlayer_ReturnsToPersistedRoom(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	snapshot := m.OverworldSnapshot()
	spawn := snapshot.Rooms[0]
	require.NotNil(t, spawn.NorthRoomID, "seed 1 spawn room is expected to have a north neighbor")
	target := *spawn.NorthRoomID

	profile := profileFor("p1")
	profile.RoomID = target
	info, err := m.InitializePlayer(profile, false)
	require.NoError(t, err)
	assert.Equal(t, target, info.CurrentRoom)
	// Re-entry lands at the room center regardless of where the player
	// last stood in that room
	assert.Equal(t, Point{RoomMid, RoomMid}, info.SpawnLocation)

	// A respawn request overrides the persisted room
	info, err = m.InitializePlayer(profile, true)
	require.NoError(t, err)
	assert.Equal(t, 0, info.CurrentRoom)

	// A stale persisted room falls back to spawn
	profile.RoomID = 98765
	info, err = m.InitializePlayer(profile, false)
	require.NoError(t, err)
	assert.Equal(t, 0, info.CurrentRoom)
}

func TestInitializePlayer_OfflineHeal(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	profile := profileFor("p1")
	profile.CurrentHP = 50
	profile.LastSaved = time.Now().Add(-2 * time.Minute)
	_, err := m.InitializePlayer(profile, false)
	require.NoError(t, err)

	// 2 minutes offline at 10% of max per minute restores 20 HP
	hp, ok := m.playerHP("p1")
	require.True(t, ok)
	assert.Equal(t, 70, hp)

	// Healing never exceeds max
	profile.CurrentHP = 95
	profile.LastSaved = time.Now().Add(-30 * time.Minute)
	_, err = m.InitializePlayer(profile, false)
	require.NoError(t, err)
	hp, _ = m.playerHP("p1")
	assert.Equal(t, 100, hp)
}

func TestMoveToRoom_Succeeds(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	snapshot := m.OverworldSnapshot()
	spawn := snapshot.Rooms[0]
	require.NotNil(t, spawn.NorthRoomID, "seed 1 spawn room is expected to have a north neighbor")
	target := *spawn.NorthRoomID

	info, err := m.MoveToRoom("p1", target)
	require.NoError(t, err)

	assert.Equal(t, target, info.CurrentRoom)
	// The old room lies to the south of the new room, so the player
	// entered from the south and lands at the north wall
	require.NotNil(t, info.FromDirection)
	assert.Equal(t, South, *info.FromDirection)
	assert.Equal(t, Point{RoomMid, RoomSize}, info.SpawnLocation)
}

func TestMoveToRoom_InvalidRoom(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	_, err = m.MoveToRoom("p1", 424242)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRoom)
}

func TestMoveToRoom_NotConnected(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	// Find a room that shares no edge with the spawn room
	snapshot := m.OverworldSnapshot()
	spawn := snapshot.Rooms[0]
	neighbors := map[int]bool{}
	for _, id := range []*int{spawn.NorthRoomID, spawn.EastRoomID, spawn.SouthRoomID, spawn.WestRoomID} {
		if id != nil {
			neighbors[*id] = true
		}
	}
	farRoom := -1
	for id := range snapshot.Rooms {
		if id != 0 && !neighbors[id] {
			farRoom = id
			break
		}
	}
	require.NotEqual(t, -1, farRoom, "expected at least one room not adjacent to spawn")

	_, err = m.MoveToRoom("p1", farRoom)
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}

func TestMoveToRoom_UnknownPlayer(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.MoveToRoom("ghost", 0)
	assert.ErrorIs(t, err, apperrors.ErrNotInWorld)
}

func TestPlayerDisconnected_Idempotent(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)
	_, err = m.InitializePlayer(profileFor("p2"), false)
	require.NoError(t, err)

	m.PlayerDisconnected("p1")

	_, ok := m.playerHP("p1")
	assert.False(t, ok)
	_, ok = m.playerHP("p2")
	assert.True(t, ok)

	// Duplicate close notification leaves state unchanged
	m.PlayerDisconnected("p1")
	_, ok = m.playerHP("p2")
	assert.True(t, ok)
}

func TestResolveAttack_AdjustsAndClampsHP(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)
	_, err = m.InitializePlayer(profileFor("p2"), false)
	require.NoError(t, err)

	sink := &captureSink{}
	require.NoError(t, m.AttachSink("p2", sink))

	// Strength 1.0 removes exactly 10 HP
	m.ResolveAttack("p1", []protocol.AttackContact{{PlayerID: "p2", Strength: 1.0}})
	hp, _ := m.playerHP("p2")
	assert.Equal(t, 90, hp)

	// HP floors at zero
	m.ResolveAttack("p1", []protocol.AttackContact{{PlayerID: "p2", Strength: 100}})
	hp, _ = m.playerHP("p2")
	assert.Equal(t, 0, hp)

	// Strength 0 changes nothing but the event is still broadcast
	before := sink.countMagic(protocol.MagicPlayerAttack)
	m.ResolveAttack("p1", []protocol.AttackContact{{PlayerID: "p2", Strength: 0}})
	hp, _ = m.playerHP("p2")
	assert.Equal(t, 0, hp)
	assert.Equal(t, before+1, sink.countMagic(protocol.MagicPlayerAttack))

	// Unknown victims are skipped, the event still goes out
	m.ResolveAttack("p1", []protocol.AttackContact{{PlayerID: "ghost", Strength: 1.0}})
	assert.Equal(t, before+2, sink.countMagic(protocol.MagicPlayerAttack))

	// Unknown attacker is a no-op
	m.ResolveAttack("ghost", []protocol.AttackContact{{PlayerID: "p2", Strength: 1.0}})
	assert.Equal(t, before+2, sink.countMagic(protocol.MagicPlayerAttack))
}

func TestUpdatePosition_BroadcastsToOthersOnly(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)
	_, err = m.InitializePlayer(profileFor("p2"), false)
	require.NoError(t, err)

	sink1 := &captureSink{}
	sink2 := &captureSink{}
	require.NoError(t, m.AttachSink("p1", sink1))
	require.NoError(t, m.AttachSink("p2", sink2))

	m.UpdatePosition("p1", Point{10, 20}, Vector{1, -1})

	assert.Equal(t, 0, sink1.countMagic(protocol.MagicPositionUpdate))
	require.Equal(t, 1, sink2.countMagic(protocol.MagicPositionUpdate))

	_, body, err := protocol.DecodeFrame(sink2.frames[0])
	require.NoError(t, err)
	payload, err := protocol.ParsePayload[protocol.PositionUpdatePayload](body)
	require.NoError(t, err)
	assert.Equal(t, "p1", payload.PlayerID)
	assert.Equal(t, 10.0, payload.Position.X)
	assert.Equal(t, -1.0, payload.Trajectory.DY)

	// Unknown player is a no-op
	m.UpdatePosition("ghost", Point{}, Vector{})
	assert.Equal(t, 1, sink2.countMagic(protocol.MagicPositionUpdate))
}

func TestChat_BroadcastsToRoom(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)
	_, err = m.InitializePlayer(profileFor("p2"), false)
	require.NoError(t, err)

	sink2 := &captureSink{}
	require.NoError(t, m.AttachSink("p2", sink2))

	m.Chat("p1", "hello there")
	require.Equal(t, 1, sink2.countMagic(protocol.MagicChatMessage))

	_, body, err := protocol.DecodeFrame(sink2.frames[0])
	require.NoError(t, err)
	payload, err := protocol.ParsePayload[protocol.ChatPayload](body)
	require.NoError(t, err)
	assert.Equal(t, "hello there", payload.Message)
	assert.Equal(t, "p1", payload.PlayerID)

	// Unknown player is a no-op
	m.Chat("ghost", "boo")
	assert.Equal(t, 1, sink2.countMagic(protocol.MagicChatMessage))
}

func TestPulse_EmptyWorldSendsNothing(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	sink := &captureSink{}
	require.NoError(t, m.AttachSink("p1", sink))
	m.PlayerDisconnected("p1")

	m.pulse()
	assert.Equal(t, 0, sink.count())
}

func TestPulse_SendsSnapshotToAllOccupants(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)
	_, err = m.InitializePlayer(profileFor("p2"), false)
	require.NoError(t, err)

	sink1 := &captureSink{}
	sink2 := &captureSink{}
	require.NoError(t, m.AttachSink("p1", sink1))
	require.NoError(t, m.AttachSink("p2", sink2))

	m.pulse()

	require.Equal(t, 1, sink1.countMagic(protocol.MagicPositionPulse))
	require.Equal(t, 1, sink2.countMagic(protocol.MagicPositionPulse))

	_, body, err := protocol.DecodeFrame(sink1.frames[0])
	require.NoError(t, err)
	payload, err := protocol.ParsePayload[protocol.PulsePayload](body)
	require.NoError(t, err)
	require.Len(t, payload.Players, 2)
	for _, state := range payload.Players {
		assert.Equal(t, 100, state.CurrentHP)
		assert.Equal(t, 100, state.MaxHP)
	}
}

func TestPulseLoop_StartStop(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)
	sink := &captureSink{}
	require.NoError(t, m.AttachSink("p1", sink))

	m.Start()
	assert.Eventually(t, func() bool {
		return sink.countMagic(protocol.MagicPositionPulse) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop() // safe to call twice
}

func TestPersistence_BestEffortAfterMutation(t *testing.T) {
	t.Parallel()

	m, saver := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return saver.callCount() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestReset_RebuildsWorldAndClearsPlayers(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	require.NoError(t, m.Reset(2))

	assert.Equal(t, uint64(2), m.Seed())
	_, ok := m.playerHP("p1")
	assert.False(t, ok)

	// Regenerating with the original seed reproduces the original topology
	first, err := NewManager(1, 10, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, m.Reset(1))
	assert.Equal(t, first.OverworldSnapshot(), m.OverworldSnapshot())
}

func TestRoomContents_UnknownRoom(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	_, err := m.RoomContents(5555)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRoom)
}

func TestRoomContents_GeneratedLazilyOnEntry(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	// No one has entered room 0 yet in a fresh world... but initialize
	// places the player there, which triggers generation
	doodads, err := m.RoomContents(0)
	require.NoError(t, err)
	assert.Empty(t, doodads)

	_, err = m.InitializePlayer(profileFor("p1"), false)
	require.NoError(t, err)

	doodads, err = m.RoomContents(0)
	require.NoError(t, err)
	assert.NotEmpty(t, doodads)
}
