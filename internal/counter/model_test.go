package counter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/notification-tray/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct {
	mu    sync.Mutex
	count int
	err   error
	calls atomic.Int32
}

func (s *stubSource) UnreadCount(context.Context) (int, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.err
}

func (s *stubSource) set(n int) {
	s.mu.Lock()
	s.count = n
	s.mu.Unlock()
}

type countingPlayer struct {
	plays atomic.Int32
}

func (p *countingPlayer) Play(context.Context) error {
	p.plays.Add(1)
	return nil
}

// drain runs cmd and every command nested in batches, collecting the
// resulting messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func newCounter(t *testing.T, src CountSource, player Player) Model {
	t.Helper()
	m, err := New(src, Options{Player: player})
	require.NoError(t, err)
	return m
}

func withCount(t *testing.T, m Model, n int) Model {
	t.Helper()
	m, _ = m.Update(countFetchedMsg{count: n})
	return m
}

func TestBadgeRendersFetchedCount(t *testing.T) {
	src := &stubSource{count: 2030}
	m := newCounter(t, src, nil)

	msgs := drain(m.Init())
	require.Len(t, msgs, 1)
	m, _ = m.Update(msgs[0])

	assert.Contains(t, m.View(), "2030")
	n, known := m.Count()
	assert.True(t, known)
	assert.Equal(t, 2030, n)
}

func TestBadgeBeforeFirstFetch(t *testing.T) {
	m := newCounter(t, &stubSource{}, nil)

	_, known := m.Count()
	assert.False(t, known)
	assert.Equal(t, "-", m.View())
}

func TestCustomBadgeTemplate(t *testing.T) {
	m, err := New(&stubSource{}, Options{BadgeTemplate: "🔔 {{.Count}}"})
	require.NoError(t, err)

	m = withCount(t, m, 3)
	assert.Equal(t, "🔔 3", m.View())
}

func TestBadBadgeTemplate(t *testing.T) {
	_, err := New(&stubSource{}, Options{BadgeTemplate: "{{.Count"})
	assert.Error(t, err)
}

func TestRefreshReplacesCountUnconditionally(t *testing.T) {
	src := &stubSource{count: 1}
	m := withCount(t, newCounter(t, src, nil), 5)

	_, cmd := m.Update(RefreshMsg{})
	msgs := drain(cmd)
	require.Len(t, msgs, 1)
	m, _ = m.Update(msgs[0])

	n, _ := m.Count()
	assert.Equal(t, 1, n)
}

func TestRefreshWithSameCountKeepsBadge(t *testing.T) {
	src := &stubSource{count: 5}
	m := withCount(t, newCounter(t, src, nil), 5)
	renders := m.Renders()

	_, cmd := m.Update(RefreshMsg{})
	msgs := drain(cmd)
	require.Len(t, msgs, 1)
	m, _ = m.Update(msgs[0])

	assert.Equal(t, renders, m.Renders())
	assert.Equal(t, "5", m.View())
}

func TestFirstFetchOfZeroRendersBadge(t *testing.T) {
	m := newCounter(t, &stubSource{}, nil)
	renders := m.Renders()

	m = withCount(t, m, 0)

	assert.Equal(t, renders+1, m.Renders())
	assert.Equal(t, "0", m.View())
}

func TestFetchFailureKeepsCount(t *testing.T) {
	m := withCount(t, newCounter(t, &stubSource{}, nil), 4)

	m, _ = m.Update(countFetchedMsg{err: errors.New("offline")})

	n, _ := m.Count()
	assert.Equal(t, 4, n)
	assert.Error(t, m.Err())
	assert.Equal(t, "4", m.View())
}

func TestPollEqualOrLowerIsNoop(t *testing.T) {
	player := &countingPlayer{}
	m := withCount(t, newCounter(t, &stubSource{}, player), 5)
	renders := m.Renders()

	for _, n := range []int{5, 4, 0} {
		var cmd tea.Cmd
		m, cmd = m.Update(PolledCountMsg{Count: n})
		assert.Empty(t, drain(cmd))
	}

	count, _ := m.Count()
	assert.Equal(t, 5, count)
	assert.Equal(t, renders, m.Renders())
	assert.Zero(t, player.plays.Load())
}

func TestPollIncreaseUpdatesPlaysAndHydrates(t *testing.T) {
	player := &countingPlayer{}
	m := withCount(t, newCounter(t, &stubSource{}, player), 5)
	renders := m.Renders()

	m, cmd := m.Update(PolledCountMsg{Count: 6})
	msgs := drain(cmd)

	count, _ := m.Count()
	assert.Equal(t, 6, count)
	assert.Equal(t, renders+1, m.Renders())
	assert.Equal(t, "6", m.View())
	assert.EqualValues(t, 1, player.plays.Load())
	assert.Equal(t, []tea.Msg{CountIncreasedMsg{Count: 6}}, msgs)
}

func TestPollErrorIsIgnored(t *testing.T) {
	m := withCount(t, newCounter(t, &stubSource{}, nil), 2)

	m, cmd := m.Update(PolledCountMsg{Count: 9, Err: errors.New("timeout")})

	assert.Empty(t, drain(cmd))
	count, _ := m.Count()
	assert.Equal(t, 2, count)
}

func TestPollAgainstUnknownCount(t *testing.T) {
	m := newCounter(t, &stubSource{}, nil)

	m, _ = m.Update(PolledCountMsg{Count: 1})

	count, known := m.Count()
	assert.True(t, known)
	assert.Equal(t, 1, count)
}

func TestPollerDeliversResultsAndStops(t *testing.T) {
	src := &stubSource{count: 7}
	p := NewPoller(src, 5*time.Millisecond, nil)

	first := p.Start()
	require.NotNil(t, first)
	assert.True(t, p.Running())
	assert.Nil(t, p.Start())

	msg := first()
	assert.Equal(t, PolledCountMsg{Count: 7}, msg)

	src.set(8)
	require.Eventually(t, func() bool {
		return p.WaitForNextResult()() == PolledCountMsg{Count: 8}
	}, time.Second, time.Millisecond)

	p.Stop()
	assert.False(t, p.Running())
	assert.Nil(t, p.WaitForNextResult()())

	// Stopping twice is harmless.
	p.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	p := NewPoller(&stubSource{}, time.Hour, nil)

	p.Stop()

	assert.Nil(t, p.Start())
	assert.Nil(t, p.WaitForNextResult()())
}

func TestModelInitStartsPoller(t *testing.T) {
	src := &stubSource{count: 3}
	p := NewPoller(src, time.Hour, nil)
	m, err := New(src, Options{Poller: p})
	require.NoError(t, err)

	_ = m.Init()
	assert.True(t, p.Running())

	m.Stop()
	assert.False(t, p.Running())
}

func TestNewPlayer(t *testing.T) {
	assert.IsType(t, NopPlayer{}, NewPlayer(model.SoundConfig{Command: []string{"true"}}))
	assert.IsType(t, BellPlayer{}, NewPlayer(model.SoundConfig{Enabled: true}))
	assert.IsType(t, CommandPlayer{}, NewPlayer(model.SoundConfig{Enabled: true, Command: []string{"true"}}))
}
