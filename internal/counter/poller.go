package counter

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// PolledCountMsg is a tea.Msg carrying the result of one shadow fetch.
type PolledCountMsg struct {
	Count int
	Err   error
}

// fetchTimeout is the maximum time allowed for a single count request.
const fetchTimeout = 30 * time.Second

// Poller re-fetches the unread count on a fixed interval without touching
// the displayed value. Results are handed to the Bubble Tea runtime through
// WaitForNextResult.
type Poller struct {
	source   CountSource
	interval time.Duration
	log      *zap.Logger

	resultCh chan PolledCountMsg
	stopCh   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool
}

// NewPoller creates a Poller that asks source for the count every interval.
func NewPoller(source CountSource, interval time.Duration, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		source:   source,
		interval: interval,
		log:      log,
		resultCh: make(chan PolledCountMsg, 1),
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the polling goroutine and returns a command that waits
// for the first result. Calling Start on a running or stopped poller
// returns nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.wg.Add(1)
	p.mu.Unlock()

	go p.loop()

	return p.WaitForNextResult()
}

// Stop halts the polling goroutine and waits for it to exit. Pending
// WaitForNextResult commands return nil afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	wasRunning := p.running
	p.running = false
	close(p.stopCh)
	p.cancel()
	p.mu.Unlock()

	if wasRunning {
		p.wg.Wait()
	}
	close(p.resultCh)
}

// Running reports whether the polling goroutine is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// It should be issued again after every PolledCountMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll performs one shadow fetch and publishes the result, replacing any
// result the UI has not consumed yet.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, fetchTimeout)
	defer cancel()

	count, err := p.source.UnreadCount(ctx)
	if err != nil {
		p.log.Warn("unread count poll failed", zap.Error(err))
	}

	msg := PolledCountMsg{Count: count, Err: err}
	for {
		select {
		case <-p.stopCh:
			return
		case p.resultCh <- msg:
			return
		default:
			// Drop the stale unconsumed result.
			select {
			case <-p.resultCh:
			default:
			}
		}
	}
}
