// Package sync runs the background pull-mode jobs that keep the
// notification set correct when realtime pushes are missed.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/model"
)

// SyncState represents the current state of a job.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// Job identifies one of the poller's periodic jobs.
type Job string

const (
	// JobRefresh re-fetches the whole notification list.
	JobRefresh Job = "refresh"
	// JobDriftCheck compares the server's unread count with the local one
	// and refreshes on mismatch.
	JobDriftCheck Job = "drift"
)

// SyncStatus holds the state of a single job.
type SyncStatus struct {
	Job     Job
	State   SyncState
	LastRun time.Time
	Error   error
}

// SyncResultMsg is a tea.Msg sent when a job run completes.
type SyncResultMsg struct {
	Job   Job
	Error error
	// Drift is set when a drift check found a mismatch.
	Drift *DriftMsg
}

// DriftMsg describes an unread-count mismatch that triggered a refresh.
type DriftMsg struct {
	Server int
	Local  int
}

// Refresher is the local notification set.
type Refresher interface {
	Refresh(ctx context.Context) error
	UnreadCount() int
}

// CountSource reports the server's unread count for a user.
type CountSource interface {
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// UserSource reports who is signed in.
type UserSource interface {
	CurrentUser() (*model.User, bool)
}

// fetchTimeout is the maximum time allowed for a single job run.
const fetchTimeout = 30 * time.Second

type jobEntry struct {
	job      Job
	interval time.Duration
	// immediate runs the job once on Start.
	immediate bool
	trigger   chan struct{}
	run       func(ctx context.Context) SyncResultMsg
}

// Poller orchestrates background jobs and reports their results to the
// Bubble Tea runtime.
type Poller struct {
	center Refresher
	counts CountSource
	users  UserSource
	logger *zap.Logger

	jobs     []*jobEntry
	statuses map[Job]*SyncStatus
	resultCh chan SyncResultMsg
	stopCh   chan struct{}
	mu       gosync.Mutex
	running  bool
}

// New creates a Poller. Zero intervals fall back to the defaults.
func New(
	center Refresher,
	counts CountSource,
	users UserSource,
	cfg model.NotificationsConfig,
	logger *zap.Logger,
) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		center:   center,
		counts:   counts,
		users:    users,
		logger:   logger,
		statuses: make(map[Job]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		stopCh:   make(chan struct{}),
	}

	p.addJob(JobRefresh, seconds(cfg.PollIntervalSec, 120), true, p.refresh)
	p.addJob(JobDriftCheck, seconds(cfg.DriftCheckSec, 30), false, p.checkDrift)
	return p
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func (p *Poller) addJob(job Job, interval time.Duration, immediate bool, run func(context.Context) SyncResultMsg) {
	p.jobs = append(p.jobs, &jobEntry{
		job:       job,
		interval:  interval,
		immediate: immediate,
		trigger:   make(chan struct{}, 1),
		run:       run,
	})
	p.statuses[job] = &SyncStatus{Job: job, State: SyncIdle}
}

// Start returns a tea.Cmd that starts all job goroutines and waits for
// the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	for _, entry := range p.jobs {
		go p.loop(entry)
	}

	return p.waitForResult()
}

// Stop halts all job goroutines. A stopped Poller cannot be restarted.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// RefreshAll triggers an immediate run of the refresh job.
func (p *Poller) RefreshAll() tea.Cmd {
	p.Trigger(JobRefresh)
	return nil
}

// Trigger requests an immediate run of job. Requests made while one is
// already pending are merged.
func (p *Poller) Trigger(job Job) {
	for _, entry := range p.jobs {
		if entry.job != job {
			continue
		}
		select {
		case entry.trigger <- struct{}{}:
		default:
		}
	}
}

// GetStatuses returns the current status of every job in a stable order.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.jobs))
	for _, entry := range p.jobs {
		statuses = append(statuses, *p.statuses[entry.job])
	}
	return statuses
}

func (p *Poller) loop(entry *jobEntry) {
	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	if entry.immediate {
		p.execute(entry)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.execute(entry)
		case <-entry.trigger:
			p.execute(entry)
		}
	}
}

func (p *Poller) execute(entry *jobEntry) {
	if _, ok := p.userID(); !ok {
		// Nothing to sync while logged out.
		return
	}

	p.setStatus(entry.job, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	result := entry.run(ctx)
	result.Job = entry.job
	if result.Error != nil {
		p.logger.Warn("sync job failed", zap.String("job", string(entry.job)), zap.Error(result.Error))
		p.setStatus(entry.job, SyncError, result.Error)
	} else {
		p.setStatus(entry.job, SyncIdle, nil)
	}
	p.sendResult(result)
}

func (p *Poller) userID() (string, bool) {
	u, ok := p.users.CurrentUser()
	if !ok || u == nil || u.ID == "" {
		return "", false
	}
	return u.ID.String(), true
}

func (p *Poller) refresh(ctx context.Context) SyncResultMsg {
	return SyncResultMsg{Error: p.center.Refresh(ctx)}
}

func (p *Poller) checkDrift(ctx context.Context) SyncResultMsg {
	userID, ok := p.userID()
	if !ok {
		return SyncResultMsg{}
	}

	server, err := p.counts.UnreadCount(ctx, userID)
	if err != nil {
		return SyncResultMsg{Error: fmt.Errorf("checking unread count: %w", err)}
	}
	local := p.center.UnreadCount()
	if server == local {
		return SyncResultMsg{}
	}

	p.logger.Info("unread count drifted, refreshing", zap.Int("server", server), zap.Int("local", local))
	return SyncResultMsg{
		Drift: &DriftMsg{Server: server, Local: local},
		Error: p.center.Refresh(ctx),
	}
}

// setStatus updates the status of a job.
func (p *Poller) setStatus(job Job, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[job]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastRun = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.stopCh:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
