// Package coordinator runs the time-coordination state machine: it elects a
// leader among the peers it can hear, keeps followers in step with the
// leader's clock and corrects local subscribers when the wall clock jumps.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/virgil28labs/timesync/clock"
	"github.com/virgil28labs/timesync/drift"
	"github.com/virgil28labs/timesync/election"
	"github.com/virgil28labs/timesync/heartbeat"
	"github.com/virgil28labs/timesync/models"
	"github.com/virgil28labs/timesync/registry"
	"github.com/virgil28labs/timesync/transport"
)

var (
	ErrStarted   = errors.New("coordinator already started")
	ErrDestroyed = errors.New("coordinator destroyed")
)

// Logger is the subset of logger.Logger used by the controller.
type Logger interface {
	DebugW(msg string, keysAndValues ...any)
	InfoW(msg string, keysAndValues ...any)
	WarnW(msg string, keysAndValues ...any)
	ErrorW(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) DebugW(_ string, _ ...any) {}
func (nopLogger) InfoW(_ string, _ ...any)  {}
func (nopLogger) WarnW(_ string, _ ...any)  {}
func (nopLogger) ErrorW(_ string, _ ...any) {}

// Params holds the dependencies of a Controller.
type Params struct {
	SelfID string
	Config Config

	// Transport is nil when no transport could be opened; the controller
	// then runs alone as its own leader.
	Transport transport.Transport

	Clock    clock.Clock
	Location *time.Location
	Facility *clock.Facility
	Observer Observer
	Logger   Logger
}

// Controller coordinates one peer. All exported methods are safe for
// concurrent use.
//
// Handlers for timers and inbound messages hold mu only while they update
// state. Sends, subscriber deliveries and observer calls are collected in an
// effects value and run after mu is released, so a transport that delivers
// synchronously can call back into any controller without deadlocking.
type Controller struct {
	selfID    string
	cfg       Config
	clock     clock.Clock
	facility  *clock.Facility
	transport transport.Transport
	observer  Observer
	logger    Logger

	mu       sync.Mutex
	state    State
	enabled  bool
	leaderID string
	isLeader bool
	peers    *registry.Registry
	monitor  *heartbeat.Monitor
	drift    *drift.Detector
	latest   models.TimeUpdate
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Controller in the UNINITIALIZED state.
func New(p Params) *Controller {
	p.Config.Defaults()

	c := &Controller{
		selfID:    p.SelfID,
		cfg:       p.Config,
		clock:     p.Clock,
		facility:  p.Facility,
		transport: p.Transport,
		observer:  p.Observer,
		logger:    p.Logger,
		enabled:   true,
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.facility == nil {
		if c.clock == nil {
			c.clock = clock.System()
		}
		c.facility = clock.NewFacility(clock.FacilityParams{
			Clock:    c.clock,
			Interval: c.cfg.TickInterval,
			Location: p.Location,
			Logger:   c.logger,
		})
	} else if c.clock == nil {
		c.clock = c.facility.Clock()
	}
	c.facility.SetTickFunc(c.onLocalTick)

	now := c.clock.Now()
	c.peers = registry.New(c.selfID, now)
	c.monitor = heartbeat.New(c.peers, c.cfg.StaleThreshold)
	c.drift = drift.New(c.clock, c.cfg.DriftThreshold)
	return c
}

// Start leaves UNINITIALIZED. Without a transport the controller goes SOLO
// and leads immediately without sending anything. Otherwise it goes
// COORDINATING, announces itself with an ELECTION and starts the heartbeat
// and drift loops, which run until ctx is cancelled or Destroy is called.
func (c *Controller) Start(ctx context.Context) error {
	now := c.clock.Now()

	c.mu.Lock()
	switch c.state {
	case StateDestroyed:
		c.mu.Unlock()
		return ErrDestroyed
	case StateUninitialized:
	default:
		c.mu.Unlock()
		return ErrStarted
	}

	var fx effects
	c.drift.Reset()

	if c.transport == nil {
		c.setStateLocked(&fx, StateSolo, now)
		c.leadAloneLocked(&fx, now)
		c.logger.WarnW("no transport, running solo", "peer", c.selfID)
		c.mu.Unlock()
		c.apply(fx)
		return nil
	}

	c.setStateLocked(&fx, StateCoordinating, now)
	c.transport.OnMessage(c.handleMessage)
	if c.enabled {
		c.electLocked(&fx, now)
		fx.send(models.NewMessage(models.KindElection, c.selfID, now, nil))
	} else {
		c.leadAloneLocked(&fx, now)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(loopCtx)

	c.logger.InfoW("coordination started", "peer", c.selfID, "leader", c.leaderID)
	c.mu.Unlock()
	c.apply(fx)
	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	beat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer beat.Stop()
	check := time.NewTicker(c.cfg.DriftInterval)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-beat.C:
			c.heartbeatTick()
		case <-check.C:
			c.driftTick()
		}
	}
}

// Subscribe registers fn for time updates and returns an idempotent
// unsubscribe function.
func (c *Controller) Subscribe(fn clock.Subscriber) func() {
	return c.facility.Subscribe(fn)
}

// MonotonicTimestamp returns elapsed time on a clock that wall-clock
// adjustments do not move.
func (c *Controller) MonotonicTimestamp() time.Duration {
	return c.clock.Monotonic()
}

// Peers returns every known peer including self, sorted by id.
func (c *Controller) Peers() []models.PeerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers.Snapshot()
}

func (c *Controller) IsLeader() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLeader && c.state != StateDestroyed
}

// LeaderID returns the id of the peer this controller follows, or its own id
// when it leads.
func (c *Controller) LeaderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaderID
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state != StateSolo && c.state != StateCoordinating:
		return RoleNone
	case c.isLeader:
		return RoleLeader
	default:
		return RoleFollower
	}
}

func (c *Controller) SelfID() string { return c.selfID }

func (c *Controller) SyncEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Latest returns the most recent update delivered to subscribers, or the
// current local time if nothing has been delivered yet.
func (c *Controller) Latest() models.TimeUpdate {
	c.mu.Lock()
	u := c.latest
	c.mu.Unlock()
	if u.Instant.IsZero() {
		return c.facility.Update()
	}
	return u
}

// SetSyncEnabled isolates the peer when enabled is false: it leads for
// itself, sends nothing and ignores inbound messages. Re-enabling prunes
// peers that went stale in the meantime and rejoins the election.
func (c *Controller) SetSyncEnabled(enabled bool) {
	now := c.clock.Now()

	c.mu.Lock()
	if c.state == StateDestroyed || c.enabled == enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled

	var fx effects
	if c.state == StateCoordinating {
		if enabled {
			c.peers.Touch(c.selfID, now)
			removed, _ := c.monitor.Prune(now)
			for _, id := range removed {
				fx.event(c.eventLocked(models.EventPeerLost, now, id))
			}
			c.electLocked(&fx, now)
			fx.send(models.NewMessage(models.KindElection, c.selfID, now, nil))
		} else {
			c.leadAloneLocked(&fx, now)
		}
	}
	c.logger.InfoW("sync toggled", "peer", c.selfID, "enabled", enabled)
	c.mu.Unlock()
	c.apply(fx)
}

// Destroy cancels every loop, clears subscribers and closes the transport.
// It is safe to call more than once. Once it returns nothing is delivered
// to subscribers.
func (c *Controller) Destroy() {
	now := c.clock.Now()

	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return
	}
	var fx effects
	c.setStateLocked(&fx, StateDestroyed, now)
	c.isLeader = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.facility.Destroy()
	c.wg.Wait()

	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			c.logger.WarnW("closing transport failed", "peer", c.selfID, "error", err)
		}
	}
	c.apply(fx)
	c.logger.InfoW("coordination stopped", "peer", c.selfID)
}

// handleMessage processes one inbound message. Every message refreshes its
// sender; a first sighting is answered with an ELECTION so the newcomer
// learns about this peer without waiting for a heartbeat.
func (c *Controller) handleMessage(msg models.SyncMessage) {
	now := c.clock.Now()

	c.mu.Lock()
	if c.state != StateCoordinating || !c.enabled || msg.SenderID == c.selfID {
		c.mu.Unlock()
		return
	}

	var fx effects
	received := c.eventLocked(models.EventMessageRecv, now, msg.SenderID)
	received.MessageKind = msg.Kind
	fx.event(received)

	isNew := c.monitor.Observe(msg, now)
	if isNew {
		c.logger.InfoW("peer joined", "peer", c.selfID, "sender", msg.SenderID)
		fx.event(c.eventLocked(models.EventPeerJoined, now, msg.SenderID))
		fx.send(models.NewMessage(models.KindElection, c.selfID, now, nil))
	}
	if isNew || msg.Kind == models.KindElection {
		c.electLocked(&fx, now)
	}

	switch msg.Kind {
	case models.KindTimeSync:
		c.applyTimeSyncLocked(&fx, msg, now)
	case models.KindDrift:
		if !c.isLeader && msg.SenderID == c.leaderID {
			d, _ := msg.Drift()
			ev := c.eventLocked(models.EventDriftCorrected, now, msg.SenderID)
			ev.Drift = d
			ev.Detail = "leader"
			fx.event(ev)
			c.publishLocked(&fx, c.facility.Render(now))
		}
	}
	c.mu.Unlock()
	c.apply(fx)
}

// applyTimeSyncLocked turns a leader's TIME_SYNC into a local update when
// the estimated one-way latency is below the limit. The estimate is negative
// when the leader's clock is ahead of this peer's; such messages are applied.
func (c *Controller) applyTimeSyncLocked(fx *effects, msg models.SyncMessage, now time.Time) {
	if c.isLeader || msg.SenderID != c.leaderID {
		ev := c.eventLocked(models.EventSyncRejected, now, msg.SenderID)
		ev.Detail = "sender is not the leader"
		fx.event(ev)
		return
	}

	sent := msg.SentTime()
	latency := now.Sub(sent) / 2
	if latency >= c.cfg.MaxSyncLatency {
		c.logger.DebugW("skipping slow time sync", "peer", c.selfID, "leader", msg.SenderID, "latency", latency)
		ev := c.eventLocked(models.EventSyncRejected, now, msg.SenderID)
		ev.Latency = latency
		ev.Detail = "latency above limit"
		fx.event(ev)
		return
	}

	timeText, _ := msg.Text(models.PayloadCurrentTimeText)
	dateText, _ := msg.Text(models.PayloadCurrentDateText)
	u := models.TimeUpdate{
		CurrentTimeText: timeText,
		CurrentDateText: dateText,
		Instant:         sent.Add(latency),
	}
	ev := c.eventLocked(models.EventSyncApplied, now, msg.SenderID)
	ev.Latency = latency
	fx.event(ev)
	c.publishLocked(fx, u)
}

// onLocalTick runs on the facility's own tick, which only happens while
// this peer is authoritative. The leader piggy-backs TIME_SYNC on it.
func (c *Controller) onLocalTick(u models.TimeUpdate) {
	c.mu.Lock()
	if c.state == StateDestroyed {
		c.mu.Unlock()
		return
	}
	c.latest = u

	var fx effects
	if c.state == StateCoordinating && c.enabled && c.isLeader {
		fx.send(models.NewMessage(models.KindTimeSync, c.selfID, u.Instant, models.TimeSyncPayload(u)))
	}
	c.mu.Unlock()
	c.apply(fx)
}

// heartbeatTick prunes silent peers, re-elects when any were removed and
// announces this peer.
func (c *Controller) heartbeatTick() {
	now := c.clock.Now()

	c.mu.Lock()
	if c.state != StateCoordinating || !c.enabled {
		c.mu.Unlock()
		return
	}

	var fx effects
	removed, leaderLost := c.monitor.Prune(now)
	for _, id := range removed {
		fx.event(c.eventLocked(models.EventPeerLost, now, id))
	}
	if len(removed) > 0 {
		c.logger.InfoW("pruned stale peers", "peer", c.selfID, "removed", removed, "leader_lost", leaderLost)
		c.electLocked(&fx, now)
	}
	fx.send(c.monitor.Beat(now, c.isLeader))
	c.mu.Unlock()
	c.apply(fx)
}

// driftTick compares wall and monotonic progress since the last check. On
// drift every subscriber is redelivered the corrected time and, when
// leading, followers are told with a DRIFT message.
func (c *Controller) driftTick() {
	c.mu.Lock()
	if c.state != StateCoordinating {
		c.mu.Unlock()
		return
	}

	_, d, detected := c.drift.Check()
	if !detected {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	var fx effects
	ev := c.eventLocked(models.EventDriftCorrected, now, c.selfID)
	ev.Drift = d
	ev.Detail = "local"
	fx.event(ev)
	c.publishLocked(&fx, c.facility.Render(now))
	if c.isLeader && c.enabled {
		fx.send(models.NewMessage(models.KindDrift, c.selfID, now, models.DriftPayload(d)))
	}
	c.logger.WarnW("clock drift detected", "peer", c.selfID, "drift", d, "leader", c.isLeader)
	c.mu.Unlock()
	c.apply(fx)
}

// electLocked re-runs the election over the registry and applies the
// outcome: registry leader flags, the facility's authority and events.
func (c *Controller) electLocked(fx *effects, now time.Time) {
	out := election.Run(c.selfID, c.leaderID, c.peers.IDs())
	c.setLeaderLocked(fx, out.Leader, now)
	if out.Became() {
		c.logger.InfoW("became leader", "peer", c.selfID)
	} else if out.Lost() {
		c.logger.InfoW("following leader", "peer", c.selfID, "leader", out.Leader)
	}
}

func (c *Controller) leadAloneLocked(fx *effects, now time.Time) {
	c.setLeaderLocked(fx, c.selfID, now)
}

func (c *Controller) setLeaderLocked(fx *effects, leader string, now time.Time) {
	previous := c.leaderID
	c.leaderID = leader
	c.isLeader = leader == c.selfID
	c.peers.SetLeader(leader)
	c.facility.SetAuthoritative(c.isLeader)

	if leader != previous {
		ev := c.eventLocked(models.EventLeaderChanged, now, c.selfID)
		ev.Detail = previous
		fx.event(ev)
	}
}

func (c *Controller) setStateLocked(fx *effects, s State, now time.Time) {
	if c.state == s {
		return
	}
	c.state = s
	ev := c.eventLocked(models.EventStateChanged, now, c.selfID)
	ev.Detail = s.String()
	fx.event(ev)
}

func (c *Controller) publishLocked(fx *effects, u models.TimeUpdate) {
	c.latest = u
	fx.publish(u)
}

func (c *Controller) eventLocked(kind models.EventKind, now time.Time, peerID string) models.SyncEvent {
	return models.SyncEvent{
		Kind:       kind,
		PeerID:     peerID,
		LeaderID:   c.leaderID,
		IsLeader:   c.isLeader,
		Peers:      c.peers.Len(),
		OccurredAt: now,
	}
}

func (c *Controller) destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateDestroyed
}

// effects are the side effects of one handler, run after mu is released.
type effects struct {
	events  []models.SyncEvent
	updates []models.TimeUpdate
	sends   []models.SyncMessage
}

func (fx *effects) event(ev models.SyncEvent)   { fx.events = append(fx.events, ev) }
func (fx *effects) publish(u models.TimeUpdate) { fx.updates = append(fx.updates, u) }
func (fx *effects) send(msg models.SyncMessage) { fx.sends = append(fx.sends, msg) }

func (c *Controller) apply(fx effects) {
	for _, ev := range fx.events {
		c.observer.Observe(ev)
	}
	for _, u := range fx.updates {
		c.facility.Publish(u)
	}
	for _, msg := range fx.sends {
		c.send(msg)
	}
}

// send broadcasts msg. Failures are logged and reported, never returned:
// a peer whose sends fail looks stale to the others and the next election
// settles it.
func (c *Controller) send(msg models.SyncMessage) {
	if c.transport == nil || c.destroyed() {
		return
	}

	err := c.transport.Send(msg)

	c.mu.Lock()
	ev := c.eventLocked(models.EventMessageSent, c.clock.Now(), c.selfID)
	c.mu.Unlock()
	ev.MessageKind = msg.Kind

	if err != nil {
		c.logger.WarnW("send failed", "peer", c.selfID, "kind", msg.Kind, "error", err)
		ev.Kind = models.EventSendFailed
		ev.Detail = err.Error()
	}
	c.observer.Observe(ev)
}
