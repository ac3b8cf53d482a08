package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Provider runs code remotely and returns its textual output.
type Provider interface {
	Execute(ctx context.Context, language, version, code string) (string, error)
}

// Broker forwards run requests to the execution provider off the event path.
//
// By default runs are not limited per room: overlapping requests are each
// forwarded and each result is broadcast when it lands, so outputs from two
// runs may interleave. With singleFlight set, a room accepts one outstanding
// run at a time and rejects the rest with ExecBusy.
type Broker struct {
	provider     Provider
	fabric       *Fabric
	timeout      time.Duration
	singleFlight bool
	log          *logrus.Entry

	mu       sync.Mutex
	inflight map[string]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBroker(provider Provider, fabric *Fabric, cfg *Config, log *logrus.Logger) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		provider:     provider,
		fabric:       fabric,
		timeout:      cfg.ExecTimeout,
		singleFlight: cfg.ExecSingleFlight,
		log:          log.WithField("component", "broker"),
		inflight:     make(map[string]int),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Submit starts a run in the background. Failures go back to requester
// only; success is broadcast by Run.
func (b *Broker) Submit(requester *Conn, roomID string, req CompilePayload) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if _, err := b.Run(b.ctx, roomID, req); err != nil {
			requester.Send(errorEvent(EventCompileCode, err))
		}
	}()
}

// Run executes req and, on success, sends codeResponse to every member of
// roomID. It holds no room lock while the provider call is outstanding.
func (b *Broker) Run(ctx context.Context, roomID string, req CompilePayload) (string, error) {
	if !b.acquire(roomID) {
		runsTotal.WithLabelValues(string(ExecBusy)).Inc()
		return "", execErr(ExecBusy, errors.New("a run is already in progress for this room"))
	}
	defer b.release(roomID)

	log := b.log.WithFields(logrus.Fields{
		"room_id":  roomID,
		"language": req.Language,
		"version":  req.Version,
	})

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := b.provider.Execute(ctx, req.Language, req.Version, req.Code)
	runDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		ee := classify(ctx, err)
		runsTotal.WithLabelValues(string(ee.Kind)).Inc()
		log.WithError(err).WithField("kind", ee.Kind).Warn("run failed")
		return "", ee
	}

	runsTotal.WithLabelValues("ok").Inc()
	n := b.fabric.Broadcast(roomID, EventCodeResponse, CodeResponsePayload{Output: output}, "")
	log.WithFields(logrus.Fields{
		"receivers": n,
		"elapsed":   time.Since(start).String(),
	}).Info("run completed")
	return output, nil
}

// Shutdown cancels outstanding runs and waits for them to report.
func (b *Broker) Shutdown() {
	b.cancel()
	b.wg.Wait()
}

func (b *Broker) acquire(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.singleFlight && b.inflight[roomID] > 0 {
		return false
	}
	b.inflight[roomID]++
	return true
}

func (b *Broker) release(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inflight[roomID] <= 1 {
		delete(b.inflight, roomID)
		return
	}
	b.inflight[roomID]--
}

// classify maps any provider error onto the execution error taxonomy.
func classify(ctx context.Context, err error) *ExecutionError {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return execErr(ExecTimeout, err)
	}
	return execErr(ExecProviderFailure, err)
}
