package ingestor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tramboard/internal/domain"
	"tramboard/internal/store"
	"tramboard/pkg/transportrest"
)

// ErrQueueFull is returned by Refresh when the event queue cannot take
// another request.
var ErrQueueFull = errors.New("refresh queue full")

type Fetcher interface {
	Departures(ctx context.Context, q transportrest.Query) ([]domain.Departure, error)
}

type Broadcaster interface {
	Broadcast(state domain.BoardState)
}

// SnapshotSink receives every applied successful snapshot.
type SnapshotSink interface {
	Save(ctx context.Context, snapshot domain.Snapshot) error
}

type Options struct {
	Query         transportrest.Query
	FetchInterval time.Duration
	ClockInterval time.Duration
	SinkTimeout   time.Duration
	Now           func() time.Time
}

type eventKind int

const (
	eventFetchDue eventKind = iota
	eventFetchDone
	eventClockTick
)

type event struct {
	kind       eventKind
	reason     string
	seq        uint64
	departures []domain.Departure
	err        error
	at         time.Time
}

// Ingestor drives the board: it polls the upstream on an interval and on
// demand, and advances the clock reference. All state changes happen in
// handle, on the goroutine running Run.
type Ingestor struct {
	fetcher     Fetcher
	store       *store.Store
	broadcaster Broadcaster
	sink        SnapshotSink
	opts        Options
	logger      *slog.Logger

	events chan event

	// owned by the Run goroutine
	nextSeq    uint64
	appliedSeq uint64
	inFlight   int

	issued    atomic.Int64
	discarded atomic.Int64
}

func New(fetcher Fetcher, store *store.Store, broadcaster Broadcaster, sink SnapshotSink, opts Options, logger *slog.Logger) *Ingestor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 5 * time.Second
	}
	return &Ingestor{
		fetcher:     fetcher,
		store:       store,
		broadcaster: broadcaster,
		sink:        sink,
		opts:        opts,
		logger:      logger.With("component", "ingestor"),
		events:      make(chan event, 64),
	}
}

// Run fetches immediately and then blocks until ctx is cancelled. Results of
// fetches still in flight at that point are dropped.
func (i *Ingestor) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	var sched scheduler
	var workers sync.WaitGroup
	defer func() {
		cancel()
		sched.wait()
		workers.Wait()
	}()

	sched.every(ctx, i.opts.FetchInterval, func() {
		i.post(ctx, event{kind: eventFetchDue, reason: "interval"})
	})
	sched.every(ctx, i.opts.ClockInterval, func() {
		i.post(ctx, event{kind: eventClockTick, at: i.opts.Now()})
	})

	i.startFetch(ctx, &workers, "start")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-i.events:
			if ctx.Err() != nil {
				return
			}
			i.handle(ctx, &workers, ev)
		}
	}
}

// Refresh requests an immediate fetch. It does not wait for the result.
func (i *Ingestor) Refresh(reason string) error {
	select {
	case i.events <- event{kind: eventFetchDue, reason: reason}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (i *Ingestor) post(ctx context.Context, ev event) {
	select {
	case i.events <- ev:
	case <-ctx.Done():
	}
}

func (i *Ingestor) handle(ctx context.Context, workers *sync.WaitGroup, ev event) {
	switch ev.kind {
	case eventFetchDue:
		i.startFetch(ctx, workers, ev.reason)
	case eventFetchDone:
		i.applyFetch(ctx, workers, ev)
	case eventClockTick:
		i.publish(i.store.Tick(ev.at))
	}
}

func (i *Ingestor) startFetch(ctx context.Context, workers *sync.WaitGroup, reason string) {
	i.nextSeq++
	seq := i.nextSeq
	i.inFlight++
	i.issued.Add(1)

	i.logger.Debug("fetch started", "seq", seq, "reason", reason, "in_flight", i.inFlight)
	if i.inFlight == 1 {
		i.publish(i.store.SetRefreshing(true))
	}

	workers.Add(1)
	go func() {
		defer workers.Done()
		departures, err := i.fetcher.Departures(ctx, i.opts.Query)
		i.post(ctx, event{
			kind:       eventFetchDone,
			seq:        seq,
			departures: departures,
			err:        err,
			at:         i.opts.Now(),
		})
	}()
}

func (i *Ingestor) applyFetch(ctx context.Context, workers *sync.WaitGroup, ev event) {
	i.inFlight--
	refreshing := i.inFlight > 0

	if ev.seq <= i.appliedSeq {
		i.discarded.Add(1)
		i.logger.Debug("discarding stale fetch result", "seq", ev.seq, "applied_seq", i.appliedSeq)
		if !refreshing {
			i.publish(i.store.SetRefreshing(false))
		}
		return
	}
	i.appliedSeq = ev.seq
	i.store.SetRefreshing(refreshing)

	if ev.err != nil {
		i.logger.Error("failed to fetch departures", "seq", ev.seq, "error", ev.err)
		i.publish(i.store.SetFailed(domain.FetchFailedMessage))
		return
	}

	wasLoading := i.store.Status() == domain.StatusLoading
	state := i.store.SetSnapshot(ev.departures, ev.at)
	if wasLoading {
		i.logger.Info("ingestor ready", "departures", len(ev.departures))
	}
	i.logger.Debug("fetch applied", "seq", ev.seq, "departures", len(ev.departures))
	i.publish(state)

	if i.sink != nil {
		i.save(ctx, workers, domain.Snapshot{
			StopID:     i.opts.Query.StopID,
			Departures: state.Departures,
			FetchedAt:  ev.at,
		})
	}
}

func (i *Ingestor) save(ctx context.Context, workers *sync.WaitGroup, snapshot domain.Snapshot) {
	workers.Add(1)
	go func() {
		defer workers.Done()
		saveCtx, cancel := context.WithTimeout(ctx, i.opts.SinkTimeout)
		defer cancel()
		if err := i.sink.Save(saveCtx, snapshot); err != nil {
			i.logger.Warn("failed to save snapshot", "error", err)
		}
	}()
}

func (i *Ingestor) publish(state domain.BoardState) {
	if i.broadcaster != nil {
		i.broadcaster.Broadcast(state)
	}
}

// IsReady reports whether the first fetch has completed, either way.
func (i *Ingestor) IsReady() bool {
	return i.store.Status() != domain.StatusLoading
}

// Issued is the number of fetches started.
func (i *Ingestor) Issued() int64 {
	return i.issued.Load()
}

// Discarded is the number of fetch results dropped because a newer one had
// already been applied.
func (i *Ingestor) Discarded() int64 {
	return i.discarded.Load()
}
