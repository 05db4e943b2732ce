package authflow

import (
	"context"
	"sync"
	"time"
)

// Authenticator runs the authentication flow hierarchy. Events and handler
// results are applied one at a time on a single loop goroutine; handler
// calls run on their own goroutines and report back through the mailbox.
type Authenticator struct {
	handlers     Handlers
	overrides    *HandlerOverrides
	initialRoute Route
	logger       Logger
	activity     ActivitySink
	now          func() time.Time
	onSignIn     func(HubPayload)
	onSignOut    func()

	sup *supervisor

	// loop owned
	runCtx      context.Context
	childGen    uint64
	childCtx    context.Context
	childCancel context.CancelFunc

	mu      sync.Mutex
	queue   []any
	wake    chan struct{}
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	hubMu sync.Mutex
	hubs  map[Hub]struct{}

	subMu   sync.RWMutex
	snap    Snapshot
	version uint64
	subs    map[uint64]func(Snapshot)
	nextSub uint64
}

// New builds an Authenticator over handlers. A nil handlers value rejects
// every operation with ErrNoUserPool.
func New(handlers Handlers, opts ...Option) *Authenticator {
	a := &Authenticator{
		handlers:     handlers,
		initialRoute: RouteSignIn,
		activity:     noopActivitySink{},
		now:          time.Now,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		subs:         map[uint64]func(Snapshot){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.logger == nil {
		a.logger = defaultLogger("authflow")
	}
	if a.handlers == nil {
		a.handlers = UnconfiguredHandlers()
	}
	if a.overrides != nil {
		a.handlers = a.overrides.Apply(a.handlers)
	}
	a.sup = newSupervisor(a.initialRoute)
	a.snap = Snapshot{InitialRoute: a.initialRoute}
	return a
}

// Start launches the loop. The authenticator stops when ctx is cancelled
// or Stop is called. Calling Start twice is a no-op.
func (a *Authenticator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrStopped
	}
	if a.started {
		return nil
	}
	a.started = true
	a.runCtx, a.cancel = context.WithCancel(ctx)
	go a.loop()
	return nil
}

// Stop cancels in-flight handler calls and waits for the loop to exit.
func (a *Authenticator) Stop() {
	a.mu.Lock()
	if !a.started {
		if !a.stopped {
			a.stopped = true
			close(a.done)
		}
		a.mu.Unlock()
		return
	}
	if a.stopped {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.stopped = true
	cancel := a.cancel
	a.mu.Unlock()

	cancel()
	<-a.done
}

// Done is closed once the loop has exited.
func (a *Authenticator) Done() <-chan struct{} { return a.done }

// Send queues ev for the loop.
func (a *Authenticator) Send(ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.stopped:
		return ErrStopped
	case !a.started:
		return ErrNotStarted
	}
	a.queue = append(a.queue, ev)
	a.signal()
	return nil
}

// Snapshot returns the last published state.
func (a *Authenticator) Snapshot() Snapshot {
	a.subMu.RLock()
	defer a.subMu.RUnlock()
	return a.snap
}

// Subscribe registers fn for every published snapshot. fn runs on the loop
// goroutine and must not block; it may call Send.
func (a *Authenticator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	a.subMu.Lock()
	a.nextSub++
	id := a.nextSub
	a.subs[id] = fn
	a.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, id)
			a.subMu.Unlock()
		})
	}
}

// WaitFor blocks until a published snapshot satisfies pred.
func (a *Authenticator) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	unsubscribe := a.Subscribe(func(s Snapshot) {
		if pred(s) {
			select {
			case ch <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if s := a.Snapshot(); pred(s) {
		return s, nil
	}
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return a.Snapshot(), ctx.Err()
	case <-a.done:
		return a.Snapshot(), ErrStopped
	}
}

func (a *Authenticator) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Authenticator) post(msg any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.queue = append(a.queue, msg)
	a.signal()
}

func (a *Authenticator) dequeue() (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return nil, false
	}
	msg := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	return msg, true
}

func (a *Authenticator) loop() {
	defer close(a.done)
	defer a.cancelChild()

	a.sup.start()
	a.flush()

	for {
		select {
		case <-a.runCtx.Done():
			a.mu.Lock()
			a.stopped = true
			a.mu.Unlock()
			return
		case <-a.wake:
		}
		for {
			msg, ok := a.dequeue()
			if !ok {
				break
			}
			a.handle(msg)
		}
	}
}

func (a *Authenticator) handle(msg any) {
	switch m := msg.(type) {
	case Event:
		before := a.sup.state
		if !a.sup.send(m) {
			a.logger.Debug("event ignored", "event", m.Type, "state", before)
			return
		}
		if before != a.sup.state {
			a.logger.Debug("authenticator transition", "event", m.Type, "from", before, "to", a.sup.state)
		}
	case invokeResult:
		if !a.sup.settle(m) {
			a.logger.Debug("dropped stale result", "operation", m.op, "flow", m.flow)
			return
		}
		if m.err != nil {
			a.logger.Info("handler failed", "operation", m.op, "flow", m.flow, "error_name", ErrorName(m.err), "error", m.err)
			a.recordActivity(ActivityEvent{
				EventType:  ActivityEventOperationFailed,
				Flow:       m.flow,
				Operation:  m.op,
				ErrorName:  ErrorName(m.err),
				OccurredAt: a.now(),
			})
		}
	default:
		return
	}
	a.flush()
}

// flush runs scheduled work and publishes the new snapshot.
func (a *Authenticator) flush() {
	a.syncChildContext()
	for _, inv := range a.sup.takeInvokes() {
		a.run(inv)
	}
	for _, rec := range a.sup.takeActivity() {
		a.recordActivity(rec.event(a.now()))
	}
	a.publish()
}

func (a *Authenticator) run(inv scheduledInvoke) {
	ctx := a.runCtx
	if inv.owner == ownerChild {
		ctx = a.childCtx
	}
	go func() {
		out, err := inv.run(ctx, a.handlers)
		a.post(invokeResult{
			owner:  inv.owner,
			gen:    inv.gen,
			seq:    inv.seq,
			op:     inv.op,
			flow:   inv.flow,
			output: out,
			err:    err,
		})
	}()
}

// syncChildContext cancels calls made by a child that has been replaced.
func (a *Authenticator) syncChildContext() {
	if a.sup.child != nil && a.childGen == a.sup.childGen && a.childCtx != nil {
		return
	}
	a.cancelChild()
	if a.sup.child == nil {
		return
	}
	a.childGen = a.sup.childGen
	a.childCtx, a.childCancel = context.WithCancel(a.runCtx)
}

func (a *Authenticator) cancelChild() {
	if a.childCancel != nil {
		a.childCancel()
	}
	a.childCtx, a.childCancel = nil, nil
}

func (a *Authenticator) recordActivity(ev ActivityEvent) {
	if err := a.activity.Record(a.runCtx, ev); err != nil {
		a.logger.Warn("activity sink error", "error", err, "event", ev.EventType)
	}
}

func (a *Authenticator) publish() {
	snap := a.sup.snapshot()

	a.subMu.Lock()
	a.version++
	snap.Version = a.version
	a.snap = snap
	subs := make([]func(Snapshot), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
