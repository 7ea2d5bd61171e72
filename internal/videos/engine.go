package videos

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"caption-backend/internal/shared/metrics"
	"caption-backend/internal/shared/telemetry"
)

// Source turns an item's stored bytes into the base64 form sent to the model.
type Source interface {
	Encode(ctx context.Context, item Item) (string, error)
}

// Request is handed to the Analyzer once the source has been read.
type Request struct {
	Item          Item
	Data          string
	CaptionLength *int
	Credential    string
}

// Analyzer performs the remote analysis for one item.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*AnalysisResult, error)
}

// Releaser frees the preview handle and stored bytes of a removed item.
type Releaser interface {
	Release(ctx context.Context, item Item) error
}

// ReleaseFunc adapts a function to Releaser.
type ReleaseFunc func(ctx context.Context, item Item) error

func (f ReleaseFunc) Release(ctx context.Context, item Item) error { return f(ctx, item) }

// Observer receives every status transition. Observers run synchronously, in
// transition order, and must not call back into the Engine.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) { f(ctx, t) }

// Transition describes one status change of one item.
type Transition struct {
	RunID         string
	SessionID     string
	Item          Item
	From          Status
	To            Status
	CaptionLength *int
	FailureCode   string
	Cause         error
	// Discarded is set when a run resolved after its item was removed.
	Discarded bool
	Duration  time.Duration
	At        time.Time
}

// Config wires an Engine to its collaborators.
type Config struct {
	Source    Source
	Analyzer  Analyzer
	Releaser  Releaser
	Observers []Observer
	// Timeout bounds a single run; zero means no bound.
	Timeout  time.Duration
	MaxItems int
	Now      func() time.Time
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	Items         []Item `json:"items"`
	SelectedID    string `json:"selectedId,omitempty"`
	CaptionLength *int   `json:"maxLength"`
	InFlightID    string `json:"-"`
}

// Engine owns one ordered queue and analyses its items one at a time, in insertion order.
type Engine struct {
	sessionID string
	cfg       Config
	ctx       context.Context
	cancel    context.CancelFunc

	emitMu sync.Mutex

	mu            sync.Mutex
	items         []Item
	inFlight      string
	selected      string
	captionLength *int
	credential    string
	closed        bool
	changed       chan struct{}
	pending       []Transition
}

// NewEngine builds an idle engine.
func NewEngine(sessionID string, cfg Config) *Engine {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = MaxItems
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		sessionID: sessionID,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		changed:   make(chan struct{}),
	}
}

// Enqueue appends items in order and starts the next analysis if the slot is free.
// The first new item becomes selected when nothing is selected.
func (e *Engine) Enqueue(items ...Item) error {
	if len(items) == 0 {
		return nil
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if len(e.items)+len(items) > e.cfg.MaxItems {
		e.mu.Unlock()
		return ErrQueueFull
	}
	now := e.cfg.Now()
	for _, it := range items {
		it.Status = StatusQueued
		it.Stage = ""
		it.Result = nil
		it.FailureReason = ""
		it.FailureCode = ""
		it.StartedAt = nil
		it.CompletedAt = nil
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		e.items = append(e.items, it)
	}
	if e.selected == "" {
		e.selected = items[0].ID
	}
	e.advance()
	e.notify()
	e.unlockAndEmit()
	return nil
}

// Remove deletes an item in any status and releases its resources. Removing the
// analyzing item does not cancel its call; the slot stays busy until it resolves.
func (e *Engine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	idx := e.indexOf(id)
	if idx < 0 {
		e.mu.Unlock()
		return ErrNotFound
	}
	item := e.items[idx]
	e.items = slices.Delete(e.items, idx, idx+1)
	if e.selected == id {
		e.selected = ""
		if len(e.items) > 0 {
			e.selected = e.items[0].ID
		}
	}
	e.advance()
	e.notify()
	e.unlockAndEmit()

	if e.cfg.Releaser != nil {
		if err := e.cfg.Releaser.Release(ctx, item); err != nil {
			telemetry.Warn("video.release_failed", map[string]any{
				"session_id": e.sessionID,
				"video_id":   item.ID,
				"err":        err,
			})
		}
	}
	return nil
}

// Select moves the cursor to id, or clears it when id is empty.
func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != "" && e.indexOf(id) < 0 {
		return ErrNotFound
	}
	e.selected = id
	e.notify()
	return nil
}

// SetCaptionLength changes the preference read by future dispatches; nil clears it.
func (e *Engine) SetCaptionLength(n *int) error {
	if n != nil && *n <= 0 {
		return ErrInvalidCaptionLength
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.captionLength = copyInt(n)
	e.notify()
	return nil
}

// SetCredential sets the pass-through credential used by future dispatches.
func (e *Engine) SetCredential(credential string) {
	e.mu.Lock()
	e.credential = credential
	e.mu.Unlock()
}

// Len returns the number of items currently queued in any status.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Snapshot returns a copy of the queue, the cursor and the preference.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Items:         slices.Clone(e.items),
		SelectedID:    e.selected,
		CaptionLength: copyInt(e.captionLength),
		InFlightID:    e.inFlight,
	}
}

// View projects the current state.
func (e *Engine) View() View {
	snap := e.Snapshot()
	return Project(snap.Items, snap.SelectedID)
}

// WaitIdle blocks until no run is outstanding and nothing is queued.
func (e *Engine) WaitIdle(ctx context.Context) error {
	for {
		e.mu.Lock()
		idle := e.inFlight == "" && e.indexOfFirst(StatusQueued) < 0
		ch := e.changed
		e.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Close drops every item, releases their resources and discards late results.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	items := e.items
	e.items = nil
	e.selected = ""
	e.notify()
	e.mu.Unlock()
	e.cancel()

	var result *multierror.Error
	if e.cfg.Releaser != nil {
		for _, item := range items {
			if err := e.cfg.Releaser.Release(ctx, item); err != nil {
				result = multierror.Append(result, fmt.Errorf("release %s: %w", item.ID, err))
			}
		}
	}
	return result.ErrorOrNil()
}

// advance is the single-flight transition; callers hold e.mu.
func (e *Engine) advance() {
	if e.closed || e.inFlight != "" {
		return
	}
	idx := e.indexOfFirst(StatusQueued)
	if idx < 0 {
		return
	}
	now := e.cfg.Now()
	item := &e.items[idx]
	item.Status = StatusAnalyzing
	item.Stage = StageReading
	item.StartedAt = &now
	e.inFlight = item.ID

	runID := uuid.NewString()
	pref := copyInt(e.captionLength)
	dispatched := *item
	e.record(Transition{
		RunID:         runID,
		Item:          dispatched,
		From:          StatusQueued,
		To:            StatusAnalyzing,
		CaptionLength: pref,
		At:            now,
	})
	go e.run(runID, dispatched, pref, e.credential)
}

func (e *Engine) run(runID string, item Item, pref *int, credential string) {
	ctx := e.ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	result, err := e.execute(ctx, item, pref, credential)
	e.finish(runID, item, pref, result, err)
}

func (e *Engine) execute(ctx context.Context, item Item, pref *int, credential string) (result *AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	data, err := e.cfg.Source.Encode(ctx, item)
	if err != nil {
		return nil, err
	}
	if !e.markRequesting(item.ID) {
		return nil, errRemovedBeforeDispatch
	}
	return e.cfg.Analyzer.Analyze(ctx, Request{
		Item:          item,
		Data:          data,
		CaptionLength: pref,
		Credential:    credential,
	})
}

func (e *Engine) markRequesting(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexOf(id)
	if e.closed || idx < 0 {
		return false
	}
	e.items[idx].Stage = StageRequesting
	e.notify()
	return true
}

func (e *Engine) finish(runID string, dispatched Item, pref *int, result *AnalysisResult, err error) {
	e.mu.Lock()
	now := e.cfg.Now()
	e.inFlight = ""

	to := StatusComplete
	if err == nil && result == nil {
		err = ErrInvalidResult
	}
	if err != nil {
		to = StatusError
	}
	t := Transition{
		RunID:         runID,
		From:          StatusAnalyzing,
		To:            to,
		CaptionLength: pref,
		Cause:         err,
		At:            now,
	}
	if dispatched.StartedAt != nil {
		t.Duration = now.Sub(*dispatched.StartedAt)
	}
	if to == StatusError {
		t.FailureCode = classifyFailure(err)
	}

	idx := e.indexOf(dispatched.ID)
	if e.closed || idx < 0 {
		t.Item = dispatched
		t.Discarded = true
	} else {
		item := &e.items[idx]
		item.Stage = ""
		item.CompletedAt = &now
		if to == StatusComplete {
			item.Status = StatusComplete
			item.Result = result
		} else {
			item.Status = StatusError
			item.FailureReason = FailureReason
			item.FailureCode = t.FailureCode
		}
		t.Item = *item
	}
	e.record(t)
	e.advance()
	e.notify()
	e.unlockAndEmit()
}

func (e *Engine) record(t Transition) {
	t.SessionID = e.sessionID
	e.pending = append(e.pending, t)
}

func (e *Engine) notify() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// unlockAndEmit releases e.mu and delivers pending transitions. emitMu is taken
// before e.mu is released so batches are delivered in the order they were recorded.
func (e *Engine) unlockAndEmit() {
	batch := e.pending
	e.pending = nil
	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()

	ctx := context.WithoutCancel(e.ctx)
	for _, t := range batch {
		e.logTransition(t)
		for _, o := range e.cfg.Observers {
			o.OnTransition(ctx, t)
		}
	}
}

func (e *Engine) logTransition(t Transition) {
	fields := map[string]any{
		"session_id":        t.SessionID,
		"video_id":          t.Item.ID,
		"run_id":            t.RunID,
		"file_name":         t.Item.FileName,
		"status":            t.To,
		"status_transition": string(t.From) + "->" + string(t.To),
	}
	if t.CaptionLength != nil {
		fields["caption_length"] = *t.CaptionLength
	}
	switch {
	case t.Discarded:
		metrics.IncAnalysisDiscarded()
		fields["discarded"] = true
		fields["duration_ms"] = durationMs(t.Duration)
		telemetry.Info("video.result_discarded", fields)
		return
	case t.To == StatusAnalyzing:
		metrics.IncAnalysisStarted()
	case t.To == StatusComplete:
		metrics.IncAnalysisCompleted()
		metrics.ObserveAnalysisDurationMs(durationMs(t.Duration))
		fields["duration_ms"] = durationMs(t.Duration)
	case t.To == StatusError:
		metrics.IncAnalysisFailed()
		metrics.ObserveAnalysisDurationMs(durationMs(t.Duration))
		fields["duration_ms"] = durationMs(t.Duration)
		fields["failure_code"] = t.FailureCode
		fields["error"] = sanitizeError(t.Cause)
		telemetry.Warn("video.status", fields)
		return
	}
	telemetry.Info("video.status", fields)
}

func (e *Engine) indexOf(id string) int {
	for i := range e.items {
		if e.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) indexOfFirst(status Status) int {
	for i := range e.items {
		if e.items[i].Status == status {
			return i
		}
	}
	return -1
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
