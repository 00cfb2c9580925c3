package extraction_job

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Snapshot is a read-only copy of the controller's job, handed to subscribers
// after every change.
type Snapshot struct {
	Seq         uint64
	JobID       string
	Stage       Stage
	HasDocument bool
	Filename    string
	Hint        string
	Result      *Result
	Err         *JobError
	Stats       *Stats
	StartedAt   time.Time
	EndedAt     time.Time
}

type jobState struct {
	id        string
	stage     Stage
	hint      string
	startedAt time.Time
	endedAt   time.Time
	result    *Result
	err       *JobError
	stats     *Stats
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Controller drives a single document through the extraction service.
//
// It owns one job slot: StartExtraction fails fast while a job is running.
// All state lives behind mu; subscribers are called without mu held, in the
// order the changes happened.
type Controller struct {
	transport Transport
	logger    *zap.Logger
	now       func() time.Time
	afterFunc AfterFunc
	hints     []HintStep
	maxSize   int64

	mu     sync.Mutex
	doc    *Document
	job    jobState
	token  uint64
	timers hintTimers
	cancel context.CancelFunc

	seq       uint64
	delivered uint64
	drained   *sync.Cond
	subs      []subscriber
	nextSubID int
	pending   []Snapshot
	flushing  bool
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock replaces time.Now for start/end timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithHintSchedule replaces DefaultHints. A nil or empty schedule disables hints.
func WithHintSchedule(steps []HintStep) Option {
	return func(c *Controller) { c.hints = steps }
}

func WithAfterFunc(f AfterFunc) Option {
	return func(c *Controller) { c.afterFunc = f }
}

// WithMaxDocumentSize sets the upper bound enforced by SetDocument; 0 disables it.
func WithMaxDocumentSize(n int64) Option {
	return func(c *Controller) { c.maxSize = n }
}

func NewController(transport Transport, opts ...Option) *Controller {
	c := &Controller{
		transport: transport,
		logger:    zap.NewNop(),
		now:       time.Now,
		afterFunc: realAfterFunc,
		hints:     DefaultHints,
		maxSize:   DefaultMaxDocumentSize,
	}
	c.drained = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDocument stores the document for the next job. A previous finished job
// is discarded. An invalid document is rejected and also clears whatever
// document was stored before.
func (c *Controller) SetDocument(doc *Document) error {
	c.mu.Lock()
	if c.job.stage.Active() {
		c.mu.Unlock()
		return newJobError(KindInvalidState, "cannot change the document while an extraction is running", nil)
	}
	if verr := doc.validate(c.maxSize); verr != nil {
		c.doc = nil
		c.commitLocked()
		c.mu.Unlock()
		c.flush()
		c.logger.Info("extract.document.rejected", zap.String("reason", verr.Message))
		return verr
	}

	stored := *doc
	stored.Data = bytes.Clone(doc.Data)
	c.doc = &stored
	c.job = jobState{}
	c.commitLocked()
	c.mu.Unlock()
	c.flush()
	return nil
}

// StartExtraction submits the stored document and blocks until the job is
// finished and every subscriber has seen its terminal snapshot. Job failures
// are reported through the job state; the returned error is only non-nil when
// the job could not be started at all. It must not be called from a subscriber.
func (c *Controller) StartExtraction(ctx context.Context) error {
	c.mu.Lock()
	if c.job.stage.Active() {
		c.mu.Unlock()
		return newJobError(KindInvalidState, "an extraction job is already in progress", nil)
	}
	if c.doc == nil {
		c.mu.Unlock()
		return newJobError(KindValidation, "Please upload a PDF file first.", nil)
	}
	doc := c.doc
	token := c.beginLocked()
	jobID := c.job.id
	jobCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	c.flush()
	defer cancel()

	c.logger.Info("extract.job.started",
		zap.String("job_id", jobID),
		zap.String("file", doc.Filename),
		zap.Int("bytes", len(doc.Data)),
	)

	resp, err := c.transport.Submit(jobCtx, doc, func() { c.markSent(token) })
	if err != nil {
		c.fail(token, err)
	} else {
		c.resolve(token, resp)
	}
	c.waitDelivered()
	return nil
}

// waitDelivered blocks until everything committed so far has reached the
// subscribers, which may be happening on another goroutine.
func (c *Controller) waitDelivered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.seq
	for c.delivered < target {
		c.drained.Wait()
	}
}

// Cancel ends the running job as Failed/Cancelled and aborts its request.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if !c.job.stage.Active() {
		c.mu.Unlock()
		return newJobError(KindInvalidState, "no extraction job is running", nil)
	}
	cancel := c.cancel
	c.finishLocked(StageFailed, ModeUnknown)
	c.job.err = newJobError(KindCancelled, MsgCancelled, context.Canceled)
	c.commitLocked()
	jobID := c.job.id
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.flush()
	c.logger.Info("extract.job.cancelled", zap.String("job_id", jobID))
	return nil
}

// Reset returns a finished controller to Idle, dropping the document and the
// job outcome.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if !c.job.stage.Terminal() {
		c.mu.Unlock()
		return newJobError(KindInvalidState, "only a finished job can be reset", nil)
	}
	c.doc = nil
	c.job = jobState{}
	c.commitLocked()
	c.mu.Unlock()
	c.flush()
	return nil
}

// Subscribe registers fn for every future change. The returned func removes it.
// A panicking subscriber is logged and does not stop delivery to the others.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// beginLocked opens a new job and schedules its hints. Each hint callback
// carries the job's token so it can tell whether it is still wanted.
func (c *Controller) beginLocked() uint64 {
	c.token++
	token := c.token
	c.job = jobState{
		id:        uuid.NewString(),
		stage:     StageSubmitting,
		startedAt: c.now(),
	}
	c.timers = hintTimers{}
	for _, step := range c.hints {
		if step.Delay <= 0 {
			c.job.hint = step.Message
			continue
		}
		msg := step.Message
		c.timers.timers = append(c.timers.timers, c.afterFunc(step.Delay, func() {
			c.onProgressHint(token, msg)
		}))
	}
	c.commitLocked()
	return token
}

// markSent moves the job to AwaitingResult once the transport has handed the
// upload off.
func (c *Controller) markSent(token uint64) {
	c.mu.Lock()
	if token != c.token || c.job.stage != StageSubmitting {
		c.mu.Unlock()
		return
	}
	c.job.stage = StageAwaitingResult
	c.commitLocked()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) onProgressHint(token uint64, msg string) {
	c.mu.Lock()
	if token != c.token || !c.job.stage.Active() {
		c.mu.Unlock()
		c.logger.Debug("extract.hint.dropped", zap.String("hint", msg))
		return
	}
	c.job.hint = msg
	c.commitLocked()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) resolve(token uint64, resp *Response) {
	c.mu.Lock()
	if token != c.token || !c.job.stage.Active() {
		c.mu.Unlock()
		c.logger.Debug("extract.job.stale_response")
		return
	}
	if c.job.stage == StageSubmitting {
		c.job.stage = StageAwaitingResult
		c.commitLocked()
	}

	text := resp.Text
	if text == "" {
		text = NoTextExtracted
	}
	mode := ParseMode(resp.Mode)
	c.finishLocked(StageCompleted, mode)
	c.job.result = &Result{Text: text, Mode: mode}
	c.commitLocked()
	jobID, elapsed := c.job.id, c.job.stats.Elapsed
	c.mu.Unlock()
	c.flush()

	c.logger.Info("extract.job.completed",
		zap.String("job_id", jobID),
		zap.String("mode", mode.String()),
		zap.Int("text_length", len(text)),
		zap.Duration("elapsed", elapsed),
	)
}

func (c *Controller) fail(token uint64, err error) {
	jerr := classify(err)

	c.mu.Lock()
	if token != c.token || !c.job.stage.Active() {
		c.mu.Unlock()
		c.logger.Debug("extract.job.stale_failure", zap.Error(err))
		return
	}
	c.finishLocked(StageFailed, ModeUnknown)
	c.job.err = jerr
	c.commitLocked()
	jobID, elapsed := c.job.id, c.job.stats.Elapsed
	c.mu.Unlock()
	c.flush()

	c.logger.Warn("extract.job.failed",
		zap.String("job_id", jobID),
		zap.Stringer("kind", jerr.Kind),
		zap.Int("status", jerr.Status),
		zap.Duration("elapsed", elapsed),
		zap.Error(jerr),
	)
}

// finishLocked moves the job to a terminal stage. Hint timers die here and the
// token moves on, so a callback already in flight finds itself stale.
func (c *Controller) finishLocked(stage Stage, mode Mode) {
	c.timers.stop()
	c.token++
	c.cancel = nil

	end := c.now()
	elapsed := end.Sub(c.job.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	c.job.stage = stage
	c.job.hint = ""
	c.job.endedAt = end
	c.job.stats = &Stats{Mode: mode, Elapsed: elapsed}
}

func classify(err error) *JobError {
	var jerr *JobError
	if errors.As(err, &jerr) {
		return jerr
	}
	if errors.Is(err, context.Canceled) {
		return newJobError(KindCancelled, MsgCancelled, err)
	}
	return newJobError(KindTransport, MsgTransportFailure, err)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Seq:       c.seq,
		JobID:     c.job.id,
		Stage:     c.job.stage,
		Hint:      c.job.hint,
		StartedAt: c.job.startedAt,
		EndedAt:   c.job.endedAt,
	}
	if c.doc != nil {
		s.HasDocument = true
		s.Filename = c.doc.Filename
	}
	if c.job.err != nil {
		e := *c.job.err
		s.Err = &e
	}
	if c.job.result != nil {
		r := *c.job.result
		s.Result = &r
	}
	if c.job.stats != nil {
		st := *c.job.stats
		s.Stats = &st
	}
	return s
}

// commitLocked queues a snapshot of the current state for delivery.
func (c *Controller) commitLocked() {
	c.seq++
	c.pending = append(c.pending, c.snapshotLocked())
}

// flush delivers queued snapshots. Only one goroutine delivers at a time;
// changes made by others (or by subscribers themselves) are picked up by the
// goroutine already delivering, which keeps delivery in commit order.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.pending) > 0 {
		s := c.pending[0]
		c.pending = c.pending[1:]
		subs := append([]subscriber(nil), c.subs...)
		c.mu.Unlock()
		for _, sub := range subs {
			c.notify(sub, s)
		}
		c.mu.Lock()
		c.delivered = s.Seq
		c.drained.Broadcast()
	}
	c.flushing = false
	c.mu.Unlock()
}

func (c *Controller) notify(sub subscriber, s Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("extract.subscriber.panic",
				zap.Int("subscriber", sub.id),
				zap.Uint64("seq", s.Seq),
				zap.Any("panic", r),
			)
		}
	}()
	sub.fn(s)
}
