package extraction_job

import "time"

// HintStep is one entry of the progress-hint schedule: after Delay from the
// start of a job, Message becomes the job's hint. Hints are guesses; the
// server's reported mode always wins.
type HintStep struct {
	Delay   time.Duration
	Message string
}

// DefaultHints follows what users of the web UI were shown while waiting.
var DefaultHints = []HintStep{
	{Delay: 0, Message: "Analyzing PDF..."},
	{Delay: 500 * time.Millisecond, Message: "Text detected, using text extraction..."},
	{Delay: 5 * time.Second, Message: "No text found, likely falling back to OCR..."},
}

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. It exists so tests can drive hints by hand.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// hintTimers holds the pending timers of the current job.
type hintTimers struct {
	timers []Timer
}

func (h *hintTimers) stop() {
	for _, t := range h.timers {
		t.Stop()
	}
	h.timers = nil
}
