// Package stall is StallDetector: a read-only analysis over OpsLogStore
// that answers whether a project's AI agent is stuck waiting on a chat
// delivery that never happened.
package stall

import (
	"sync"
	"time"

	"github.com/clawgate/clawgate/internal/opslog"
)

// Reason is the stall classification returned per project.
type Reason string

const (
	ReasonNone              Reason = "none"
	ReasonNoTarget          Reason = "no_target"
	ReasonLineSendNotLocal  Reason = "line_send_not_local"
	ReasonPendingLineSend   Reason = "pending_line_send"
	ReasonStalledTypingBusy Reason = "stalled_typing_busy"
	ReasonStalledNoLineSend Reason = "stalled_no_line_send"
)

const pendingWindow = 120 * time.Second
const lineSendProximityWindow = 5 * time.Minute

const (
	dedupCap       = 512
	dedupTruncated = 256
)

// Status is the StallDetector's verdict for one project.
type Status struct {
	Project               string
	Reason                Reason
	ReviewDone            bool
	LastCompletionAt      time.Time
	LastCompletionTraceID string
	LastTaskSentAt        time.Time
	LastLineSendOKAt      time.Time
}

// Log is the subset of opslog.Store the detector reads.
type Log interface {
	RecentByEventAndProject(event, project string, limit int) ([]opslog.Entry, error)
	RecentByEvent(event string, limit int) ([]opslog.Entry, error)
}

// EmitFunc writes one autonomous.stalled ops entry.
type EmitFunc func(project, traceID string)

// Detector evaluates stall status per project and emits a deduplicated
// autonomous.stalled ops entry the first time a project is found stalled
// for a given trace id.
type Detector struct {
	log Log

	mu      sync.Mutex
	emitted map[string]struct{}
	order   []string
}

func New(log Log) *Detector {
	return &Detector{log: log, emitted: make(map[string]struct{})}
}

// Evaluate returns the stall status for project at hasNonIgnoreTarget
// (whether any project is configured with a non-ignore mode) and
// isLineSendLocal (whether this node is responsible for chat delivery),
// calling emit exactly once per newly-confirmed stall trace id.
func (d *Detector) Evaluate(project string, now time.Time, hasNonIgnoreTarget, isLineSendLocal bool, emit EmitFunc) (Status, error) {
	status := Status{Project: project, Reason: ReasonNone}

	completions, err := d.log.RecentByEventAndProject("tmux.completion", project, 1)
	if err != nil {
		return status, err
	}
	if len(completions) == 0 {
		if !hasNonIgnoreTarget {
			status.Reason = ReasonNoTarget
		}
		return status, nil
	}
	completion := completions[0]
	status.LastCompletionAt = completion.Ts
	status.LastCompletionTraceID = completion.TraceID

	if forwards, err := d.log.RecentByEventAndProject("tmux.forward", project, 1); err == nil && len(forwards) > 0 {
		status.LastTaskSentAt = forwards[0].Ts
	}

	lineSendOK, err := d.correlateLineSendOK(completion)
	if err != nil {
		return status, err
	}
	if !lineSendOK.IsZero() {
		status.LastLineSendOKAt = lineSendOK
		return status, nil
	}

	if !isLineSendLocal {
		status.Reason = ReasonLineSendNotLocal
		return status, nil
	}

	age := now.Sub(completion.Ts)
	if age < pendingWindow {
		status.Reason = ReasonPendingLineSend
		return status, nil
	}

	if lastFailure, err := d.log.RecentByEventAndProject("line_send_fail", project, 1); err == nil && len(lastFailure) > 0 {
		if lastFailure[0].Ts.After(completion.Ts) && errorCodeOf(lastFailure[0].Message) == "session_typing_busy" {
			status.Reason = ReasonStalledTypingBusy
			return status, nil
		}
	}

	status.Reason = ReasonStalledNoLineSend
	status.ReviewDone = true
	if d.markEmitted(completion.TraceID) && emit != nil {
		emit(project, completion.TraceID)
	}
	return status, nil
}

// correlateLineSendOK implements the three-tier correlation from the
// completion entry to a line_send_ok row: same trace id, within 5
// minutes after the completion, or the first one at/after it.
func (d *Detector) correlateLineSendOK(completion opslog.Entry) (time.Time, error) {
	byTrace, err := d.log.RecentByEvent("line_send_ok", 200)
	if err != nil {
		return time.Time{}, err
	}
	for _, e := range byTrace {
		if completion.TraceID != "" && e.TraceID == completion.TraceID {
			return e.Ts, nil
		}
	}
	var nearby, earliestAfter opslog.Entry
	for _, e := range byTrace {
		if e.Ts.Before(completion.Ts) {
			continue
		}
		if earliestAfter.Ts.IsZero() || e.Ts.Before(earliestAfter.Ts) {
			earliestAfter = e
		}
		if e.Ts.Sub(completion.Ts) <= lineSendProximityWindow {
			if nearby.Ts.IsZero() || e.Ts.Before(nearby.Ts) {
				nearby = e
			}
		}
	}
	if !nearby.Ts.IsZero() {
		return nearby.Ts, nil
	}
	if !earliestAfter.Ts.IsZero() {
		return earliestAfter.Ts, nil
	}
	return time.Time{}, nil
}

func errorCodeOf(message string) string {
	const needle = "error_code="
	idx := indexOf(message, needle)
	if idx < 0 {
		return ""
	}
	rest := message[idx+len(needle):]
	for i, r := range rest {
		if r == ',' || r == ' ' {
			return rest[:i]
		}
	}
	return rest
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// markEmitted records traceID as seen and reports whether this is the
// first time, truncating the dedup set to the newest 256 entries when it
// exceeds 512.
func (d *Detector) markEmitted(traceID string) bool {
	if traceID == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.emitted[traceID]; seen {
		return false
	}
	d.emitted[traceID] = struct{}{}
	d.order = append(d.order, traceID)
	if len(d.order) > dedupCap {
		drop := d.order[:len(d.order)-dedupTruncated]
		for _, id := range drop {
			delete(d.emitted, id)
		}
		d.order = d.order[len(d.order)-dedupTruncated:]
	}
	return true
}
