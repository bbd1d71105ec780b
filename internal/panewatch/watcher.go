// Package panewatch is PaneInboundWatcher: it reacts to pane session
// state transitions streamed from the status-bar feed and turns them
// into tmux.completion / tmux.question / tmux.progress events.
package panewatch

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/panesurface"
)

const (
	completionSummaryLines = 30
	completionSummaryChars = 2000
	progressTailLines      = 20
	settleDelay            = 200 * time.Millisecond
	progressTickInterval   = 20 * time.Second

	autoPermissionAnswer = "y"
)

// PaneReader is the subset of panesurface.Adapter the watcher needs to
// capture pane content for a tmux target.
type PaneReader interface {
	CaptureTail(target string, n int) (string, error)
}

// Answerer sends the auto-answer (menu select or "y") for permission
// prompts and auto-mode questions.
type Answerer interface {
	SelectMenuOption(target string, n int) error
	SendLiteral(target, text string) error
	SendKey(target, key string) error
}

// EventEmitter is the subset of eventbus.Bus the watcher publishes to.
type EventEmitter interface {
	Append(typ clawtypes.EventType, adapter string, payload map[string]string) clawtypes.Event
}

type targetState struct {
	lastTailHash uint64
}

// Watcher tracks per-target progress baselines and reacts to state
// transitions reported via OnTransition and to periodic sampling via
// SampleProgress.
type Watcher struct {
	reader PaneReader
	answer Answerer
	bus    EventEmitter
	modes  panesurface.ModeLookup
	sleep  func(time.Duration)

	mu     sync.Mutex
	states map[string]*targetState
}

func New(reader PaneReader, answer Answerer, bus EventEmitter, modes panesurface.ModeLookup) *Watcher {
	return &Watcher{
		reader: reader,
		answer: answer,
		bus:    bus,
		modes:  modes,
		sleep:  time.Sleep,
		states: make(map[string]*targetState),
	}
}

// OnTransition handles a running -> waiting_input (or any other) status
// change for one pane session. adapter is the adapter name stamped on
// emitted events ("pane").
func (w *Watcher) OnTransition(adapter string, session clawtypes.PaneSession, prevStatus clawtypes.PaneStatus) error {
	target := session.Tmux.Target()

	if session.Status != clawtypes.PaneStatusWaitingInput || prevStatus != clawtypes.PaneStatusRunning {
		return nil
	}

	mode := w.modes.SessionMode(session.SessionType, session.Project)

	if session.WaitingReason == clawtypes.WaitingReasonPermissionPrompt {
		if mode == clawtypes.SessionModeAutonomous {
			_ = w.answer.SendLiteral(target, autoPermissionAnswer)
			_ = w.answer.SendKey(target, "Enter")
		}
		return nil
	}

	w.sleep(settleDelay)
	captured, err := w.reader.CaptureTail(target, 50)
	if err != nil {
		return err
	}
	lines := strings.Split(captured, "\n")

	question, ok := DetectQuestion(lines)
	if ok {
		if mode == clawtypes.SessionModeAuto || mode == clawtypes.SessionModeAutonomous {
			w.bus.Append(clawtypes.EventTmuxQuestion, adapter, map[string]string{
				"project":        session.Project,
				"question_text":  question.QuestionText,
				"selected_index": strconv.Itoa(question.SelectedIndex),
			})
			if mode == clawtypes.SessionModeAuto {
				_ = w.answer.SelectMenuOption(target, question.SelectedIndex)
			}
			return nil
		}
	}

	summary := trimCompletionSummary(captured)
	w.bus.Append(clawtypes.EventTmuxCompletion, adapter, map[string]string{
		"project": session.Project,
		"summary": summary,
	})
	return nil
}

// SampleProgress captures the current tail for a running session and, if
// it changed since the last sample, emits tmux.progress. Call on a ~20s
// ticker per running session.
func (w *Watcher) SampleProgress(adapter string, session clawtypes.PaneSession) error {
	if session.Status != clawtypes.PaneStatusRunning {
		return nil
	}
	target := session.Tmux.Target()
	tail, err := w.reader.CaptureTail(target, progressTailLines)
	if err != nil {
		return err
	}
	hash := fnvHash(tail)

	w.mu.Lock()
	state, ok := w.states[target]
	if !ok {
		state = &targetState{}
		w.states[target] = state
	}
	unchanged := ok && state.lastTailHash == hash
	state.lastTailHash = hash
	w.mu.Unlock()

	if unchanged {
		return nil
	}
	w.bus.Append(clawtypes.EventTmuxProgress, adapter, map[string]string{
		"project": session.Project,
		"tail":    tail,
	})
	return nil
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func trimCompletionSummary(captured string) string {
	lines := strings.Split(strings.TrimRight(captured, "\n"), "\n")
	if len(lines) > completionSummaryLines {
		lines = lines[len(lines)-completionSummaryLines:]
	}
	summary := strings.Join(lines, "\n")
	if len(summary) > completionSummaryChars {
		summary = summary[len(summary)-completionSummaryChars:]
	}
	return summary
}
