// Package panesurface wraps the tmux CLI for pane discovery, capture, and
// keystroke delivery. Surface (in surface.go) layers session mode gating,
// the menu-select procedure, and the arrow/control key policy on top of
// this raw adapter.
package panesurface

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Adapter shells out to tmux for one pane/session at a time. All methods
// accept a tmux target string ("session:window.pane").
type Adapter struct {
	exec       Exec
	tmuxSocket string
}

func NewAdapter(e Exec) *Adapter {
	return &Adapter{exec: e}
}

func NewAdapterWithSocket(e Exec, socket string) *Adapter {
	return &Adapter{exec: e, tmuxSocket: socket}
}

func (a *Adapter) SocketName() string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.tmuxSocket)
}

// ListPanes returns every pane tmux knows about, as "session:window.pane".
func (a *Adapter) ListPanes() ([]string, error) {
	out, err := a.exec.Output("tmux", a.withSocket("list-panes", "-a", "-F", "#{session_name}:#{window_index}.#{pane_index}")...)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

func (a *Adapter) PaneExists(target string) (bool, error) {
	needle := strings.TrimSpace(target)
	if needle == "" {
		return false, nil
	}
	panes, err := a.ListPanes()
	if err != nil {
		return false, err
	}
	for _, pane := range panes {
		if strings.TrimSpace(pane) == needle {
			return true, nil
		}
	}
	return false, nil
}

// SendLiteral types text into the pane as raw characters (tmux -l), with
// no key interpretation.
func (a *Adapter) SendLiteral(target, text string) error {
	return a.exec.Run("tmux", a.withSocket("send-keys", "-l", "-t", target, text)...)
}

// SendKey sends one tmux key name (e.g. "Enter", "Up", "C-c") interpreted
// as a key rather than literal text.
func (a *Adapter) SendKey(target, key string) error {
	return a.exec.Run("tmux", a.withSocket("send-keys", "-t", target, key)...)
}

func (a *Adapter) CapturePane(target string) (string, error) {
	out, err := a.exec.Output("tmux", a.withSocket("capture-pane", "-p", "-e", "-N", "-t", target)...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CaptureTail captures the last n lines of the pane's visible content plus
// scrollback.
func (a *Adapter) CaptureTail(target string, n int) (string, error) {
	if n <= 0 {
		n = 50
	}
	start := fmt.Sprintf("-%d", n)
	out, err := a.exec.Output("tmux", a.withSocket("capture-pane", "-p", "-e", "-N", "-S", start, "-E", "-", "-t", target)...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (a *Adapter) CursorPosition(target string) (int, int, error) {
	out, err := a.exec.Output("tmux", a.withSocket("display-message", "-p", "-t", target, "#{cursor_x} #{cursor_y}")...)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("unexpected tmux cursor output: %q", string(out))
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func (a *Adapter) PaneLastActiveAt(target string) (time.Time, error) {
	out, err := a.exec.Output("tmux", a.withSocket("display-message", "-p", "-t", target, "#{pane_activity}")...)
	if err != nil {
		return time.Time{}, err
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" || raw == "0" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0).UTC(), nil
}

// PaneCurrentCommand returns the foreground command name running in the
// pane, as tmux reports it.
func (a *Adapter) PaneCurrentCommand(target string) (string, error) {
	out, err := a.exec.Output("tmux", a.withSocket("display-message", "-p", "-t", target, "#{pane_current_command}")...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (a *Adapter) withSocket(args ...string) []string {
	if a.tmuxSocket == "" {
		return args
	}
	return append([]string{"-L", a.tmuxSocket}, args...)
}
