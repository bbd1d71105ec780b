package panesurface

import (
	"strings"
	"testing"
	"time"
)

type FakeExec struct {
	OutputText string
	LastArgs   string
	RunCalls   []string
}

func (f *FakeExec) Output(name string, args ...string) ([]byte, error) {
	f.LastArgs = strings.Join(append([]string{name}, args...), " ")
	return []byte(f.OutputText), nil
}

func (f *FakeExec) Run(name string, args ...string) error {
	f.LastArgs = strings.Join(append([]string{name}, args...), " ")
	f.RunCalls = append(f.RunCalls, f.LastArgs)
	return nil
}

func TestAdapterListPanesUsesExactCommand(t *testing.T) {
	f := &FakeExec{OutputText: "s1: 1 windows"}
	a := NewAdapter(f)
	_, err := a.ListPanes()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if f.LastArgs != "tmux list-panes -a -F #{session_name}:#{window_index}.#{pane_index}" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterListPanesWithTmuxSocket(t *testing.T) {
	f := &FakeExec{OutputText: "s1"}
	a := NewAdapterWithSocket(f, "cg_e2e")
	_, err := a.ListPanes()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if f.LastArgs != "tmux -L cg_e2e list-panes -a -F #{session_name}:#{window_index}.#{pane_index}" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterCapturePaneUsesVisualLineLayout(t *testing.T) {
	f := &FakeExec{OutputText: "ok"}
	a := NewAdapter(f)
	_, err := a.CapturePane("e2e:0.0")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if f.LastArgs != "tmux capture-pane -p -e -N -t e2e:0.0" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterSendLiteralUsesLiteralMode(t *testing.T) {
	f := &FakeExec{}
	a := NewAdapter(f)
	err := a.SendLiteral("e2e:0.0", "hello there")
	if err != nil {
		t.Fatalf("send literal failed: %v", err)
	}
	if f.LastArgs != "tmux send-keys -l -t e2e:0.0 hello there" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterSendKeyInterpretsKeyName(t *testing.T) {
	f := &FakeExec{}
	a := NewAdapter(f)
	if err := a.SendKey("e2e:0.0", "Enter"); err != nil {
		t.Fatalf("send key failed: %v", err)
	}
	if f.LastArgs != "tmux send-keys -t e2e:0.0 Enter" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterCaptureTailDefaultsTo50Lines(t *testing.T) {
	f := &FakeExec{OutputText: "ok"}
	a := NewAdapter(f)
	_, err := a.CaptureTail("e2e:0.0", 0)
	if err != nil {
		t.Fatalf("capture tail failed: %v", err)
	}
	if f.LastArgs != "tmux capture-pane -p -e -N -S -50 -E - -t e2e:0.0" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterCursorPositionUsesDisplayMessage(t *testing.T) {
	f := &FakeExec{OutputText: "9 3\n"}
	a := NewAdapter(f)
	x, y, err := a.CursorPosition("e2e:0.0")
	if err != nil {
		t.Fatalf("cursor failed: %v", err)
	}
	if x != 9 || y != 3 {
		t.Fatalf("unexpected cursor: %d,%d", x, y)
	}
	if f.LastArgs != "tmux display-message -p -t e2e:0.0 #{cursor_x} #{cursor_y}" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterPaneLastActiveAtUsesDisplayMessage(t *testing.T) {
	f := &FakeExec{OutputText: "1771524000\n"}
	a := NewAdapter(f)
	got, err := a.PaneLastActiveAt("e2e:0.0")
	if err != nil {
		t.Fatalf("pane last active failed: %v", err)
	}
	want := time.Unix(1771524000, 0).UTC()
	if !got.Equal(want) {
		t.Fatalf("unexpected pane activity time: got=%s want=%s", got.Format(time.RFC3339), want.Format(time.RFC3339))
	}
	if f.LastArgs != "tmux display-message -p -t e2e:0.0 #{pane_activity}" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}

func TestAdapterPaneCurrentCommandUsesDisplayMessage(t *testing.T) {
	f := &FakeExec{OutputText: "zsh\n"}
	a := NewAdapter(f)
	cmd, err := a.PaneCurrentCommand("e2e:0.0")
	if err != nil {
		t.Fatalf("pane current command failed: %v", err)
	}
	if cmd != "zsh" {
		t.Fatalf("unexpected current command: %q", cmd)
	}
	if f.LastArgs != "tmux display-message -p -t e2e:0.0 #{pane_current_command}" {
		t.Fatalf("unexpected command: %s", f.LastArgs)
	}
}
