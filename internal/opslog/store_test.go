package opslog

import "testing"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecentOrdersDescending(t *testing.T) {
	s := openTestStore(t)
	if err := s.Append("info", "tmux.completion", "pane", "", Fields{"trace_id": "t1", "status": "ok"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.Append("error", "line_send_fail", "chat", "", Fields{"trace_id": "t1", "error_code": "session_typing_busy"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	entries, err := s.Recent(10, "", "")
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Event != "line_send_fail" {
		t.Fatalf("expected most recent entry first, got %+v", entries[0])
	}
}

func TestRecentFiltersByLevelAndTrace(t *testing.T) {
	s := openTestStore(t)
	_ = s.Append("info", "a", "pane", "", Fields{"trace_id": "t1"})
	_ = s.Append("error", "b", "pane", "", Fields{"trace_id": "t2"})

	entries, err := s.Recent(10, "error", "")
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != "b" {
		t.Fatalf("unexpected level filter result: %+v", entries)
	}

	entries, err = s.Recent(10, "", "t1")
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != "a" {
		t.Fatalf("unexpected trace filter result: %+v", entries)
	}
}

func TestRecentByEvent(t *testing.T) {
	s := openTestStore(t)
	_ = s.Append("info", "tmux.completion", "pane", "", Fields{"trace_id": "t1"})
	_ = s.Append("info", "tmux.forward", "pane", "", Fields{"trace_id": "t1"})
	_ = s.Append("info", "tmux.completion", "pane", "", Fields{"trace_id": "t2"})

	entries, err := s.RecentByEvent("tmux.completion", 10)
	if err != nil {
		t.Fatalf("recent by event failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 completion entries, got %d", len(entries))
	}
}
