package ui

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
)

func TestPagesPushPop(t *testing.T) {
	p := NewPages()
	var changes [][]string
	p.SetOnChange(func(stack []string) { changes = append(changes, stack) })

	p.Reset("queue")
	p.Push("detail")
	p.Push("share")
	if got := p.Current(); got != "share" {
		t.Fatalf("expected share on top, got %q", got)
	}

	if got := p.Pop(); got != "share" {
		t.Fatalf("expected share popped, got %q", got)
	}
	if got := p.Current(); got != "detail" {
		t.Fatalf("expected detail, got %q", got)
	}
	p.Pop()
	if got := p.Pop(); got != "" {
		t.Fatalf("bottom page must not pop, got %q", got)
	}
	if len(changes) == 0 {
		t.Fatal("expected change notifications")
	}
}

func TestPagesPushExistingUnwinds(t *testing.T) {
	p := NewPages()
	p.Reset("queue")
	p.Push("detail")
	p.Push("help")
	p.Push("detail")

	stack := p.Stack()
	if len(stack) != 2 || stack[1] != "detail" {
		t.Fatalf("expected [queue detail], got %v", stack)
	}
}

func TestFlashExpiry(t *testing.T) {
	f := NewFlashModel()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	if f.Current() != nil {
		t.Fatal("expected no flash initially")
	}
	f.Warn("careful")
	msg := f.Current()
	if msg == nil || msg.Text != "careful" || msg.Level != FlashWarn {
		t.Fatalf("unexpected flash: %+v", msg)
	}

	now = now.Add(9 * time.Second)
	if f.Current() != nil {
		t.Fatal("warn flash should expire after 8s")
	}
}

func TestScoreColor(t *testing.T) {
	th := DefaultTheme()
	tests := []struct {
		score  float64
		scored bool
		want   tcell.Color
	}{
		{0.9, false, th.UnscoredColor},
		{0.1, true, th.ScoreLowColor},
		{0.4, true, th.ScoreMidColor},
		{0.7, true, th.ScoreHighColor},
		{1, true, th.ScoreHighColor},
	}
	for _, tt := range tests {
		if got := th.ScoreColor(tt.score, tt.scored); got != tt.want {
			t.Errorf("ScoreColor(%v, %v) = %v, want %v", tt.score, tt.scored, got, tt.want)
		}
	}
}
