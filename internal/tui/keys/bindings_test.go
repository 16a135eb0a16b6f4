package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHandleEventPrefersViewBinding(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 's', Handler: func() { got = "global" }})
	r.AddView("queue", &Action{Key: tcell.KeyRune, Rune: 's', Handler: func() { got = "queue" }})

	if !r.HandleEvent("queue", tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone)) {
		t.Fatal("expected a match")
	}
	if got != "queue" {
		t.Fatalf("expected view binding, got %q", got)
	}

	if !r.HandleEvent("detail", tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone)) {
		t.Fatal("expected global match on another page")
	}
	if got != "global" {
		t.Fatalf("expected global binding, got %q", got)
	}
}

func TestHandleEventSpecialKeys(t *testing.T) {
	r := NewRegistry()
	hit := false
	r.AddView("queue", &Action{Key: tcell.KeyEnter, Handler: func() { hit = true }})

	if r.HandleEvent("queue", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Fatal("unexpected match")
	}
	if !r.HandleEvent("queue", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)) || !hit {
		t.Fatal("enter not dispatched")
	}
}

func TestHintsOrderAndVisibility(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Visible: true})
	r.AddView("queue", &Action{Key: tcell.KeyRune, Rune: ' ', Label: "space", Description: "Select", Visible: true})
	r.AddView("queue", &Action{Key: tcell.KeyRune, Rune: 'j', Description: "Down"})
	r.AddView("queue", &Action{Key: tcell.KeyRune, Rune: '1', Description: "Pending", Numeric: true, Visible: true})

	hints := r.Hints("queue")
	if len(hints) != 3 {
		t.Fatalf("expected 3 hints, got %d", len(hints))
	}
	if hints[0].Key != "space" || hints[1].Key != "1" || hints[2].Key != "q" {
		t.Fatalf("unexpected order: %+v", hints)
	}
	if !hints[1].Numeric {
		t.Fatal("numeric flag lost")
	}
}
