package trace

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeFilter(t *testing.T) {
	tests := map[string]string{
		"discord.exe":  "discord",
		" Game.EXE ":   "Game",
		"steam":        "steam",
		".exe":         "",
		"notepad.exer": "notepad.exer",
	}
	for in, want := range tests {
		if got := NormalizeFilter(in); got != want {
			t.Errorf("NormalizeFilter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchName(t *testing.T) {
	if !MatchName("Discord.exe", "disc") {
		t.Error("expected case-insensitive substring match")
	}
	if MatchName("steam", "") {
		t.Error("empty filter must not match")
	}
	if MatchName("firefox", "discord") {
		t.Error("unexpected match")
	}
}

func chanSource(events ...Event) Source {
	return SourceFunc(func(ctx context.Context, _ string) (<-chan Event, error) {
		ch := make(chan Event, len(events))
		for _, e := range events {
			ch <- e
		}
		close(ch)
		return ch, nil
	})
}

func TestMerge(t *testing.T) {
	src := Merge(
		chanSource(ProcessStart{PID: 1, Name: "a"}),
		chanSource(Connect{PID: 1, Address: "1.2.3.4", Protocol: "TCP"}, TLSHello{PID: 1, ServerName: "x.example.com"}),
	)

	ch, err := src.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	got := 0
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if got != 3 {
					t.Fatalf("got %d events, want 3", got)
				}
				return
			}
			got++
		case <-timeout:
			t.Fatal("merged channel was not closed")
		}
	}
}

func TestMerge_SubscribeError(t *testing.T) {
	boom := errors.New("no privilege")
	src := Merge(
		chanSource(),
		SourceFunc(func(context.Context, string) (<-chan Event, error) { return nil, boom }),
	)
	if _, err := src.Subscribe(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("Subscribe() error = %v, want %v", err, boom)
	}
}
