package agent

import "testing"

func TestTruncateHistoryKeepsMostRecent(t *testing.T) {
	history := make([]Turn, 30)
	for i := range history {
		history[i] = Turn{Role: "user", Content: string(rune('a' + i%26))}
	}

	got := TruncateHistory(history, 20)
	if len(got) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(got))
	}
	if got[0] != history[10] || got[19] != history[29] {
		t.Fatal("expected the most recent turns to survive truncation")
	}
}

func TestTruncateHistoryShortInputUnchanged(t *testing.T) {
	history := []Turn{{Role: "user", Content: "hi"}}
	got := TruncateHistory(history, 20)
	if len(got) != 1 || got[0] != history[0] {
		t.Fatal("expected history returned unchanged")
	}
}

func TestTruncateHistoryZeroLimitUsesDefault(t *testing.T) {
	history := make([]Turn, HistoryLimit+5)
	got := TruncateHistory(history, 0)
	if len(got) != HistoryLimit {
		t.Fatalf("expected default limit %d, got %d", HistoryLimit, len(got))
	}
}
