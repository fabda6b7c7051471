package model

import "testing"

func TestNotification_MatchesPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		targets []string
		path    string
		want    bool
	}{
		{"empty targets match everything", nil, "/checkout", true},
		{"exact match", []string{"/pricing"}, "/pricing", true},
		{"exact mismatch", []string{"/pricing"}, "/pricing/enterprise", false},
		{"prefix wildcard", []string{"/docs/*"}, "/docs/getting-started", true},
		{"prefix wildcard mismatch", []string{"/docs/*"}, "/blog/post", false},
		{"multiple targets", []string{"/a", "/b"}, "/b", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := &Notification{TargetPages: tt.targets}
			if got := n.MatchesPage(tt.path); got != tt.want {
				t.Errorf("MatchesPage(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestNotification_DisplayBudgetExhausted(t *testing.T) {
	t.Parallel()

	n := &Notification{MaxDisplays: 0, DisplayCount: 1000000}
	if n.DisplayBudgetExhausted() {
		t.Error("zero max_displays means unlimited")
	}

	n = &Notification{MaxDisplays: 10, DisplayCount: 9}
	if n.DisplayBudgetExhausted() {
		t.Error("budget not yet reached")
	}

	n.DisplayCount = 10
	if !n.DisplayBudgetExhausted() {
		t.Error("budget reached, should be exhausted")
	}
}

func TestParseTrackAction(t *testing.T) {
	t.Parallel()

	if a, err := ParseTrackAction("display"); err != nil || a != ActionDisplay {
		t.Errorf("ParseTrackAction(display) = %v, %v", a, err)
	}
	if a, err := ParseTrackAction("click"); err != nil || a != ActionClick {
		t.Errorf("ParseTrackAction(click) = %v, %v", a, err)
	}
	if _, err := ParseTrackAction("hover"); err == nil {
		t.Error("expected error for unknown action")
	}
}
