package knowledge

import (
	"strings"
	"testing"
)

func TestJoinText(t *testing.T) {
	got := JoinText([]Passage{
		{Title: "Upgrading to 7.x", Content: "Read the release notes first."},
		{Title: "Breaking changes", Content: "The v1 API was removed."},
	})

	if !strings.Contains(got, "### Upgrading to 7.x") {
		t.Errorf("missing first title: %q", got)
	}
	if !strings.Contains(got, "The v1 API was removed.") {
		t.Errorf("missing second body: %q", got)
	}
	if strings.Index(got, "Upgrading") > strings.Index(got, "Breaking") {
		t.Error("passage order not preserved")
	}
}

func TestJoinText_Empty(t *testing.T) {
	if got := JoinText(nil); !strings.Contains(got, "No relevant documentation") {
		t.Errorf("JoinText(nil) = %q", got)
	}
}
