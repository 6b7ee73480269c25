package discord

import (
	"errors"
	"strings"
	"testing"

	"github.com/memohai/chatsync/internal/chatsync"
)

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(Config{}, nil)
	if err == nil {
		t.Fatal("expected error for empty bot token")
	}
	var cfgErr *chatsync.ProviderConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ProviderConfigurationError, got %T: %v", err, err)
	}
}

func TestTruncate_LeavesShortContentAlone(t *testing.T) {
	content := "hello there"
	if got := truncate(content); got != content {
		t.Fatalf("expected %q unchanged, got %q", content, got)
	}
}

func TestTruncate_CapsAtDiscordLimit(t *testing.T) {
	content := strings.Repeat("x", messageCharLimit+500)
	got := truncate(content)
	if len(got) != messageCharLimit {
		t.Fatalf("expected length %d, got %d", messageCharLimit, len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated content to end with ellipsis, got %q", got[len(got)-10:])
	}
}

func TestIsNotFound_MatchesStatus404(t *testing.T) {
	status := 404
	err := &chatsync.ProviderAPIError{Provider: providerTag, Status: &status}
	if !IsNotFound(err) {
		t.Fatal("expected 404 ProviderAPIError to be recognized as not-found")
	}
}

func TestIsNotFound_RejectsOtherStatuses(t *testing.T) {
	status := 500
	err := &chatsync.ProviderAPIError{Provider: providerTag, Status: &status}
	if IsNotFound(err) {
		t.Fatal("did not expect 500 to be recognized as not-found")
	}
}

func TestIsNotFound_RejectsNonAPIErrors(t *testing.T) {
	if IsNotFound(errors.New("boom")) {
		t.Fatal("did not expect a bare error to be recognized as not-found")
	}
	if IsNotFound(nil) {
		t.Fatal("did not expect nil to be recognized as not-found")
	}
}
