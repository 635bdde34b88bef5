package gateway

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/atomhq/atomgw/internal/config"
)

func enabledChannels() []config.ChannelDescriptor {
	return []config.ChannelDescriptor{
		{ID: "tg-main", Type: config.ChannelTelegram, Enabled: true},
		{ID: "tg-ops", Type: config.ChannelTelegram, Enabled: true},
		{ID: "web", Type: config.ChannelHTTP, Enabled: true},
	}
}

func TestSelectChannels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		selector string
		want     []string
	}{
		{"all", "all", []string{"tg-main", "tg-ops", "web"}},
		{"single id", "web", []string{"web"}},
		{"multiple ids", "web,tg-main", []string{"tg-main", "web"}},
		{"ids with spaces", " web , tg-main ", []string{"tg-main", "web"}},
		{"negation only", "!tg-ops", []string{"tg-main", "web"}},
		{"include and negate", "tg-main,tg-ops,!tg-ops", []string{"tg-main"}},
		{"unknown id ignored", "web,ghost", []string{"web"}},
		{"all ids unknown", "ghost,phantom", nil},
		{"unknown negation ignored", "!ghost", []string{"tg-main", "tg-ops", "web"}},
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SelectChannels(tt.selector, enabledChannels(), logger)
			if err != nil {
				t.Fatalf("SelectChannels(%q): %v", tt.selector, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("selected = %+v, want ids %v", got, tt.want)
			}
			for i, ch := range got {
				if ch.ID != tt.want[i] {
					t.Errorf("selected[%d] = %q, want %q", i, ch.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSelectChannels_Invalid(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	for _, selector := range []string{"", "  ", ",,", "all,web", "web,all", "!"} {
		if _, err := SelectChannels(selector, enabledChannels(), logger); !errors.Is(err, ErrInvalidSelector) {
			t.Errorf("SelectChannels(%q) error = %v, want ErrInvalidSelector", selector, err)
		}
	}
}
