package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText_ShortTextUnchanged(t *testing.T) {
	text := "嬉しいｲﾓ🍠 " + Hashtags
	assert.Equal(t, text, TruncateText(text, MaxTextLength))
}

func TestTruncateText_KeepsHashtags(t *testing.T) {
	long := strings.Repeat("ほくほく", 50) + " " + Hashtags

	got := TruncateText(long, MaxTextLength)
	assert.LessOrEqual(t, len([]rune(got)), MaxTextLength)
	assert.True(t, strings.HasSuffix(got, Hashtags), "hashtags must survive truncation: %q", got)
	assert.Contains(t, got, "...")
}

func TestTruncateText_RuneCounting(t *testing.T) {
	// Multibyte text: byte length blows past the limit long before the
	// rune count does.
	text := strings.Repeat("芋", 100)
	got := TruncateText(text, MaxTextLength)
	assert.LessOrEqual(t, len([]rune(got)), MaxTextLength)
}

func TestFallbackFor(t *testing.T) {
	assert.Equal(t, FallbackTarget, FallbackFor(PostTarget))
	assert.Equal(t, FallbackGroup, FallbackFor(PostGroup))
	assert.Equal(t, FallbackTargetRepost, FallbackFor(PostTargetRepost))
	assert.Equal(t, FallbackGroupRepost, FallbackFor(PostGroupRepost))
}

func TestFallbacksFitTheLimit(t *testing.T) {
	for _, text := range []string{FallbackTarget, FallbackGroup, FallbackTargetRepost, FallbackGroupRepost} {
		assert.LessOrEqual(t, len([]rune(text)), MaxTextLength)
		assert.Contains(t, text, Hashtags)
	}
}

func TestRepostResponse(t *testing.T) {
	g := NewGenerator("", "gpt-4o-mini", 0.7, 200)

	assert.Equal(t, FallbackTargetRepost, g.RepostResponse(PostTarget))
	assert.Equal(t, FallbackTargetRepost, g.RepostResponse(PostTargetRepost))
	assert.Equal(t, FallbackGroupRepost, g.RepostResponse(PostGroup))
	assert.Equal(t, FallbackGroupRepost, g.RepostResponse(PostGroupRepost))
}
