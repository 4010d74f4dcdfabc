package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json", `{"score": 80}`, `{"score": 80}`},
		{"json fence", "```json\n{\"score\": 80}\n```", `{"score": 80}`},
		{"bare fence", "```\n{\"score\": 80}\n```", `{"score": 80}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}

func TestConfig_ModelFallback(t *testing.T) {
	cfg := &Config{Models: map[ModelTier]string{TierStandard: "gemini-2.5-flash"}}
	assert.Equal(t, "gemini-2.5-flash", cfg.Model(TierLite))

	cfg = DefaultConfig()
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Model(TierLite))

	empty := &Config{Models: map[ModelTier]string{}}
	assert.Equal(t, "", empty.Model(TierLite))
}
