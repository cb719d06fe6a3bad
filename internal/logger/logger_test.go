package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env   string
		debug bool
	}{
		{"", true},
		{"development", true},
		{"Local", true},
		{"production", false},
		{"staging", false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			lg, err := New(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, lg.Core().Enabled(zap.DebugLevel))
			assert.True(t, lg.Core().Enabled(zap.InfoLevel))
		})
	}
}
