package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"uploading to processing", SessionUploading, SessionProcessing, true},
		{"uploading to failed", SessionUploading, SessionFailed, true},
		{"uploading to expired", SessionUploading, SessionExpired, true},
		{"uploading to completed skips processing", SessionUploading, SessionCompleted, false},
		{"processing to completed", SessionProcessing, SessionCompleted, true},
		{"processing to failed", SessionProcessing, SessionFailed, true},
		{"processing never expires mid-flight", SessionProcessing, SessionExpired, false},
		{"completed is terminal", SessionCompleted, SessionProcessing, false},
		{"failed is terminal", SessionFailed, SessionProcessing, false},
		{"expired is terminal", SessionExpired, SessionUploading, false},
		{"no self loop", SessionProcessing, SessionProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, SessionUploading.Terminal())
	assert.False(t, SessionProcessing.Terminal())
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionFailed.Terminal())
	assert.True(t, SessionExpired.Terminal())
}

func TestSessionStatusValidate(t *testing.T) {
	for _, status := range []SessionStatus{SessionUploading, SessionProcessing, SessionCompleted, SessionFailed, SessionExpired} {
		assert.NoError(t, status.Validate())
	}
	assert.Error(t, SessionStatus("queued").Validate())
}
