package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := RecordingNotFound("r--EG_1--u")
	assert.True(t, errors.Is(err, ErrRecordingNotFound))
	assert.False(t, errors.Is(err, ErrRecordingNotStopped))

	wrapped := fmt.Errorf("stop: %w", RecordingCannotBeStoppedWhileStarting("r--EG_1--u"))
	assert.True(t, errors.Is(wrapped, ErrRecordingCannotStopWhileStarting))
	assert.Equal(t, CodeRecordingCannotStopWhileStarting, CodeOf(wrapped))
}

func TestError_MessagesAreStable(t *testing.T) {
	assert.Equal(t, "recording 'x' not found", RecordingNotFound("x").Error())
	assert.Equal(t, "recording 'x' is not stopped yet", RecordingNotStopped("x").Error())
}

func TestInternal_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("start egress", cause)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
