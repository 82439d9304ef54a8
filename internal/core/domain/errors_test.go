package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrConvergence", ErrConvergence},
		{"ErrTransient", ErrTransient},
		{"ErrOutputShape", ErrOutputShape},
		{"ErrRerankUnavailable", ErrRerankUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestConfigurationError_Is(t *testing.T) {
	err := fmt.Errorf("split: %w", NewConfigurationError("overlap", "must be less than %d", 10))

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.False(t, errors.Is(err, ErrConvergence))
	assert.Contains(t, err.Error(), "overlap: must be less than 10")

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "overlap", cfgErr.Field)
}

func TestConvergenceError_Is(t *testing.T) {
	err := &ConvergenceError{Depth: 2, Before: 4, After: 4, Reason: "level did not shrink"}

	assert.True(t, errors.Is(err, ErrConvergence))
	assert.Contains(t, err.Error(), "4 -> 4")
}

func TestCollaboratorError_Transient(t *testing.T) {
	transient := &CollaboratorError{Collaborator: "openai", Op: "generate", StatusCode: 429, Transient: true}
	permanent := &CollaboratorError{Collaborator: "openai", Op: "generate", StatusCode: 400, Err: errors.New("bad request")}

	assert.True(t, IsTransient(transient))
	assert.True(t, errors.Is(transient, ErrCollaborator))
	assert.False(t, IsTransient(permanent))
	assert.True(t, errors.Is(permanent, ErrCollaborator))
	assert.Equal(t, "openai generate (status 400): bad request", permanent.Error())
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", ErrRateLimited)))
	assert.False(t, IsTransient(nil))
}

func TestOutputShapeError_Is(t *testing.T) {
	err := &OutputShapeError{Collaborator: "anthropic", Reason: "no content blocks"}

	assert.True(t, errors.Is(err, ErrOutputShape))
	assert.False(t, IsTransient(err))
}

func TestIsTransientStatus(t *testing.T) {
	assert.True(t, IsTransientStatus(429))
	assert.True(t, IsTransientStatus(503))
	assert.True(t, IsTransientStatus(408))
	assert.False(t, IsTransientStatus(400))
	assert.False(t, IsTransientStatus(404))
}
