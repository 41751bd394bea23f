package helpers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDeniedError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		denied bool
	}{
		{"nil", nil, false},
		{"authorization failed", errors.New("AuthorizationFailed: client does not have permission"), true},
		{"linked authorization failed", errors.New("LinkedAuthorizationFailed"), true},
		{"policy", errors.New("RequestDisallowedByPolicy"), true},
		{"forbidden", errors.New("RESPONSE 403: Forbidden"), true},
		{"legacy phrasing", errors.New("the client does not have authorization to perform action 'Microsoft.Network/virtualNetworks/write'"), true},
		{"wrapped", fmt.Errorf("creating vnet: %w", errors.New("AuthorizationFailed")), true},
		{"throttled", errors.New("RESPONSE 429: TooManyRequests"), false},
		{"not found", errors.New("ResourceNotFound"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.denied, IsDeniedError(tt.err))
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, IsNotFoundError(nil))
	assert.True(t, IsNotFoundError(errors.New("ResourceGroupNotFound: could not find rg")))
	assert.True(t, IsNotFoundError(errors.New("ResourceNotFound")))
	assert.False(t, IsNotFoundError(errors.New("Conflict")))
}

func TestIsConflictError(t *testing.T) {
	assert.False(t, IsConflictError(nil))
	assert.True(t, IsConflictError(errors.New("RESPONSE 409: Conflict")))
	assert.False(t, IsConflictError(errors.New("AuthorizationFailed")))
}
