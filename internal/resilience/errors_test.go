package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked", Transient(errors.New("busy"), 503), true},
		{"wrapped mark", fmt.Errorf("download: %w", Transient(errors.New("busy"), 429)), true},
		{"plain", errors.New("file not found"), false},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"ftp busy", errors.New("421 Too many connections"), true},
		{"ftp missing", errors.New("550 No such file"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransient(t *testing.T) {
	assert.NoError(t, Transient(nil, 500))

	inner := errors.New("server error")
	err := Transient(inner, 502)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "server error", err.Error())

	var te *TransientError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, 502, te.StatusCode)
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 501} {
		assert.False(t, IsTransientStatus(code), code)
	}
}
