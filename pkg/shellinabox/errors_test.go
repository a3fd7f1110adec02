package shellinabox

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSessionClosed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "400", err: NewHTTPStatusError("poll", http.StatusBadRequest), expected: true},
		{name: "500", err: NewHTTPStatusError("send", http.StatusInternalServerError), expected: true},
		{name: "503", err: NewHTTPStatusError("poll", http.StatusServiceUnavailable), expected: false},
		{name: "404", err: NewHTTPStatusError("poll", http.StatusNotFound), expected: false},
		{name: "wrapped 400", err: fmt.Errorf("worker: %w", NewHTTPStatusError("poll", 400)), expected: true},
		{name: "transport", err: &TransportError{Op: "poll", Err: errors.New("boom")}, expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsSessionClosed(tt.err))
		})
	}
}

func TestRootCause(t *testing.T) {
	inner := syscall.ECONNREFUSED
	err := &TransportError{Op: "open", Err: fmt.Errorf("Post \"http://h\": %w", fmt.Errorf("dial tcp: %w", inner))}

	assert.Equal(t, inner, RootCause(err))
	assert.Nil(t, RootCause(nil))

	plain := errors.New("plain")
	assert.Equal(t, plain, RootCause(plain))

	joined := errors.Join(fmt.Errorf("a: %w", plain), errors.New("b"))
	assert.Equal(t, plain, RootCause(joined))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "poll failed: HTTP 503: Service Unavailable",
		NewHTTPStatusError("poll", http.StatusServiceUnavailable).Error())
	assert.Equal(t, "send failed: response lacks marker",
		(&ProtocolError{Op: "send", Reason: "response lacks marker"}).Error())
	assert.Equal(t, "open failed: refused",
		(&TransportError{Op: "open", Err: errors.New("refused")}).Error())
}
