package shellinabox

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sibterm/internal/sibtest"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.OpenRetries = 0
	opts.RequestTimeout = 5 * time.Second
	return opts
}

func TestClientOpen(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()

	client := NewClient(server.URL(), testOptions())
	defer client.Close()

	session, err := client.Open(context.Background(), Dimensions{Width: 80, Height: 24})
	require.NoError(t, err)
	assert.Equal(t, "abc123", session)

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "open", requests[0].Kind)
	assert.Equal(t, 80, requests[0].Width)
	assert.Equal(t, 24, requests[0].Height)
	assert.Equal(t, server.URL(), requests[0].RootURL)
}

func TestClientOpenHTTPStatus(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()
	server.SetOpenStatus(http.StatusServiceUnavailable)

	client := NewClient(server.URL(), testOptions())
	_, err := client.Open(context.Background(), DefaultDimensions())

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "open", statusErr.Op)
	assert.Len(t, server.Requests(), 1, "status responses must not be retried")
}

func TestClientOpenProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>nope</html>"},
		{name: "missing session", body: `{"other": "x"}`},
		{name: "empty session", body: `{"session": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, testOptions())
			_, err := client.Open(context.Background(), DefaultDimensions())

			var protoErr *ProtocolError
			require.ErrorAs(t, err, &protoErr)
			assert.Equal(t, "open", protoErr.Op)
		})
	}
}

func TestClientOpenTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	opts := testOptions()
	opts.OpenRetries = 1
	opts.RetryWaitMin = time.Millisecond
	opts.RetryWaitMax = 2 * time.Millisecond
	client := NewClient(endpoint, opts)

	_, err := client.Open(context.Background(), DefaultDimensions())
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.NotContains(t, RootCause(err).Error(), "giving up")
}

func TestClientPoll(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()
	server.PushOutput("ls\r\nfile.txt\r\n$ ")

	client := NewClient(server.URL(), testOptions())
	data, err := client.Poll(context.Background(), "abc123", Dimensions{Width: 100, Height: 40})
	require.NoError(t, err)
	assert.Equal(t, "ls\r\nfile.txt\r\n$ ", data)

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "poll", requests[0].Kind)
	assert.Equal(t, "abc123", requests[0].Session)
	assert.Equal(t, 100, requests[0].Width)
	assert.Equal(t, 40, requests[0].Height)
}

func TestClientPollErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		server := sibtest.NewServer("abc123")
		defer server.Close()
		server.SetPollStatus(http.StatusBadRequest)

		client := NewClient(server.URL(), testOptions())
		_, err := client.Poll(context.Background(), "abc123", DefaultDimensions())
		assert.True(t, IsSessionClosed(err))
	})

	t.Run("missing data", func(t *testing.T) {
		server := sibtest.NewServer("abc123")
		defer server.Close()
		server.SetPollBody(`{"session":"abc123"}`)

		client := NewClient(server.URL(), testOptions())
		_, err := client.Poll(context.Background(), "abc123", DefaultDimensions())
		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
		assert.Equal(t, "poll", protoErr.Op)
	})

	t.Run("invalid json", func(t *testing.T) {
		server := sibtest.NewServer("abc123")
		defer server.Close()
		server.SetPollBody(`{"data":`)

		client := NewClient(server.URL(), testOptions())
		_, err := client.Poll(context.Background(), "abc123", DefaultDimensions())
		var protoErr *ProtocolError
		assert.ErrorAs(t, err, &protoErr)
	})
}

func TestClientPollCancel(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()

	client := NewClient(server.URL(), testOptions())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Poll(ctx, "abc123", DefaultDimensions())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not return after cancel")
	}
}

func TestClientSend(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()

	client := NewClient(server.URL(), testOptions())
	err := client.Send(context.Background(), "abc123", Dimensions{Width: 90, Height: 30}, []byte("ls\r"))
	require.NoError(t, err)

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "send", requests[0].Kind)
	assert.Equal(t, hex.EncodeToString([]byte("ls\r")), requests[0].Keys)
	assert.Equal(t, "6c730d", requests[0].Keys)
	assert.Equal(t, 90, requests[0].Width)
	assert.Equal(t, "ls\r", server.Keys())
}

func TestClientSendEmptyKeys(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()

	client := NewClient(server.URL(), testOptions())
	require.NoError(t, client.Send(context.Background(), "abc123", DefaultDimensions(), nil))

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "send", requests[0].Kind)
	assert.Empty(t, requests[0].Keys)
}

func TestClientSendMissingMarker(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()
	server.SetSendBody("<html><head><title>Busy</title></head></html>")

	client := NewClient(server.URL(), testOptions())
	err := client.Send(context.Background(), "abc123", DefaultDimensions(), []byte("x"))

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "send", protoErr.Op)
}

func TestClientSendStatus(t *testing.T) {
	server := sibtest.NewServer("abc123")
	defer server.Close()
	server.SetSendStatus(http.StatusForbidden)

	client := NewClient(server.URL(), testOptions())
	err := client.Send(context.Background(), "abc123", DefaultDimensions(), []byte("x"))

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.False(t, IsSessionClosed(err))
}

func TestClientUserAgent(t *testing.T) {
	agents := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
		w.Write([]byte(`{"session":"s","data":""}`))
	}))
	defer server.Close()

	opts := testOptions()
	opts.UserAgent = "sibterm-test"
	client := NewClient(server.URL, opts)

	_, err := client.Open(context.Background(), DefaultDimensions())
	require.NoError(t, err)
	_, err = client.Poll(context.Background(), "s", DefaultDimensions())
	require.NoError(t, err)

	assert.Equal(t, "sibterm-test", <-agents)
	assert.Equal(t, "sibterm-test", <-agents)
}
