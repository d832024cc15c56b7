package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/codec"
)

func TestHTTPSenderDeliversOverTheWire(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.Proto{}} {
		t.Run(c.ContentType(), func(t *testing.T) {
			node := newNode(t, false, nil)
			srv := NewServer(node, ServerOptions{Address: "127.0.0.1:0"})
			var bound string
			srv.AddOnListeningCallBack(func(addr string) { bound = addr })
			require.NoError(t, srv.Start())
			defer srv.Stop()
			assert.Equal(t, srv.Addr(), bound)

			sender := NewHTTPSender(nil, func(int) string { return "http://" + srv.Addr() }, c)
			msg := benor.Message{Value: benor.Zero, Round: 3, Step: benor.StepDecide}
			require.NoError(t, sender.Send(context.Background(), 1, msg))

			_, step2 := node.Buffered(3)
			assert.Equal(t, []benor.Value{benor.Zero}, step2)
		})
	}
}

func TestListenTwiceFails(t *testing.T) {
	srv := NewServer(newNode(t, false, nil), ServerOptions{})
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	defer srv.Stop()
	assert.ErrorIs(t, srv.Listen("127.0.0.1:0"), ErrAlreadyListening)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
	assert.Empty(t, srv.Addr())
}

func TestHTTPSenderReportsFailures(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer rejecting.Close()

	sender := NewHTTPSender(nil, func(int) string { return rejecting.URL }, nil)
	err := sender.Send(context.Background(), 0, benor.Message{Value: benor.One, Round: 1, Step: 1})
	assert.ErrorContains(t, err, "429")

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)
	sender = NewHTTPSender(nil, func(int) string { return slow.URL }, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = sender.Send(ctx, 0, benor.Message{Value: benor.One, Round: 1, Step: 1})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestShutdownClosesUnusedConnections(t *testing.T) {
	srv := NewServer(newNode(t, false, nil), ServerOptions{})
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	// A dialed connection that never sends a request stays in the new state,
	// which graceful shutdown waits on.
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	started := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(started), time.Second)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection should be closed by the server")
	}
	assert.Error(t, err)
}

func TestProbePeers(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RouteStatus, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer up.Close()

	urls := map[int]string{0: up.URL, 1: "http://127.0.0.1:1"}
	ready := ProbePeers(nil, 2, func(i int) string { return urls[i] })
	assert.False(t, ready(), "peer 1 does not answer")

	urls[1] = up.URL
	assert.True(t, ready())
}
