package statusapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"monad/internal/logging"
)

type codeCounter struct {
	mu    sync.Mutex
	codes map[int]int
}

func (c *codeCounter) ObserveRequest(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = make(map[int]int)
	}
	c.codes[code]++
}

func (c *codeCounter) count(code int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[code]
}

func TestStatusRouteAnswersRepeatedly(t *testing.T) {
	counter := &codeCounter{}
	srv := New("127.0.0.1:0", logging.NewNop(), Options{Observer: counter})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, StatusPath, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, StatusBody, rec.Body.String())
		require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	}
	require.Equal(t, 3, counter.count(http.StatusOK))
}

func TestUnknownPathIsNotFound(t *testing.T) {
	counter := &codeCounter{}
	srv := New("127.0.0.1:0", logging.NewNop(), Options{Observer: counter})

	for _, path := range []string{"/", "/foo", "/status/extra", "/statusx"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		require.NotContains(t, rec.Body.String(), StatusBody, path)
	}
	require.Equal(t, 4, counter.count(http.StatusNotFound))
}

func TestWrongMethodIsRejected(t *testing.T) {
	srv := New("127.0.0.1:0", logging.NewNop(), Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, StatusPath, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NotContains(t, rec.Body.String(), StatusBody)
}

func TestServeOverLoopback(t *testing.T) {
	srv := New("127.0.0.1:0", logging.NewNop(), Options{})
	require.NoError(t, srv.Listen())
	addr := srv.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + addr + StatusPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, StatusBody, string(body))

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	require.Nil(t, srv.Addr())
}

func TestBindConflictFailsImmediately(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	srv := New(occupied.Addr().String(), logging.NewNop(), Options{})
	err = srv.Run(context.Background())
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	require.Equal(t, occupied.Addr().String(), bindErr.Addr)
	require.Nil(t, srv.Addr())
}

func TestServeBeforeListen(t *testing.T) {
	srv := New("127.0.0.1:0", logging.NewNop(), Options{})
	require.Error(t, srv.Serve(context.Background()))
}

func TestShutdownDrainsInFlightRequest(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		handleStatus(w, nil)
	})
	srv := newServer("127.0.0.1:0", logging.NewNop(), Options{}, slow)
	require.NoError(t, srv.Listen())
	addr := srv.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	type result struct {
		code int
		body string
		err  error
	}
	inFlight := make(chan result, 1)
	go func() {
		resp, err := client.Get("http://" + addr + StatusPath)
		if err != nil {
			inFlight <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		inFlight <- result{code: resp.StatusCode, body: string(body), err: err}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached handler")
	}

	cancel()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}, 5*time.Second, 20*time.Millisecond, "listener still accepting after shutdown")

	select {
	case <-serveErr:
		t.Fatal("Serve returned before in-flight request finished")
	default:
	}

	close(release)
	res := <-inFlight
	require.NoError(t, res.err)
	require.Equal(t, http.StatusOK, res.code)
	require.Equal(t, StatusBody, res.body)

	select {
	case err := <-serveErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after drain")
	}
}

func TestShutdownTimeoutAbandonsSlowRequest(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
	})
	srv := newServer("127.0.0.1:0", logging.NewNop(), Options{ShutdownTimeout: 50 * time.Millisecond}, slow)
	require.NoError(t, srv.Listen())
	addr := srv.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	go func() {
		resp, err := client.Get("http://" + addr + StatusPath)
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-entered
	cancel()

	select {
	case err := <-serveErr:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not honour shutdown timeout")
	}
}
