package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd(&cli{})
	require.Equal(t, "flowfact", cmd.Use)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	require.True(t, names["console"])
	require.True(t, names[serveCmdName])
}

func TestSetupRequiresFailurePolicy(t *testing.T) {
	t.Setenv("FLOWFACT_SEQUENCER_ON_FAILURE", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  base_url: http://localhost:1/flowfact\n"), 0o600))

	c := &cli{}
	cmd := newRootCmd(c)
	cmd.SetArgs([]string{serveCmdName, "--config", path})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "load config")
	require.Nil(t, c.app)
	c.teardown()
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		done <- serve(ctx, ln, handler, zap.NewNop())
	}()

	url := "http://" + ln.Addr().String() + "/"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body bytes.Buffer
		_, _ = body.ReadFrom(resp.Body)
		return resp.StatusCode == http.StatusOK && body.String() == "ok"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}

func TestServeReportsListenerFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = serve(context.Background(), ln, http.NotFoundHandler(), zap.NewNop())
	require.ErrorContains(t, err, "http server")
}
