package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/listener"
)

func TestStartControlServer(t *testing.T) {
	c := newTestCLI(t)
	c.enableHistory(t)
	c.writeScript(t, "greet.yaml", greetScript)

	root := NewRootCommand("test")
	root.SetErr(&bytes.Buffer{})
	env, err := loadEnvironment(&RootOptions{ConfigPath: c.config, Version: "test"}, root)
	require.NoError(t, err)
	env.cfg.Listener.Host = "127.0.0.1"
	env.cfg.Listener.Port = 0
	env.cfg.Listener.RequireAuthentication = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := connectServices(ctx, env)
	require.NoError(t, err)
	defer svc.close()
	require.NoError(t, svc.healthCheck(ctx))

	hub := listener.NewHub(env.logger)
	manager := automation.NewManager(env.settings, svc.options(hub))
	defer shutdownManager(manager, env)

	srv, stop, err := startControlServer(ctx, env, svc, manager, hub)
	require.NoError(t, err)
	defer stop()

	base := "http://" + srv.Addr().String() + "/api/v1"

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "test", health["version"])

	body, err := json.Marshal(listener.Envelope{
		Action:    listener.ActionStart,
		AuthToken: env.cfg.Listener.AuthKey,
		Payload:   json.RawMessage(`{"script":"greet"}`),
	})
	require.NoError(t, err)
	resp, err = http.Post(base+"/control", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var ctl listener.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ctl))
	resp.Body.Close()
	require.Equal(t, listener.ResultOK, ctl.Result, "response: %+v", ctl)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	res, err := manager.Wait(waitCtx, ctl.RunID)
	require.NoError(t, err)
	assert.Equal(t, automation.StateCompleted, res.State)
	assert.Equal(t, "hello world", res.Variables["greeting"])
}

func TestListen_StopsOnCancel(t *testing.T) {
	c := newTestCLI(t)

	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", c.config, "listen", "--host", "127.0.0.1", "--port", "0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("listen did not stop after cancel")
	}
	assert.Contains(t, out.String(), "listening on 127.0.0.1:")
}

func TestListen_BindError(t *testing.T) {
	c := newTestCLI(t)
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	_, _, err = c.execute("--format", "json", "listen", "--host", "127.0.0.1", "--port", port)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
