package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/logging"
)

const testConfig = `
source:
  name: users
  baseUrl: %s
  operations:
    - type: query
      field: getUser
      path: /users/${id}
      responseTypeName: User
      responseSample: {id: 1, name: x}
    - type: subscription
      field: userCreated
      pubsubTopic: users:created
      responseTypeName: User
      responseSample: {id: 1, name: x}
server:
  addr: 127.0.0.1:0
  shutdownTimeout: 1s
logging:
  level: error
`

func usersAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":`+strings.TrimPrefix(r.URL.Path, "/users/")+`,"name":"Ada"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restgraph.yaml")
	body := strings.Replace(testConfig, "%s", baseURL, 1)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := runCmd(t, "version")
	require.NoError(t, err)
	require.Equal(t, "restgraph dev (unknown)\n", out)
}

func TestHelp(t *testing.T) {
	out, _, err := runCmd(t, "help", "serve")
	require.NoError(t, err)
	require.Contains(t, out, "--addr")
}

func TestCompileSDL(t *testing.T) {
	cfg := writeConfig(t, "http://api.invalid")
	out, _, err := runCmd(t, "compile-sdl", "--config", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "type Query")
	require.Contains(t, out, "getUser(id: String): User")
	require.Contains(t, out, "userCreated: User")

	file := filepath.Join(t.TempDir(), "schema.graphql")
	_, _, err = runCmd(t, "compile-sdl", "-c", cfg, "--out", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, out, string(data))
}

func TestCompileSDLMissingConfig(t *testing.T) {
	_, _, err := runCmd(t, "compile-sdl", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, config.ErrFileNotFound)
}

func TestQuery(t *testing.T) {
	cfg := writeConfig(t, usersAPI(t).URL)
	out, _, err := runCmd(t, "query", "-c", cfg, `query($id: String) { getUser(id: $id) { id name } }`, "--variables", `{"id":"7"}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"getUser":{"id":7,"name":"Ada"}}}`, out)

	out, _, err = runCmd(t, "query", "-c", cfg, `{ __type(name: "User") { name } }`)
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"__type":{"name":"User"}}}`, out)

	_, _, err = runCmd(t, "query", "-c", cfg, `{ nope }`)
	require.Error(t, err)

	_, _, err = runCmd(t, "query", "-c", cfg, `subscription { userCreated { id } }`)
	require.ErrorContains(t, err, "subscriptions need a running server")
}

func TestServe(t *testing.T) {
	cfg, err := config.LoadFile(writeConfig(t, usersAPI(t).URL))
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, logging.Nop(), ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/graphql", "application/json", strings.NewReader(`{"query":"{ getUser(id: \"3\") { name } }"}`))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Equal(t, map[string]any{"data": map[string]any{"getUser": map[string]any{"name": "Ada"}}}, out)

	resp, err = http.Post(base+"/webhooks/users:created", "application/json", strings.NewReader(`{"id":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(metrics), "restgraph_webhook_events_total")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.PubSub.Backend = "kafka"
	_, err := openBackends(context.Background(), &cfg, logging.Nop(), nil)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
