package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/incoming-webhook/internal/auth"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close() //nolint:errcheck // Port released for the server under test
	return l.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &out); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "webhookd "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--bogus"}, io.Discard); err == nil {
		t.Error("run() should fail on an unknown flag")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(context.Background(), []string{"--config", "/nonexistent/path/config.yaml"}, io.Discard)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_ConfigFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_CONFIG", "/from/env.yaml")
	if got := getConfigPath(""); got != "/from/env.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
	if got := getConfigPath("/from/flag.yaml"); got != "/from/flag.yaml" {
		t.Errorf("flag should win, got %q", got)
	}
	t.Setenv("WEBHOOK_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want default", got)
	}
}

func TestRun_UnreachableRedis(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: %d
security:
  jwt:
    secret: %q
switches:
  - id: doorbell
persistence:
  backend: redis
  redis:
    url: 127.0.0.1:1
logging:
  level: error
  format: text
`, freePort(t), testSecret))

	if err := run(context.Background(), []string{"-c", path}, io.Discard); err == nil {
		t.Fatal("run() should fail when the persistence backend is unreachable")
	}
}

// TestRun_ServesAndPersists starts the daemon on the file backend with the
// embedded broker, flips a switch, shuts down and restarts.
func TestRun_ServesAndPersists(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)
	path := writeConfig(t, fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: %d
security:
  jwt:
    secret: %q
    require_expiry: true
switches:
  - id: doorbell
    name: Doorbell
persistence:
  backend: file
  file:
    path: %s
mqtt:
  enabled: true
  mode: embedded
websocket:
  enabled: true
logging:
  level: error
  format: text
`, port, testSecret, filepath.Join(dir, "switches.json")))

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	token, err := auth.GenerateToken(testSecret, auth.TokenOptions{TTL: time.Hour, Subject: "test"})
	if err != nil {
		t.Fatal(err)
	}

	start := func() (context.CancelFunc, <-chan error) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx, []string{"--config", path}, io.Discard) }()
		waitHealthy(t, base, done)
		return cancel, done
	}

	cancel, done := start()
	body := post(t, base+"/webhook", token, `{"switch_id":"doorbell","action":"on","attributes":{"source":"frontdoor"}}`)
	if !strings.Contains(body, `"state":"on"`) {
		t.Fatalf("webhook response = %s", body)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run() error = %v", err)
	}

	cancel, done = start()
	defer func() {
		cancel()
		<-done
	}()
	body = post(t, base+"/webhook", token, `{"switch_id":"doorbell","action":"status"}`)
	if !strings.Contains(body, `"state":"on"`) || !strings.Contains(body, `"source":"frontdoor"`) {
		t.Errorf("state after restart = %s", body)
	}
}

func waitHealthy(t *testing.T, base string, done <-chan error) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server did not become healthy")
}

func post(t *testing.T, url, token, body string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
