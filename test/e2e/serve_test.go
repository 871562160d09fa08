package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func postTask(t *testing.T, sp *serverProc, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(sp.url+"/v1/tasks", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/tasks: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 202\nbody: %s", resp.StatusCode, b)
	}
	var rec map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec
}

func pollStatus(t *testing.T, sp *serverProc, id, expected string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last map[string]any
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/v1/tasks/" + id)
		if err != nil {
			t.Fatalf("GET /v1/tasks/%s: %v", id, err)
		}
		last = nil
		json.NewDecoder(resp.Body).Decode(&last)
		resp.Body.Close()
		if last["status"] == expected {
			return last
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("task %s did not reach %q within %v; last = %v", id, expected, timeout, last)
	return nil
}

func TestServeHealthzAndMetrics(t *testing.T) {
	sp := startServer(t, getBinary(t))

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]string
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" || health["engine"] != "seq" {
		t.Errorf("healthz = %v, want ok on seq", health)
	}

	resp, err = http.Get(sp.url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"parxe_http_requests_total", "parxe_http_request_duration_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestServeRunsTaskToCompletion(t *testing.T) {
	sp := startServer(t, getBinary(t))

	rec := postTask(t, sp, `{"func":"pow","args":[4,2]}`)
	id, ok := rec["id"].(string)
	if !ok || len(id) != 26 {
		t.Fatalf("id = %v, expected 26-char ULID", rec["id"])
	}

	done := pollStatus(t, sp, id, "finished", 10*time.Second)
	if done["result"] != float64(16) {
		t.Errorf("result = %v, want 16", done["result"])
	}

	resp, err := http.Get(sp.url + "/v1/tasks/" + id + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	stream, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(stream), "event: done") {
		t.Errorf("event stream missing done event:\n%s", stream)
	}
}

func TestServeCapturesOutput(t *testing.T) {
	sp := startServer(t, getBinary(t))

	id := postTask(t, sp, `{"func":"echo","args":["hello from parxe"]}`)["id"].(string)
	pollStatus(t, sp, id, "finished", 10*time.Second)

	resp, err := http.Get(sp.url + "/v1/tasks/" + id + "/output")
	if err != nil {
		t.Fatalf("GET output: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	if out["stdout"] != "hello from parxe\n" {
		t.Errorf("stdout = %v", out["stdout"])
	}
}

func TestServeAbortOnLocalEngine(t *testing.T) {
	sp := startServer(t, getBinary(t), "PARXE_ENGINE=local")

	id := postTask(t, sp, `{"func":"sleep","args":[30]}`)["id"].(string)
	pollStatus(t, sp, id, "running", 10*time.Second)

	req, _ := http.NewRequest(http.MethodDelete, sp.url+"/v1/tasks/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	pollStatus(t, sp, id, "aborted", 10*time.Second)
}

func TestServeStructuredJSONLogs(t *testing.T) {
	sp := startServer(t, getBinary(t))

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(sp.stdout.String(), `"msg":"request"`) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	scanner := bufio.NewScanner(strings.NewReader(sp.stdout.String()))
	found := map[string]bool{}
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if msg, ok := entry["msg"].(string); ok {
			found[msg] = true
		}
	}
	for _, msg := range []string{"planner started", "server listening", "request"} {
		if !found[msg] {
			t.Errorf("no %q log entry in stdout\noutput:\n%s", msg, sp.stdout.String())
		}
	}
}

func TestRunCommand(t *testing.T) {
	cmd := exec.Command(getBinary(t), "run", "mul", "6", "7")
	cmd.Dir = t.TempDir()
	cmd.Env = isolatedEnv(t)
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("parxe run: %v", err)
	}
	if string(out) != "42\n" {
		t.Errorf("stdout = %q, want %q", out, "42\n")
	}
}
