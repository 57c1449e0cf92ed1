package webd

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/rotblauer/trajd/common"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/resultdb"
	"github.com/tidwall/gjson"
)

const triangleRequest = `{"element_type":"float64","timestamp_type":"timestamp[ms]",
"ids":["a"],"x":[0,3],"y":[0,4],"time":[0,1000],"length":[2]}`

func do(t *testing.T, h http.Handler, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://localhost/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestWebDaemon_statusReport(t *testing.T) {
	d := newTestWebDaemon(t, false)
	resp, body := do(t, d.NewRouter(), "GET", "/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	status := webDaemonStatus{}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status.Uptime == "" {
		t.Fatal("uptime is empty")
	}
	if !status.WSOpen {
		t.Error("websockets should be open")
	}
}

func TestWebDaemon_compute(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, false)
	router := d.NewRouter()

	resp, body := do(t, router, "POST", "/compute", triangleRequest)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d: %s", resp.StatusCode, body)
	}
	if got := gjson.GetBytes(body, "distance.0").Float(); got != 5000 {
		t.Errorf("distance: got %v, want 5000", got)
	}
	if got := gjson.GetBytes(body, "speed.0").Float(); got != 5000 {
		t.Errorf("speed: got %v, want 5000", got)
	}
	if got := gjson.GetBytes(body, "status.0").String(); got != "ok" {
		t.Errorf("status: got %q", got)
	}
	batchID := gjson.GetBytes(body, "batch_id").String()
	if batchID == "" {
		t.Fatal("missing batch id")
	}

	// Same request, same answer, from cache.
	_, body = do(t, router, "POST", "/compute", triangleRequest)
	if got := gjson.GetBytes(body, "batch_id").String(); got != batchID {
		t.Errorf("cached batch id: got %q, want %q", got, batchID)
	}
	if d.computeCache.Len() != 1 {
		t.Errorf("cache len: got %d, want 1", d.computeCache.Len())
	}
}

func TestWebDaemon_computeCacheHitIsLatest(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, true)
	router := d.NewRouter()

	computed := make(chan BatchEvent, 4)
	sub := d.feedComputed.Subscribe(computed)
	defer sub.Unsubscribe()

	_, body := do(t, router, "POST", "/compute", triangleRequest)
	batchID := gjson.GetBytes(body, "batch_id").String()
	resp, body := do(t, router, "POST", "/points",
		`{"trajectory":"b","x":0,"y":0,"time":"2024-12-20T22:00:00Z"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("points: status code %d: %s", resp.StatusCode, body)
	}
	pointsID := gjson.GetBytes(body, "batch_id").String()

	// Cache hit.
	_, body = do(t, router, "POST", "/compute", triangleRequest)
	if got := gjson.GetBytes(body, "batch_id").String(); got != batchID {
		t.Fatalf("cached batch id: got %q, want %q", got, batchID)
	}

	resp, body = do(t, router, "GET", "/last", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("last: got %d", resp.StatusCode)
	}
	if got := gjson.GetBytes(body, "batch_id").String(); got != batchID {
		t.Errorf("last batch id: got %q, want %q", got, batchID)
	}
	if got := gjson.GetBytes(body, "source").String(); got != "compute" {
		t.Errorf("last source: got %q", got)
	}

	var sent []string
	for len(computed) > 0 {
		sent = append(sent, (<-computed).BatchID)
	}
	if want := []string{batchID, pointsID, batchID}; !cmp.Equal(sent, want) {
		t.Errorf("feed: got %v, want %v", sent, want)
	}

	// The store holds each batch once.
	metas, err := d.store.Batches()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 {
		t.Errorf("stored batches: got %d, want 2", len(metas))
	}
}

func TestWebDaemon_computeSentinels(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, false)
	body := `{"timestamp_type":"timestamp[us]","x":[0,1,1,2],"y":[0,1,1,2],"time":[0,5,7,7],"length":[1,1,2]}`
	resp, b := do(t, d.NewRouter(), "POST", "/compute", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d: %s", resp.StatusCode, b)
	}
	res := computeResponse{}
	if err := json.Unmarshal(b, &res); err != nil {
		t.Fatal(err)
	}
	want := []trajectory.Status{trajectory.StatusTooFewPoints, trajectory.StatusTooFewPoints, trajectory.StatusZeroDuration}
	for i, s := range want {
		if res.Status[i] != s {
			t.Errorf("status[%d]: got %v, want %v", i, res.Status[i], s)
		}
	}
	if res.Distance[2] != -3 || res.Speed[2] != -3 {
		t.Errorf("zero duration sentinel: got %v %v", res.Distance[2], res.Speed[2])
	}
}

func TestWebDaemon_computeBadRequest(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, false)
	router := d.NewRouter()
	cases := []struct {
		name string
		body string
	}{
		{"malformed", `{"x":`},
		{"unknown element type", `{"element_type":"complex128","x":[0,1],"y":[0,1],"time":[0,1],"length":[2]}`},
		{"integer coordinates", `{"element_type":"int64","x":[0,1],"y":[0,1],"time":[0,1],"length":[2]}`},
		{"non-timestamp time", `{"timestamp_type":"int64","x":[0,1],"y":[0,1],"time":[0,1],"length":[2]}`},
		{"size mismatch", `{"x":[0,1],"y":[0],"time":[0,1],"length":[2]}`},
		{"empty", `{"x":[],"y":[],"time":[],"length":[]}`},
		{"group out of range", `{"x":[0,1],"y":[0,1],"time":[0,1],"length":[3]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, body := do(t, router, "POST", "/compute", c.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status code: got %d, want 400: %s", resp.StatusCode, body)
			}
		})
	}
	if d.lastBatch.Get(lastBatchKey) != nil {
		t.Error("failed requests should not set the last batch")
	}
}

func TestWebDaemon_computeTooLarge(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, false)
	d.Config.MaxBodyBytes = 16
	resp, _ := do(t, d.NewRouter(), "POST", "/compute", triangleRequest)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status code: got %d, want 413", resp.StatusCode)
	}
}

func TestWebDaemon_points(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, false)
	router := d.NewRouter()

	resp, _ := do(t, router, "GET", "/last", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("last before any batch: got %d, want 404", resp.StatusCode)
	}

	body := `{"trajectory":"b","x":0,"y":0,"time":"2024-12-20T22:00:00Z"}
{"trajectory":"a","x":1,"y":1,"time":"2024-12-20T22:00:00Z"}
{"trajectory":"b","x":3,"y":4,"time":"2024-12-20T22:00:01Z"}
`
	resp, b := do(t, router, "POST", "/points?element=float32", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d: %s", resp.StatusCode, b)
	}
	out := pointsResponse{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Summaries) != 2 {
		t.Fatalf("summaries: got %d, want 2", len(out.Summaries))
	}
	first, second := out.Summaries[0], out.Summaries[1]
	if first.Trajectory != "b" || first.Points != 2 || first.Distance != 5000 || first.Speed != 5000 {
		t.Errorf("first summary: %+v", first)
	}
	if second.Trajectory != "a" || second.Status != trajectory.StatusTooFewPoints {
		t.Errorf("second summary: %+v", second)
	}
	if out.Stats.OK != 1 || out.Stats.TooFewPoints != 1 {
		t.Errorf("stats: %+v", out.Stats)
	}

	resp, b = do(t, router, "GET", "/last", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("last: got %d", resp.StatusCode)
	}
	last := BatchEvent{}
	if err := json.Unmarshal(b, &last); err != nil {
		t.Fatal(err)
	}
	if last.BatchID != out.BatchID || last.Source != "points" || last.Points != 3 {
		t.Errorf("last: %+v", last)
	}
}

func TestWebDaemon_pointsBadRequest(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, false)
	router := d.NewRouter()
	cases := []struct {
		name   string
		target string
		body   string
	}{
		{"bad element", "/points?element=nope", `{"trajectory":"a","x":0,"y":0,"time":"2024-12-20T22:00:00Z"}`},
		{"bad timestamp", "/points?timestamp=nope", `{"trajectory":"a","x":0,"y":0,"time":"2024-12-20T22:00:00Z"}`},
		{"missing time", "/points", `{"trajectory":"a","x":0,"y":0}`},
		{"malformed", "/points", `{"trajectory":"a","x":0,`},
		{"no points", "/points", ``},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, body := do(t, router, "POST", c.target, c.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status code: got %d, want 400: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestWebDaemon_batches(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()

	t.Run("no store", func(t *testing.T) {
		d := newTestWebDaemon(t, false)
		resp, _ := do(t, d.NewRouter(), "GET", "/batches", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status code: got %d, want 404", resp.StatusCode)
		}
	})

	d := newTestWebDaemon(t, true)
	router := d.NewRouter()
	_, body := do(t, router, "POST", "/compute", triangleRequest)
	batchID := gjson.GetBytes(body, "batch_id").String()

	resp, body := do(t, router, "GET", "/batches", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d: %s", resp.StatusCode, body)
	}
	metas := []resultdb.Meta{}
	if err := json.Unmarshal(body, &metas); err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].BatchID != batchID || metas[0].Points != 2 || metas[0].Source != "compute" {
		t.Fatalf("metas: %+v", metas)
	}

	resp, body = do(t, router, "GET", "/batches/"+batchID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d: %s", resp.StatusCode, body)
	}
	sums := []trajectory.Summary{}
	if err := json.Unmarshal(body, &sums); err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 || sums[0].Trajectory != "a" || sums[0].Distance != 5000 {
		t.Errorf("summaries: %+v", sums)
	}

	resp, _ = do(t, router, "GET", "/batches/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown batch: got %d, want 404", resp.StatusCode)
	}
}

func TestWebDaemon_socketBroadcast(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, false)
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/socket", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for d.melodyInstance.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(server.URL+"/compute", "application/json", bytes.NewBufferString(triangleRequest))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	batchID := gjson.GetBytes(body, "batch_id").String()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(msg, "action").String(); got != "computed" {
		t.Errorf("action: got %q", got)
	}
	if got := gjson.GetBytes(msg, "batch.batch_id").String(); got != batchID {
		t.Errorf("batch id: got %q, want %q", got, batchID)
	}

	// A late subscriber gets the last batch on connect.
	late, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/socket", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer late.Close()
	if err := late.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, msg, err = late.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(msg, "batch.batch_id").String(); got != batchID {
		t.Errorf("late batch id: got %q, want %q", got, batchID)
	}
}
