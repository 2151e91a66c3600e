package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"netsift/internal/app"
	"netsift/internal/config"
	"netsift/internal/metrics"
	"netsift/internal/models"
	"netsift/internal/trace"
)

type chanSource chan trace.Event

func (c chanSource) Subscribe(ctx context.Context, _ string) (<-chan trace.Event, error) {
	out := make(chan trace.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-c:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type staticLister []trace.Process

func (l staticLister) Processes(context.Context) ([]trace.Process, error) { return l, nil }

type testServer struct {
	srv    *Server
	ctl    *app.Controller
	hub    *Hub
	events chanSource
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	cfg.Capture.RateLimitWindow = time.Nanosecond

	reg := prometheus.NewRegistry()
	hub := NewHub(zerolog.Nop())
	events := make(chanSource, 8)
	ctl := app.New(app.Options{
		Config:  cfg,
		Source:  events,
		Lister:  staticLister{{PID: 7, Name: "game"}},
		Logger:  zerolog.Nop(),
		Metrics: metrics.New(reg),
		Sink:    hub,
	})
	srv := New("127.0.0.1:0", ctl, hub, reg, zerolog.Nop())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ctl.Close()
	})
	return &testServer{srv: srv, ctl: ctl, hub: hub, events: events}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) waitRecords(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(ts.ctl.Records()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("records never reached %d", n)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestServer_StartRequiresProcess(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodPost, "/api/capture/start", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing process: status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/capture/start", `{"process":" .exe"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank process: status = %d", rec.Code)
	}
}

func TestServer_CaptureRecordsExport(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/capture/start", `{"process":"game"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	var st app.Status
	json.Unmarshal(rec.Body.Bytes(), &st)
	if !st.Running {
		t.Errorf("status = %+v", st)
	}

	ts.events <- trace.Connect{PID: 7, Address: "8.8.4.4", Port: 443, Protocol: "TCP"}
	ts.waitRecords(t, 1)

	rec = ts.do(t, http.MethodGet, "/api/records", "")
	var records []models.TrafficRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].RemoteAddress != "8.8.4.4" {
		t.Fatalf("records = %+v", records)
	}

	if rec := ts.do(t, http.MethodPost, "/api/export", `{"mode":"selected"}`); rec.Code != http.StatusConflict {
		t.Errorf("empty selection: status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/records/select", `{"keys":["TCP/8.8.4.4"],"selected":true}`)
	if !strings.Contains(rec.Body.String(), `"updated":1`) {
		t.Errorf("select: %s", rec.Body)
	}
	if rec := ts.do(t, http.MethodPost, "/api/records/select", `{"keys":["nonsense"]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad key: status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/export", `{"mode":"selected"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"TCP":1`) {
		t.Errorf("export body = %s", rec.Body)
	}

	if rec := ts.do(t, http.MethodPost, "/api/capture/stop", ""); rec.Code != http.StatusOK {
		t.Errorf("stop: %d", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/capture/start", `{"process":"game"}`)
	ts.events <- trace.Connect{PID: 7, Address: "8.8.4.4", Port: 443, Protocol: "TCP"}
	ts.waitRecords(t, 1)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "netsift_") {
		t.Errorf("metrics output lacks netsift series")
	}
}

func TestHub_BroadcastsNotifications(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ts.hub.Notify(models.StatusNotification("hello", time.Now()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var n models.Notification
	if err := conn.ReadJSON(&n); err != nil {
		t.Fatal(err)
	}
	if n.Kind != models.StatusChanged || n.Status != "hello" {
		t.Errorf("notification = %+v", n)
	}
}
