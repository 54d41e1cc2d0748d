package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"camwatch/internal/device/devicetest"
	"camwatch/internal/display"
	"camwatch/internal/testsupport"
)

func newTestAPI(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *httptest.Server) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithCamera("gate", "0")}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	d, err := New(cfg, Options{
		Source:         devicetest.Scripted(devicetest.Frame(320, 240)),
		DisableHotplug: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		for _, name := range d.Cameras() {
			s, _ := d.Session(name)
			s.Close()
		}
	})
	srv := httptest.NewServer(d.api.routes())
	t.Cleanup(srv.Close)
	return d, srv
}

func startAndWait(t *testing.T, d *Daemon) {
	t.Helper()
	if err := d.StartCamera(context.Background(), "gate"); err != nil {
		t.Fatalf("StartCamera: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := d.CameraStatus("gate"); st.Accepted > 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for frames")
}

func TestAPIStatus(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", resp.StatusCode)
	}
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(status.Cameras) != 1 || status.Cameras[0].Name != "gate" {
		t.Fatalf("unexpected cameras: %+v", status.Cameras)
	}
}

func TestAPIUnknownCamera(t *testing.T) {
	_, srv := newTestAPI(t)
	resp, err := http.Post(srv.URL+"/api/cameras/ghost/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	_, srv := newTestAPI(t, testsupport.WithAPIToken("s3cret"))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"same length wrong token", "Bearer s3creX", http.StatusUnauthorized},
		{"prefix of token", "Bearer s3c", http.StatusUnauthorized},
		{"empty credential", "Bearer ", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", "bearer s3cret", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			var body map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			if tc.want == http.StatusUnauthorized && body["error"] != "unauthorized" {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}
}

func TestAPIFrameAndView(t *testing.T) {
	d, srv := newTestAPI(t)
	startAndWait(t, d)

	resp, err := http.Get(srv.URL + "/api/cameras/gate/frame.jpg?w=160&h=160")
	if err != nil {
		t.Fatalf("GET frame: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("unexpected frame response %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte{0xFF, 0xD8}) {
		t.Fatalf("frame body is not a JPEG")
	}

	resp, err = http.Post(srv.URL+"/api/cameras/gate/view", "application/json", strings.NewReader(`{"zoom_delta":1}`))
	if err != nil {
		t.Fatalf("POST view: %v", err)
	}
	var state display.ViewState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	resp.Body.Close()
	if state.Zoom != 2 {
		t.Fatalf("expected zoom 2, got %v", state.Zoom)
	}
}

func TestAPICaptureWithoutFrameConflicts(t *testing.T) {
	_, srv := newTestAPI(t)
	resp, err := http.Post(srv.URL+"/api/cameras/gate/capture", "application/json", nil)
	if err != nil {
		t.Fatalf("POST capture: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestAPIMetricsCountRequests(t *testing.T) {
	_, srv := newTestAPI(t)
	if resp, err := http.Get(srv.URL + "/api/status"); err == nil {
		resp.Body.Close()
	}
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `camwatch_api_requests_total{method="GET",route="GET /api/status",status="200"} 1`) {
		t.Fatalf("request counter missing from metrics output")
	}
}

func TestAPILiveStreamsJPEG(t *testing.T) {
	d, srv := newTestAPI(t)
	startAndWait(t, d)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/cameras/gate/live?w=160&h=120"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial live: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read live frame: %v", err)
	}
	if kind != websocket.BinaryMessage || !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Fatalf("expected binary JPEG message, got type %d", kind)
	}
}

func TestAPILiveServesEveryViewer(t *testing.T) {
	d, srv := newTestAPI(t)
	startAndWait(t, d)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/cameras/gate/live?w=160&h=120"
	var conns []*websocket.Conn
	for range 2 {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial live: %v", err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	if _, err := d.Frame("gate", 160, 120); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	for i, conn := range conns {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for n := range 3 {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("viewer %d frame %d: %v", i, n, err)
			}
			if kind != websocket.BinaryMessage || !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
				t.Fatalf("viewer %d: expected binary JPEG message, got type %d", i, kind)
			}
		}
	}
}
