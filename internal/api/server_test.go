package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthview/hearthview-core/internal/auth"
	"github.com/hearthview/hearthview-core/internal/dashboard"
	"github.com/hearthview/hearthview-core/internal/history"
	"github.com/hearthview/hearthview-core/internal/infrastructure/config"
	"github.com/hearthview/hearthview-core/internal/infrastructure/database"
	"github.com/hearthview/hearthview-core/internal/infrastructure/logging"
	"github.com/hearthview/hearthview-core/internal/mcp"
)

const (
	testOperator = "operator"
	testPassword = "correct horse battery staple"
)

// fakeController records command dispatches and serves a canned status.
type fakeController struct {
	mu        sync.Mutex
	connected bool
	status    mcp.Status
	outcome   mcp.CommandOutcome
	calls     []string
}

func (f *fakeController) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeController) ConnectionStatus() mcp.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) record(call string) mcp.CommandOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.outcome
}

func (f *fakeController) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeController) TurnOn(_ context.Context, name string) mcp.CommandOutcome {
	return f.record("turn_on:" + name)
}

func (f *fakeController) TurnOff(_ context.Context, name string) mcp.CommandOutcome {
	return f.record("turn_off:" + name)
}

func (f *fakeController) SetBrightness(_ context.Context, name string, percent int) mcp.CommandOutcome {
	return f.record(fmt.Sprintf("brightness:%s:%d", name, percent))
}

func (f *fakeController) SetTemperature(_ context.Context, name string, degrees float64) mcp.CommandOutcome {
	return f.record(fmt.Sprintf("temperature:%s:%.1f", name, degrees))
}

func (f *fakeController) SetFanSpeed(_ context.Context, name string, percent int) mcp.CommandOutcome {
	return f.record(fmt.Sprintf("fan_speed:%s:%d", name, percent))
}

func (f *fakeController) SetVolume(_ context.Context, name string, percent int) mcp.CommandOutcome {
	return f.record(fmt.Sprintf("volume:%s:%d", name, percent))
}

func (f *fakeController) MediaPause(_ context.Context, name string) mcp.CommandOutcome {
	return f.record("media_pause:" + name)
}

func (f *fakeController) MediaPlay(_ context.Context, name string) mcp.CommandOutcome {
	return f.record("media_play:" + name)
}

func (f *fakeController) MediaNext(_ context.Context, name string) mcp.CommandOutcome {
	return f.record("media_next:" + name)
}

func (f *fakeController) MediaPrevious(_ context.Context, name string) mcp.CommandOutcome {
	return f.record("media_previous:" + name)
}

// apiSource is a minimal dashboard.Source feeding the cache under test.
type apiSource struct {
	mu      sync.Mutex
	payload []byte
	fetches int
}

func (s *apiSource) IsConnected() bool { return true }

func (s *apiSource) FetchFullState(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.payload, nil
}

func (s *apiSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

const homeSnapshot = `- names: Kitchen Light
  domain: light
  state: 'on'
- names: Hallway Light
  domain: light
  state: 'off'
- names: Front Door
  domain: lock
  state: locked`

type harness struct {
	srv        *Server
	ts         *httptest.Server
	controller *fakeController
	source     *apiSource
	cache      *dashboard.Cache
}

func newHarness(t *testing.T, deps func(*Deps)) *harness {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	source := &apiSource{payload: []byte(homeSnapshot)}
	cache := dashboard.NewCache(source, dashboard.NewFilter(config.DefaultCategories()), time.Hour)

	controller := &fakeController{
		connected: true,
		status:    mcp.Status{State: "connected", Connected: true},
		outcome:   mcp.CommandOutcome{Success: true, Message: "Done"},
	}

	d := Deps{
		Config: config.APIConfig{
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 30},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         "test-secret-at-least-32-bytes-long!!",
				AccessTokenTTL: 15,
			},
			Operator: config.OperatorConfig{
				Username:     testOperator,
				PasswordHash: hash,
			},
		},
		Logger:     logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test"),
		Controller: controller,
		Cache:      cache,
		Version:    "test",
	}
	if deps != nil {
		deps(&d)
	}

	srv, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Handler tests exercise the router directly rather than binding a port.
	srv.hub = NewHub(srv.wsCfg, srv.logger)
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &harness{
		srv:        srv,
		ts:         ts,
		controller: controller,
		source:     source,
		cache:      cache,
	}
}

// poll fills the cache with the source's current payload.
func (h *harness) poll(t *testing.T) {
	t.Helper()
	if _, err := h.cache.Refresh(context.Background()); err != nil {
		t.Fatalf("cache refresh: %v", err)
	}
}

// login authenticates as the test operator and returns the bearer token.
func (h *harness) login(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{ //nolint:errcheck // static map marshals
		"username": testOperator,
		"password": testPassword,
	})
	resp, err := http.Post(h.ts.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return lr.AccessToken
}

// request performs an authenticated request and decodes the JSON response into out.
func (h *harness) request(t *testing.T, token, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestServer_HealthNoAuth(t *testing.T) {
	h := newHarness(t, nil)

	var body map[string]any
	if status := h.request(t, "", http.MethodGet, "/api/v1/health", nil, &body); status != http.StatusOK {
		t.Fatalf("health status = %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version field = %v", body["version"])
	}
}

func TestServer_AuthRequired(t *testing.T) {
	h := newHarness(t, nil)
	h.poll(t)

	if status := h.request(t, "", http.MethodGet, "/api/v1/dashboard", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", status)
	}
	if status := h.request(t, "garbage.token.here", http.MethodGet, "/api/v1/dashboard", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", status)
	}

	token := h.login(t)
	if status := h.request(t, token, http.MethodGet, "/api/v1/dashboard", nil, nil); status != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", status)
	}
}

func TestServer_LoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, nil)

	body, _ := json.Marshal(map[string]string{ //nolint:errcheck // static map marshals
		"username": testOperator,
		"password": "wrong",
	})
	resp, err := http.Post(h.ts.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_DashboardSummaries(t *testing.T) {
	h := newHarness(t, nil)
	h.poll(t)
	token := h.login(t)

	var body struct {
		Categories []dashboard.CategorySummary `json:"categories"`
		Entities   int                         `json:"entities"`
	}
	if status := h.request(t, token, http.MethodGet, "/api/v1/dashboard", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	if body.Entities != 3 {
		t.Errorf("entities = %d, want 3", body.Entities)
	}

	var lights *dashboard.CategorySummary
	for i := range body.Categories {
		if body.Categories[i].Category == "lights" {
			lights = &body.Categories[i]
		}
	}
	if lights == nil {
		t.Fatal("lights category missing from summaries")
	}
	if lights.Total != 2 || lights.Active != 1 {
		t.Errorf("lights = %d/%d active, want 1/2", lights.Active, lights.Total)
	}
	if lights.Headline != "1 light(s) currently on" {
		t.Errorf("headline = %q", lights.Headline)
	}
}

func TestServer_NoDataBeforeFirstPoll(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	if status := h.request(t, token, http.MethodGet, "/api/v1/entities", nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before first poll", status)
	}
	if status := h.request(t, token, http.MethodGet, "/api/v1/dashboard", nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("dashboard status = %d, want 503 before first poll", status)
	}
}

func TestServer_GetEntity(t *testing.T) {
	h := newHarness(t, nil)
	h.poll(t)
	token := h.login(t)

	var entry dashboard.CacheEntry
	if status := h.request(t, token, http.MethodGet, "/api/v1/entities/Kitchen%20Light", nil, &entry); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if entry.State != "on" || entry.Category != "lights" {
		t.Errorf("entry = %+v", entry)
	}

	if status := h.request(t, token, http.MethodGet, "/api/v1/entities/No%20Such%20Device", nil, nil); status != http.StatusNotFound {
		t.Errorf("missing entity: status = %d, want 404", status)
	}
}

func TestServer_CategoryListing(t *testing.T) {
	h := newHarness(t, nil)
	h.poll(t)
	token := h.login(t)

	var body struct {
		Category string                    `json:"category"`
		Entities []dashboard.CacheEntry    `json:"entities"`
		Summary  dashboard.CategorySummary `json:"summary"`
	}
	if status := h.request(t, token, http.MethodGet, "/api/v1/categories/lights", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(body.Entities) != 2 {
		t.Errorf("entities = %d, want 2", len(body.Entities))
	}
	if body.Summary.Active != 1 {
		t.Errorf("summary active = %d, want 1", body.Summary.Active)
	}
}

func TestServer_Commands(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	cases := []struct {
		action string
		value  float64
		want   string
	}{
		{ActionTurnOn, 0, "turn_on:Desk Lamp"},
		{ActionTurnOff, 0, "turn_off:Desk Lamp"},
		{ActionBrightness, 40, "brightness:Desk Lamp:40"},
		{ActionTemperature, 21.5, "temperature:Desk Lamp:21.5"},
		{ActionFanSpeed, 75, "fan_speed:Desk Lamp:75"},
		{ActionVolume, 30, "volume:Desk Lamp:30"},
		{ActionMediaPause, 0, "media_pause:Desk Lamp"},
		{ActionMediaPlay, 0, "media_play:Desk Lamp"},
		{ActionMediaNext, 0, "media_next:Desk Lamp"},
		{ActionMediaPrevious, 0, "media_previous:Desk Lamp"},
	}

	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			var outcome mcp.CommandOutcome
			status := h.request(t, token, http.MethodPost, "/api/v1/commands", commandRequest{
				Action: tc.action,
				Name:   "Desk Lamp",
				Value:  tc.value,
			}, &outcome)
			if status != http.StatusOK {
				t.Fatalf("status = %d", status)
			}
			if !outcome.Success {
				t.Errorf("outcome = %+v", outcome)
			}
			if got := h.controller.lastCall(); got != tc.want {
				t.Errorf("dispatched %q, want %q", got, tc.want)
			}
		})
	}
}

func TestServer_CommandValidation(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	status := h.request(t, token, http.MethodPost, "/api/v1/commands", commandRequest{Action: "explode", Name: "Desk Lamp"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("unknown action: status = %d, want 400", status)
	}

	status = h.request(t, token, http.MethodPost, "/api/v1/commands", commandRequest{Action: ActionTurnOn}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", status)
	}
}

func TestServer_CommandWhileDisconnected(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	h.controller.mu.Lock()
	h.controller.connected = false
	h.controller.mu.Unlock()

	status := h.request(t, token, http.MethodPost, "/api/v1/commands", commandRequest{Action: ActionTurnOn, Name: "Desk Lamp"}, nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
	if h.controller.lastCall() != "" {
		t.Errorf("command dispatched while disconnected: %q", h.controller.lastCall())
	}
}

func TestServer_ConnectionStatus(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	var status mcp.Status
	if code := h.request(t, token, http.MethodGet, "/api/v1/connection", nil, &status); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if status.State != "connected" || !status.Connected {
		t.Errorf("status = %+v", status)
	}
}

func TestServer_Refresh(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	before := h.source.fetchCount()
	var res dashboard.PollResult
	if status := h.request(t, token, http.MethodPost, "/api/v1/refresh", nil, &res); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if h.source.fetchCount() != before+1 {
		t.Errorf("fetch count = %d, want %d", h.source.fetchCount(), before+1)
	}
	if res.EntitiesRaw != 3 {
		t.Errorf("EntitiesRaw = %d, want 3", res.EntitiesRaw)
	}
}

func TestServer_Stats(t *testing.T) {
	h := newHarness(t, nil)
	h.poll(t)
	token := h.login(t)

	var stats dashboard.PerformanceStats
	if status := h.request(t, token, http.MethodGet, "/api/v1/stats", nil, &stats); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if stats.TotalPolls != 1 {
		t.Errorf("TotalPolls = %d, want 1", stats.TotalPolls)
	}
}

func TestServer_History(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	recorder, err := history.NewRecorder(db, 100)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	h := newHarness(t, func(d *Deps) {
		d.History = recorder
	})
	h.cache.OnChange(func(ch dashboard.Change) {
		if err := recorder.Record(context.Background(), ch); err != nil {
			t.Errorf("recording change: %v", err)
		}
	})
	h.poll(t)
	token := h.login(t)

	var body struct {
		Entries []history.Entry `json:"entries"`
		Count   int             `json:"count"`
	}
	if status := h.request(t, token, http.MethodGet, "/api/v1/history", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body.Count != 3 {
		t.Errorf("count = %d, want 3 (first observation of each entity)", body.Count)
	}

	var entity struct {
		Entries []history.Entry `json:"entries"`
	}
	if status := h.request(t, token, http.MethodGet, "/api/v1/history/Kitchen%20Light", nil, &entity); status != http.StatusOK {
		t.Fatalf("entity history status = %d", status)
	}
	if len(entity.Entries) != 1 || entity.Entries[0].State != "on" {
		t.Errorf("entity entries = %+v", entity.Entries)
	}
}

func TestServer_HistoryDisabled(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	if status := h.request(t, token, http.MethodGet, "/api/v1/history", nil, nil); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history disabled", status)
	}
}

func TestServer_CameraProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer cam-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "multipart/x-mixed-replace")
		fmt.Fprint(w, "frame-data") //nolint:errcheck // test writer
	}))
	defer upstream.Close()

	h := newHarness(t, func(d *Deps) {
		d.Cameras = []config.CameraConfig{
			{Name: "porch", StreamURL: upstream.URL, Token: "cam-token"},
		}
	})
	token := h.login(t)

	req, err := http.NewRequest(http.MethodGet, h.ts.URL+"/api/v1/cameras/porch/stream", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("camera request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf) //nolint:errcheck // EOF expected after body
	if !strings.Contains(string(buf[:n]), "frame-data") {
		t.Errorf("body = %q", string(buf[:n]))
	}

	if status := h.request(t, token, http.MethodGet, "/api/v1/cameras/attic/stream", nil, nil); status != http.StatusNotFound {
		t.Errorf("unknown camera: status = %d, want 404", status)
	}
}

func TestServer_ListCameras(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Cameras = []config.CameraConfig{
			{Name: "porch", StreamURL: "http://cam.local/stream", Token: "secret"},
		}
	})
	token := h.login(t)

	var body struct {
		Cameras []cameraInfo `json:"cameras"`
	}
	if status := h.request(t, token, http.MethodGet, "/api/v1/cameras", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(body.Cameras) != 1 || body.Cameras[0].Name != "porch" {
		t.Fatalf("cameras = %+v", body.Cameras)
	}
	if strings.Contains(body.Cameras[0].StreamURL, "cam.local") {
		t.Error("upstream URL leaked to client")
	}
}

func TestServer_WebSocketBroadcast(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login(t)

	// Obtain a single-use ticket.
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	if status := h.request(t, token, http.MethodPost, "/api/v1/auth/ws-ticket", nil, &ticketResp); status != http.StatusOK {
		t.Fatalf("ticket status = %d", status)
	}

	wsURL := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/v1/ws?ticket=" + ticketResp.Ticket
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	// Subscribe to state changes.
	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe write: %v", err)
	}

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %q", ack.Type)
	}

	// Broadcast a change the way the server wires cache.OnChange.
	h.srv.hub.Broadcast(ChannelStateChanged, map[string]string{"entity": "Kitchen Light", "state": "off"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelStateChanged {
		t.Errorf("event = %+v", event)
	}

	// Tickets are single-use: a second dial with the same ticket must fail.
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Error("expected second dial with consumed ticket to fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("second dial status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_WebSocketRequiresTicket(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)

	wsURL := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/v1/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Error("expected dial without ticket to fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestNew_RequiredDeps(t *testing.T) {
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")
	cache := dashboard.NewCache(&apiSource{}, dashboard.NewFilter(nil), time.Hour)

	if _, err := New(Deps{Controller: &fakeController{}, Cache: cache}); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := New(Deps{Logger: logger, Cache: cache}); err == nil {
		t.Error("expected error without controller")
	}
	if _, err := New(Deps{Logger: logger, Controller: &fakeController{}}); err == nil {
		t.Error("expected error without cache")
	}
}
