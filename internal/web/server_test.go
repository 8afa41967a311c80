package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/bttfn"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/control"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/status"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Broker:   "tcp://192.168.1.200:1883",
		HTTPAddr: ":80",
		Display:  "tcd.local",
	}
	tr := status.NewTracker(start, cfg)
	// Websocket handlers can outlive the test, so they must not log to t.
	srv := New(":0", tr, nil, logger.Nop())
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func idle() control.State {
	return control.State{
		Powered: true,
		Phase:   "idle",
		Rate:    100,
		Mask:    0b00000001,
		Volume:  6,
		Remote:  bttfn.UnsetParams,
	}
}

func getJSON(t *testing.T, u string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	st := idle()
	st.Trips = 4
	tr.Update(st)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Prop.Phase != "idle" {
		t.Errorf("Phase: got %q, want idle", sj.Status.Prop.Phase)
	}
	if sj.Status.Prop.Trips != 4 {
		t.Errorf("Trips: got %d, want 4", sj.Status.Prop.Trips)
	}
	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
}

func TestJSONUnknownBeforeFirstUpdate(t *testing.T) {
	ts, _ := newTestServer(t)

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Prop.Phase != "unknown" {
		t.Errorf("Phase before first update: got %q, want unknown", sj.Status.Prop.Phase)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	st := idle()
	st.HaveNet = true
	st.Remote.Speed = 55
	tr.Update(st)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Flux Capacitor", "idle", "tcd.local", ">55<"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page is missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	st := idle()
	st.Phase = "accel"
	st.Source = "button"
	tr.Update(st)
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")

	if !sj2.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if sj2.Status.Prop.Phase != "accel" || sj2.Status.Prop.Source != "button" {
		t.Errorf("phase: got %q/%q, want accel/button", sj2.Status.Prop.Phase, sj2.Status.Prop.Source)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestParseInterval(t *testing.T) {
	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"default_when_missing", "/ws", defaultInterval},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_small", "/ws?interval=10ms", defaultInterval},
		{"interval_too_large", "/ws?interval=20s", defaultInterval},
		{"interval_ms_too_large", "/ws?interval_ms=20000", defaultInterval},
		{"interval_invalid_string", "/ws?interval=bogus", defaultInterval},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.u, nil)
			if got := parseInterval(req); got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	u.RawQuery = query
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env wsEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebSocketSendsInitialState(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(idle())

	conn := dialWS(t, ts, "")
	env := readEnvelope(t, conn)

	if env.Type != "state" {
		t.Errorf("Type: got %q, want state", env.Type)
	}
	if env.Data == nil {
		t.Fatal("expected data")
	}
	if env.Data.Status.Prop.Phase != "idle" {
		t.Errorf("Phase: got %q, want idle", env.Data.Status.Prop.Phase)
	}
}

func TestWebSocketPushesChanges(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(idle())

	conn := dialWS(t, ts, "interval=100ms")
	readEnvelope(t, conn)

	st := idle()
	st.Phase = "peak"
	tr.Update(st)

	env := readEnvelope(t, conn)
	if env.Data.Status.Prop.Phase != "peak" {
		t.Errorf("Phase: got %q, want peak", env.Data.Status.Prop.Phase)
	}
}

func TestWebSocketQuietWithoutChanges(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(idle())

	conn := dialWS(t, ts, "interval=100ms")
	readEnvelope(t, conn)

	_ = conn.SetReadDeadline(time.Now().Add(400 * time.Millisecond))
	var env wsEnvelope
	if err := conn.ReadJSON(&env); err == nil {
		t.Errorf("unexpected message while idle: %+v", env)
	}
}

type fakeTrips struct {
	trips []store.Trip
	limit int
	err   error
}

func (f *fakeTrips) RecentTrips(_ context.Context, limit int) ([]store.Trip, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.trips[:min(limit, len(f.trips))], nil
}

func (f *fakeTrips) CountTrips(context.Context) (int, error) {
	return len(f.trips), f.err
}

func newTripServer(t *testing.T, trips TripLog) *httptest.Server {
	t.Helper()
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New(":0", tr, trips, logger.Nop())
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestTripsEndpoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trips := &fakeTrips{trips: []store.Trip{
		{ID: "b", StartedAt: at.Add(time.Minute), Source: "ir", Mode: "standalone"},
		{ID: "a", StartedAt: at, Source: "button", Mode: "standalone", Aborted: true},
	}}
	ts := newTripServer(t, trips)

	resp, err := http.Get(ts.URL + "/trips.json?limit=1")
	if err != nil {
		t.Fatalf("GET /trips.json: %v", err)
	}
	defer resp.Body.Close()

	var tj TripsJSON
	if err := json.NewDecoder(resp.Body).Decode(&tj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if tj.Total != 2 {
		t.Errorf("Total: got %d, want 2", tj.Total)
	}
	if len(tj.Trips) != 1 || tj.Trips[0].ID != "b" {
		t.Fatalf("Trips: got %+v", tj.Trips)
	}
	if tj.Trips[0].StartedAt != "2026-03-01T12:01:00Z" {
		t.Errorf("StartedAt: got %q", tj.Trips[0].StartedAt)
	}
}

func TestTripsEndpointLimits(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", defaultTripLimit},
		{"?limit=0", defaultTripLimit},
		{"?limit=bogus", defaultTripLimit},
		{"?limit=5", 5},
		{"?limit=100000", maxTripLimit},
	}
	for _, tc := range cases {
		trips := &fakeTrips{}
		ts := newTripServer(t, trips)
		resp, err := http.Get(ts.URL + "/trips.json" + tc.query)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if trips.limit != tc.want {
			t.Errorf("%q: limit got %d, want %d", tc.query, trips.limit, tc.want)
		}
	}
}

func TestTripsEndpointError(t *testing.T) {
	ts := newTripServer(t, &fakeTrips{err: errors.New("disk gone")})

	resp, err := http.Get(ts.URL + "/trips.json")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
}

func TestTripsEndpointWithoutLog(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/trips.json")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
