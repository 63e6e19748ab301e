package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Conductor/internal/app"
	"github.com/dkeye/Conductor/internal/app/orch"
	"github.com/dkeye/Conductor/internal/cluster"
	"github.com/dkeye/Conductor/internal/config"
	"github.com/dkeye/Conductor/internal/core/enginetest"
	"github.com/dkeye/Conductor/internal/notify"
	"github.com/gorilla/websocket"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	deps := app.RoomDeps{
		Directory: app.NewDirectory(),
		Engines:   enginetest.NewFactory(),
		Settings:  app.Settings{HLSOutputDir: t.TempDir()},
	}
	bus := notify.NewBus(0)
	o := orch.New(deps, cluster.NewMemoryNetwork().Join("node-a"), bus, orch.Options{Host: "node-a:5002"})
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return SetupRouter(ctx, &config.Config{Mode: "test"}, o, bus)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

type createRoomResponse struct {
	Data struct {
		Room struct {
			ID     string `json:"id"`
			Config struct {
				MaxPeers   *int   `json:"maxPeers"`
				VideoCodec string `json:"videoCodec"`
			} `json:"config"`
		} `json:"room"`
		Host string `json:"host"`
	} `json:"data"`
}

// createdResponse is the shape shared by the peer and component add endpoints.
type createdResponse struct {
	Data struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func createRoom(t *testing.T, h http.Handler, body string) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/room", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create room: %d %s", w.Code, w.Body.String())
	}
	return decode[createRoomResponse](t, w).Data.Room.ID
}

func TestCreateRoom(t *testing.T) {
	h := setup(t)

	w := do(t, h, http.MethodPost, "/room", `{"maxPeers": 2, "videoCodec": "h264"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	res := decode[createRoomResponse](t, w)
	if res.Data.Host != "node-a:5002" || res.Data.Room.ID == "" {
		t.Errorf("unexpected response %+v", res)
	}
	if res.Data.Room.Config.MaxPeers == nil || *res.Data.Room.Config.MaxPeers != 2 || res.Data.Room.Config.VideoCodec != "h264" {
		t.Errorf("config %+v", res.Data.Room.Config)
	}

	if w := do(t, h, http.MethodPost, "/room", ""); w.Code != http.StatusCreated {
		t.Errorf("empty body: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateRoomValidation(t *testing.T) {
	h := setup(t)
	tests := []struct {
		body string
		code string
	}{
		{`{"maxPeers": -1}`, "invalid_max_peers"},
		{`{"maxPeers": "many"}`, "invalid_max_peers"},
		{`{"maxPeers": 1.5}`, "invalid_max_peers"},
		{`{"videoCodec": "theora"}`, "invalid_video_codec"},
	}
	for _, tt := range tests {
		w := do(t, h, http.MethodPost, "/room", tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", tt.body, w.Code)
			continue
		}
		if got := decode[errorResponse](t, w).Code; got != tt.code {
			t.Errorf("%s: code %q, want %q", tt.body, got, tt.code)
		}
	}

	rooms := do(t, h, http.MethodGet, "/room", "")
	var list struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rooms.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Data) != 0 {
		t.Errorf("rejected rooms were created: %s", rooms.Body.String())
	}
}

func TestRoomLifecycle(t *testing.T) {
	h := setup(t)
	id := createRoom(t, h, `{"maxPeers": 1, "videoCodec": "h264"}`)

	if w := do(t, h, http.MethodGet, "/room/"+id, ""); w.Code != http.StatusOK {
		t.Fatalf("get room: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/room/unknown", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown room: %d", w.Code)
	}

	if w := do(t, h, http.MethodPost, "/room/"+id+"/peer", `{"type": "sip"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid peer type: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/room/"+id+"/peer", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing peer type: %d", w.Code)
	}

	w := do(t, h, http.MethodPost, "/room/"+id+"/peer", `{"type": "webrtc"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add peer: %d %s", w.Code, w.Body.String())
	}
	peer := decode[createdResponse](t, w)
	if peer.Data.ID == "" || peer.Data.Type != "webrtc" || peer.Data.Status != "disconnected" {
		t.Errorf("peer %+v", peer.Data)
	}

	if w := do(t, h, http.MethodPost, "/room/"+id+"/peer", `{"type": "webrtc"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("peer over limit: %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/room/"+id+"/component", `{"type": "hls"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add hls: %d %s", w.Code, w.Body.String())
	}
	if comp := decode[createdResponse](t, w); comp.Data.ID == "" || comp.Data.Type != "hls" {
		t.Errorf("component %+v", comp.Data)
	}
	if w := do(t, h, http.MethodPost, "/room/"+id+"/component", `{"type": "hls"}`); w.Code != http.StatusBadRequest {
		t.Errorf("second hls: %d", w.Code)
	}

	if w := do(t, h, http.MethodDelete, "/room/"+id+"/peer/"+peer.Data.ID, ""); w.Code != http.StatusNoContent {
		t.Errorf("remove peer: %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/room/"+id+"/peer/"+peer.Data.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("remove peer twice: %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/room/"+id+"/component/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("remove unknown component: %d", w.Code)
	}

	if w := do(t, h, http.MethodDelete, "/room/"+id, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete room: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/room/"+id, ""); w.Code != http.StatusNotFound {
		t.Errorf("get deleted room: %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/room/"+id, ""); w.Code != http.StatusNotFound {
		t.Errorf("delete twice: %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := setup(t)
	if w := do(t, h, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health: %d", w.Code)
	}
	createRoom(t, h, "")
	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "conductor_room_placements_total") {
		t.Error("placement counter not exported")
	}
}

func TestServerEventsWebsocket(t *testing.T) {
	srv := httptest.NewServer(setup(t))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket/server/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// The pong proves the server side is subscribed.
	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	var pong struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&pong); err != nil || pong.Type != "pong" {
		t.Fatalf("pong: %+v %v", pong, err)
	}

	resp, err := http.Post(srv.URL+"/room", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	var msg struct {
		Type  string       `json:"type"`
		Topic string       `json:"topic"`
		Event notify.Event `json:"event"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Topic != string(notify.ServerTopic) || msg.Event.Type != notify.RoomCreated {
		t.Errorf("unexpected message %+v", msg)
	}
}
