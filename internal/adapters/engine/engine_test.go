package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Conductor/internal/core"
	"github.com/dkeye/Conductor/internal/domain"
)

type observer chan error

func (o observer) OnEngineTerminated(reason error) { o <- reason }

func startInstance(t *testing.T, f *Factory, id domain.RoomID) (*Instance, observer) {
	t.Helper()
	e, err := f.Start(context.Background(), core.EngineOptions{RoomID: id, VideoCodec: domain.CodecH264})
	if err != nil {
		t.Fatal(err)
	}
	obs := make(observer, 1)
	e.RegisterObserver(obs)
	t.Cleanup(func() { e.Terminate(context.Background()) })
	return e.(*Instance), obs
}

func TestEndpoints(t *testing.T) {
	f := NewFactory()
	inst, _ := startInstance(t, f, "room-1")
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "room-1")

	if err := inst.AddEndpoint(ctx, "hls", &domain.HLSEndpoint{RoomID: "room-1", OutputDir: dir}); err != nil {
		t.Fatal(err)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		t.Errorf("hls output dir not created: %v", err)
	}
	rtsp := &domain.RTSPEndpoint{RoomID: "room-1", SourceURI: "rtsp://cam/1", RTPPort: 20000}
	if err := inst.AddEndpoint(ctx, "rtsp", rtsp); err != nil {
		t.Fatal(err)
	}
	if err := inst.AddEndpoint(ctx, "rtsp", rtsp); !errors.Is(err, ErrDuplicateEndpoint) {
		t.Errorf("expected ErrDuplicateEndpoint, got %v", err)
	}
	if err := inst.AddEndpoint(ctx, "peer", &domain.WebRTCEndpoint{RoomID: "room-1", EnableSimulcast: true}); err != nil {
		t.Fatal(err)
	}

	active, err := inst.ActiveEndpointIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 3 {
		t.Errorf("active endpoints %v, want 3", active)
	}

	if err := inst.RemoveEndpoint(ctx, "peer"); err != nil {
		t.Fatal(err)
	}
	if err := inst.RemoveEndpoint(ctx, "peer"); !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("expected ErrUnknownEndpoint, got %v", err)
	}
	active, _ = inst.ActiveEndpointIDs(ctx)
	if _, ok := active["peer"]; ok || len(active) != 2 {
		t.Errorf("active endpoints after removal %v", active)
	}
}

func TestDropRemovesFromActiveSet(t *testing.T) {
	f := NewFactory()
	inst, _ := startInstance(t, f, "room-1")
	ctx := context.Background()

	if err := inst.AddEndpoint(ctx, "rtsp", &domain.RTSPEndpoint{SourceURI: "rtsp://cam/1"}); err != nil {
		t.Fatal(err)
	}
	inst.drop("rtsp")
	active, _ := inst.ActiveEndpointIDs(ctx)
	if len(active) != 0 {
		t.Errorf("dropped endpoint still active: %v", active)
	}
}

func TestTerminate(t *testing.T) {
	f := NewFactory()
	inst, obs := startInstance(t, f, "room-1")
	ctx := context.Background()

	if _, ok := f.Instance("room-1"); !ok || f.Running() != 1 {
		t.Fatal("instance not tracked")
	}
	if _, err := f.Start(ctx, core.EngineOptions{RoomID: "room-1"}); err == nil {
		t.Error("second engine for the same room accepted")
	}

	inst.Terminate(ctx)
	select {
	case reason := <-obs:
		if reason != nil {
			t.Errorf("normal termination reported %v", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("observer not notified")
	}
	if f.Running() != 0 {
		t.Error("terminated instance still tracked")
	}
	if err := inst.AddEndpoint(ctx, "x", &domain.RTSPEndpoint{}); !errors.Is(err, ErrTerminated) {
		t.Errorf("expected ErrTerminated, got %v", err)
	}
	if _, err := inst.ActiveEndpointIDs(ctx); !errors.Is(err, ErrTerminated) {
		t.Errorf("expected ErrTerminated, got %v", err)
	}

	// Terminating twice notifies once.
	inst.Terminate(ctx)
	select {
	case reason := <-obs:
		t.Errorf("second notification %v", reason)
	default:
	}
}

func TestCrash(t *testing.T) {
	f := NewFactory()
	inst, obs := startInstance(t, f, "room-2")
	cause := errors.New("pipeline died")

	inst.Crash(cause)
	select {
	case reason := <-obs:
		if !errors.Is(reason, cause) {
			t.Errorf("crash reported %v", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("observer not notified")
	}
}
