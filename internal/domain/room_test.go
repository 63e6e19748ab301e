package domain

import (
	"errors"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestParseMaxPeers(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    *int
		wantErr bool
	}{
		{"nil means unlimited", nil, nil, false},
		{"zero", 0, intPtr(0), false},
		{"int", 10, intPtr(10), false},
		{"json number", float64(3), intPtr(3), false},
		{"pointer", intPtr(7), intPtr(7), false},
		{"nil pointer", (*int)(nil), nil, false},
		{"negative", -1, nil, true},
		{"negative float", float64(-2), nil, true},
		{"fraction", 2.5, nil, true},
		{"string", "10", nil, true},
		{"bool", true, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMaxPeers(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMaxPeers) {
					t.Fatalf("expected ErrInvalidMaxPeers, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected nil, got %d", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("expected %d, got %v", *tt.want, got)
			}
		})
	}
}

func TestParseVideoCodec(t *testing.T) {
	tests := []struct {
		in      any
		want    VideoCodec
		wantErr bool
	}{
		{nil, CodecNone, false},
		{"h264", CodecH264, false},
		{"vp8", CodecVP8, false},
		{CodecH264, CodecH264, false},
		{"H264", CodecNone, true},
		{"av1", CodecNone, true},
		{42, CodecNone, true},
	}
	for _, tt := range tests {
		got, err := ParseVideoCodec(tt.in)
		if tt.wantErr != (err != nil) {
			t.Errorf("ParseVideoCodec(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidVideoCodec) {
			t.Errorf("ParseVideoCodec(%v) returned %v, want ErrInvalidVideoCodec", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseVideoCodec(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewRoomConfig(t *testing.T) {
	cfg, err := NewRoomConfig(float64(2), "h264")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxPeers == nil || *cfg.MaxPeers != 2 || cfg.VideoCodec != CodecH264 {
		t.Errorf("unexpected config %+v", cfg)
	}

	if _, err := NewRoomConfig("x", nil); !errors.Is(err, ErrInvalidMaxPeers) {
		t.Errorf("expected ErrInvalidMaxPeers, got %v", err)
	}
	if _, err := NewRoomConfig(nil, "opus"); !errors.Is(err, ErrInvalidVideoCodec) {
		t.Errorf("expected ErrInvalidVideoCodec, got %v", err)
	}
}

func TestPeerLimitReached(t *testing.T) {
	unlimited := RoomConfig{}
	if unlimited.PeerLimitReached(1000) {
		t.Error("room without max peers must never be full")
	}
	limited := RoomConfig{MaxPeers: intPtr(1)}
	if limited.PeerLimitReached(0) {
		t.Error("empty room with one slot reported full")
	}
	if !limited.PeerLimitReached(1) {
		t.Error("room at capacity not reported full")
	}
	closed := RoomConfig{MaxPeers: intPtr(0)}
	if !closed.PeerLimitReached(0) {
		t.Error("room with zero slots must reject every peer")
	}
}
