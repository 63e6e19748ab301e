// Package domain contains entities without lifecycle logic, just meta-data
package domain

import (
	"fmt"
	"math"
)

type RoomID string

type VideoCodec string

const (
	CodecNone VideoCodec = ""
	CodecH264 VideoCodec = "h264"
	CodecVP8  VideoCodec = "vp8"
)

// RoomConfig is immutable after the room is created.
type RoomConfig struct {
	MaxPeers   *int       `json:"maxPeers"`
	VideoCodec VideoCodec `json:"videoCodec,omitempty"`
}

// PeerLimitReached reports whether one more peer would exceed MaxPeers.
func (c RoomConfig) PeerLimitReached(current int) bool {
	return c.MaxPeers != nil && current >= *c.MaxPeers
}

// RoomSnapshot is the read view of a room returned by queries.
type RoomSnapshot struct {
	ID         RoomID      `json:"id"`
	Config     RoomConfig  `json:"config"`
	Peers      []Peer      `json:"peers"`
	Components []Component `json:"components"`
}

// ParseMaxPeers accepts nil or a non-negative integral number.
// JSON numbers arrive as float64, so integral floats are accepted too.
func ParseMaxPeers(v any) (*int, error) {
	var n int
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		n = x
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case uint:
		if x > math.MaxInt32 {
			return nil, ErrInvalidMaxPeers
		}
		n = int(x)
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 {
			return nil, ErrInvalidMaxPeers
		}
		n = int(x)
	case *int:
		if x == nil {
			return nil, nil
		}
		n = *x
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidMaxPeers, v)
	}
	if n < 0 {
		return nil, ErrInvalidMaxPeers
	}
	return &n, nil
}

// ParseVideoCodec accepts nil, "h264" or "vp8".
func ParseVideoCodec(v any) (VideoCodec, error) {
	switch x := v.(type) {
	case nil:
		return CodecNone, nil
	case string:
		switch VideoCodec(x) {
		case CodecH264, CodecVP8:
			return VideoCodec(x), nil
		}
	case VideoCodec:
		return ParseVideoCodec(string(x))
	case *string:
		if x == nil {
			return CodecNone, nil
		}
		return ParseVideoCodec(*x)
	}
	return CodecNone, ErrInvalidVideoCodec
}

// NewRoomConfig validates raw creation parameters.
func NewRoomConfig(maxPeers, videoCodec any) (RoomConfig, error) {
	mp, err := ParseMaxPeers(maxPeers)
	if err != nil {
		return RoomConfig{}, err
	}
	vc, err := ParseVideoCodec(videoCodec)
	if err != nil {
		return RoomConfig{}, err
	}
	return RoomConfig{MaxPeers: mp, VideoCodec: vc}, nil
}
