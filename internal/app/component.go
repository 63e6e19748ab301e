package app

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/dkeye/Conductor/internal/domain"
	"github.com/google/uuid"
)

// componentScope is what a component constructor may check against.
type componentScope struct {
	roomID     domain.RoomID
	codec      domain.VideoCodec
	hlsRoot    string
	components map[domain.ComponentID]*domain.Component
}

func (s componentScope) has(typ domain.ComponentType) bool {
	for _, c := range s.components {
		if c.Type == typ {
			return true
		}
	}
	return false
}

type hlsOptions struct {
	LowLatency bool `mapstructure:"lowLatency"`
}

type rtspOptions struct {
	SourceURI         string `mapstructure:"sourceUri" validate:"required"`
	RTPPort           int    `mapstructure:"rtpPort" validate:"min=1,max=65535"`
	ReconnectDelay    int    `mapstructure:"reconnectDelay" validate:"gte=0"`
	KeepAliveInterval int    `mapstructure:"keepAliveInterval" validate:"gte=0"`
	PierceNAT         bool   `mapstructure:"pierceNat"`
}

// newComponent is the single construction entry point for every component variant.
func newComponent(typ domain.ComponentType, opts map[string]any, scope componentScope) (domain.Component, error) {
	id := domain.ComponentID(uuid.NewString())
	switch typ {
	case domain.ComponentHLS:
		if scope.has(domain.ComponentHLS) {
			return domain.Component{}, domain.ErrReachedComponentsLimit
		}
		if scope.codec != domain.CodecH264 {
			return domain.Component{}, fmt.Errorf("%w: hls requires h264, room uses %q", domain.ErrIncompatibleCodec, scope.codec)
		}
		var o hlsOptions
		if err := decodeOptions(opts, &o); err != nil {
			return domain.Component{}, err
		}
		return domain.Component{
			ID:   id,
			Type: typ,
			Metadata: map[string]any{
				"playable":   false,
				"lowLatency": o.LowLatency,
			},
			Endpoint: &domain.HLSEndpoint{
				RoomID:     scope.roomID,
				OutputDir:  filepath.Join(scope.hlsRoot, string(scope.roomID)),
				LowLatency: o.LowLatency,
			},
		}, nil

	case domain.ComponentRTSP:
		o := rtspOptions{
			RTPPort:           20000,
			ReconnectDelay:    15000,
			KeepAliveInterval: 15000,
			PierceNAT:         true,
		}
		if err := decodeOptions(opts, &o); err != nil {
			return domain.Component{}, err
		}
		u, err := url.Parse(o.SourceURI)
		if err != nil || u.Scheme != "rtsp" || u.Host == "" {
			return domain.Component{}, fmt.Errorf("%w: sourceUri must be an rtsp:// url", domain.ErrInvalidOptions)
		}
		return domain.Component{
			ID:   id,
			Type: typ,
			Metadata: map[string]any{
				"sourceUri": o.SourceURI,
				"rtpPort":   o.RTPPort,
				"pierceNat": o.PierceNAT,
			},
			Endpoint: &domain.RTSPEndpoint{
				RoomID:            scope.roomID,
				SourceURI:         o.SourceURI,
				RTPPort:           o.RTPPort,
				ReconnectDelay:    time.Duration(o.ReconnectDelay) * time.Millisecond,
				KeepAliveInterval: time.Duration(o.KeepAliveInterval) * time.Millisecond,
				PierceNAT:         o.PierceNAT,
			},
		}, nil

	default:
		return domain.Component{}, fmt.Errorf("%w: %q", domain.ErrInvalidComponentType, typ)
	}
}
