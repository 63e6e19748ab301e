package app

import (
	"fmt"

	"github.com/dkeye/Conductor/internal/domain"
	"github.com/google/uuid"
)

type webrtcPeerOptions struct {
	EnableSimulcast bool `mapstructure:"enableSimulcast"`
}

// newPeer is the single construction entry point for every peer variant.
func newPeer(roomID domain.RoomID, typ domain.PeerType, opts map[string]any, net NetworkOptions) (domain.Peer, error) {
	switch typ {
	case domain.PeerWebRTC:
		o := webrtcPeerOptions{EnableSimulcast: true}
		if err := decodeOptions(opts, &o); err != nil {
			return domain.Peer{}, err
		}
		return domain.Peer{
			ID:     domain.PeerID(uuid.NewString()),
			Type:   typ,
			Status: domain.PeerDisconnected,
			Metadata: map[string]any{
				"enableSimulcast": o.EnableSimulcast,
			},
			Endpoint: &domain.WebRTCEndpoint{
				RoomID:          roomID,
				Configuration:   net.configuration(),
				PortMin:         net.PortMin,
				PortMax:         net.PortMax,
				EnableSimulcast: o.EnableSimulcast,
			},
		}, nil
	default:
		return domain.Peer{}, fmt.Errorf("%w: %q", domain.ErrInvalidPeerType, typ)
	}
}
