package rtc

import (
	"sync"

	"github.com/dkeye/Conductor/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WebRTCConnection is the engine side of one WebRTC peer.
type WebRTCConnection struct {
	pc        *webrtc.PeerConnection
	id        string
	simulcast bool

	closeOnce sync.Once
	onFailed  func()
}

func newAPI(ep domain.WebRTCEndpoint) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	if ep.PortMin != 0 || ep.PortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(ep.PortMin, ep.PortMax); err != nil {
			return nil, err
		}
	}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se)), nil
}

// NewWebRTCConnection builds the peer connection. onFailed runs when it fails on its own.
func NewWebRTCConnection(id string, ep domain.WebRTCEndpoint, onFailed func()) (*WebRTCConnection, error) {
	api, err := newAPI(ep)
	if err != nil {
		return nil, err
	}
	pc, err := api.NewPeerConnection(ep.Configuration)
	if err != nil {
		return nil, err
	}
	c := &WebRTCConnection{pc: pc, id: id, simulcast: ep.EnableSimulcast, onFailed: onFailed}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("endpoint_id", c.id).Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("endpoint_id", c.id).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed && c.onFailed != nil {
			c.onFailed()
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("endpoint_id", c.id).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("rid", track.RID()).
			Msg("OnTrack received")
	})
	return c, nil
}

func (c *WebRTCConnection) Simulcast() bool { return c.simulcast }

func (c *WebRTCConnection) State() webrtc.PeerConnectionState { return c.pc.ConnectionState() }

func (c *WebRTCConnection) Close() {
	c.closeOnce.Do(func() {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("endpoint_id", c.id).Msg("close error")
			return
		}
		log.Info().Str("module", "rtc").Str("endpoint_id", c.id).Msg("closed")
	})
}
