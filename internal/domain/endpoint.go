package domain

import (
	"time"

	"github.com/pion/webrtc/v4"
)

type EndpointKind string

const (
	EndpointWebRTC EndpointKind = "webrtc"
	EndpointHLS    EndpointKind = "hls"
	EndpointRTSP   EndpointKind = "rtsp"
)

// Endpoint is the closed set of descriptors handed to the media engine.
type Endpoint interface {
	Kind() EndpointKind
	endpoint()
}

type WebRTCEndpoint struct {
	RoomID          RoomID
	Configuration   webrtc.Configuration
	PortMin         uint16
	PortMax         uint16
	EnableSimulcast bool
}

type HLSEndpoint struct {
	RoomID     RoomID
	OutputDir  string
	LowLatency bool
}

type RTSPEndpoint struct {
	RoomID            RoomID
	SourceURI         string
	RTPPort           int
	ReconnectDelay    time.Duration
	KeepAliveInterval time.Duration
	PierceNAT         bool
}

func (*WebRTCEndpoint) Kind() EndpointKind { return EndpointWebRTC }
func (*HLSEndpoint) Kind() EndpointKind    { return EndpointHLS }
func (*RTSPEndpoint) Kind() EndpointKind   { return EndpointRTSP }

func (*WebRTCEndpoint) endpoint() {}
func (*HLSEndpoint) endpoint()    {}
func (*RTSPEndpoint) endpoint()   {}
