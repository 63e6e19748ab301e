package app

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"os"
	"slices"

	"github.com/pion/webrtc/v4"
)

// Settings are process-wide and shared by every room on the node.
type Settings struct {
	ICEServers   []webrtc.ICEServer
	PortMin      uint16
	PortMax      uint16
	Certificate  *webrtc.Certificate
	HLSOutputDir string
}

// NetworkOptions is the immutable bundle every new peer of a room is built with.
type NetworkOptions struct {
	ICEServers   []webrtc.ICEServer
	PortMin      uint16
	PortMax      uint16
	Certificates []webrtc.Certificate
}

func (s Settings) networkOptions() NetworkOptions {
	opts := NetworkOptions{
		ICEServers: make([]webrtc.ICEServer, 0, len(s.ICEServers)),
		PortMin:    s.PortMin,
		PortMax:    s.PortMax,
	}
	for _, srv := range s.ICEServers {
		srv.URLs = slices.Clone(srv.URLs)
		opts.ICEServers = append(opts.ICEServers, srv)
	}
	if s.Certificate != nil {
		opts.Certificates = []webrtc.Certificate{*s.Certificate}
	}
	return opts
}

func (o NetworkOptions) configuration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers:   slices.Clone(o.ICEServers),
		Certificates: slices.Clone(o.Certificates),
	}
}

// LoadCertificate reads a PEM certificate and its PKCS#8 key for DTLS.
// With both paths empty a fresh ECDSA certificate is generated.
func LoadCertificate(certFile, keyFile string) (*webrtc.Certificate, error) {
	if certFile == "" && keyFile == "" {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate dtls key: %w", err)
		}
		return webrtc.GenerateCertificate(key)
	}
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("read dtls certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read dtls key: %w", err)
	}
	cert, err := webrtc.CertificateFromPEM(string(certPEM) + "\n" + string(keyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse dtls certificate: %w", err)
	}
	return cert, nil
}
