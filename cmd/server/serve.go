package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Conductor/internal/adapters/engine"
	router "github.com/dkeye/Conductor/internal/adapters/http"
	"github.com/dkeye/Conductor/internal/app"
	"github.com/dkeye/Conductor/internal/app/orch"
	"github.com/dkeye/Conductor/internal/cluster"
	"github.com/dkeye/Conductor/internal/config"
	"github.com/dkeye/Conductor/internal/notify"
)

func iceServers(cfg config.WebRTCConfig) []webrtc.ICEServer {
	var out []webrtc.ICEServer
	if len(cfg.STUNServers) > 0 {
		out = append(out, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	if len(cfg.TURNURLs) > 0 {
		out = append(out, webrtc.ICEServer{
			URLs:       cfg.TURNURLs,
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNCredential,
		})
	}
	return out
}

func runServe(ctx context.Context, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cert, err := app.LoadCertificate(cfg.WebRTC.DTLSCertFile, cfg.WebRTC.DTLSKeyFile)
	if err != nil {
		return err
	}
	deps := app.RoomDeps{
		Directory: app.NewDirectory(),
		Engines:   engine.NewFactory(),
		Settings: app.Settings{
			ICEServers:   iceServers(cfg.WebRTC),
			PortMin:      cfg.WebRTC.PortMin,
			PortMax:      cfg.WebRTC.PortMax,
			Certificate:  cert,
			HLSOutputDir: cfg.HLS.OutputDir,
		},
	}

	bus := notify.NewBus(0)
	var publisher notify.Publisher = bus
	if cfg.Notify.RedisAddr != "" {
		rb, err := notify.NewRedisBus(ctx, redis.NewClient(&redis.Options{Addr: cfg.Notify.RedisAddr}))
		if err != nil {
			return fmt.Errorf("connect notify redis: %w", err)
		}
		defer rb.Close()
		publisher = notify.Fanout{bus, rb}
		go rb.Forward(ctx, bus, cfg.NodeID)
	}

	self := cluster.NodeID(cfg.NodeID)
	var (
		transport cluster.Transport
		redisT    *cluster.RedisTransport
	)
	switch cfg.Cluster.Transport {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cluster.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect cluster redis: %w", err)
		}
		defer rdb.Close()
		redisT = cluster.NewRedisTransport(rdb, self, cluster.RedisOptions{
			Heartbeat: cfg.Cluster.Heartbeat,
			MemberTTL: cfg.Cluster.MemberTTL,
		})
		transport = redisT
	default:
		transport = cluster.NewMemoryNetwork().Join(self)
	}

	o := orch.New(deps, transport, publisher, orch.Options{
		Host:            cfg.Host,
		ResourceTimeout: cfg.Cluster.ResourceTimeout,
		CallTimeout:     cfg.Cluster.CallTimeout,
	})
	if redisT != nil {
		if err := redisT.Start(ctx); err != nil {
			return err
		}
		defer redisT.Close()
	}

	r := router.SetupRouter(ctx, cfg, o, bus)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("node", cfg.NodeID).Msg("Conductor server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := o.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("rooms did not stop in time")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
