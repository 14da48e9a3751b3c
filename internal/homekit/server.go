package homekit

import (
	"context"
	"fmt"

	"github.com/brutella/hap"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
)

// Server publishes the accessories over HAP.
type Server struct {
	cfg         config.HomeKitConfig
	accessories *Accessories
	logger      Logger
}

// NewServer prepares a HAP server for the accessories.
func NewServer(cfg config.HomeKitConfig, accessories *Accessories, logger Logger) *Server {
	return &Server{cfg: cfg, accessories: accessories, logger: logger}
}

// ListenAndServe runs the HAP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	store := hap.NewFsStore(s.cfg.StoragePath)

	a := s.accessories
	server, err := hap.NewServer(store, a.Bridge.A, a.Door.A, a.Lamp.A)
	if err != nil {
		return fmt.Errorf("creating homekit server: %w", err)
	}
	server.Pin = s.cfg.Pin
	if s.cfg.Address != "" {
		server.Addr = s.cfg.Address
	}

	if s.logger != nil {
		s.logger.Info("homekit server starting", "name", s.cfg.Name, "address", server.Addr, "store", s.cfg.StoragePath)
	}
	return server.ListenAndServe(ctx)
}
