// Package app wires the Configuration Store, Fleet Manager, and Admin
// Surface into one orchestrated process and owns its signal-driven
// shutdown sequence.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"solarfleet-sim/internal/pkg/admin"
	"solarfleet-sim/internal/pkg/devicemanager"
	"solarfleet-sim/internal/pkg/fleet"
	"solarfleet-sim/internal/pkg/logger"
	"solarfleet-sim/internal/pkg/store"
)

// Config controls where the service reads/writes its state and which
// port the admin surface binds to; an empty HTTPPort defers to the
// store's own http_port setting.
type Config struct {
	DBPath   string
	HTTPPort string
	LogLevel string
}

// Service is the top-level orchestrator, mirroring the shape of the
// teacher's AppService but wired against this domain's components.
type Service struct {
	cfg Config
	lc  logger.LoggingClient

	store   *store.Store
	fleet   *fleet.Manager
	httpSrv *http.Server
}

// New constructs a Service. Nothing is opened or connected yet.
func New(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Initialize opens the Configuration Store and builds the Fleet
// Manager and Admin Surface. It does not yet connect the broker or
// start the HTTP listener.
func (s *Service) Initialize() error {
	s.lc = logger.NewClient(s.cfg.LogLevel)

	st, err := store.Open(s.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("app: open store: %w", err)
	}
	s.store = st

	brokerURL, err := st.GetSetting("broker_url")
	if err != nil {
		return fmt.Errorf("app: read broker_url: %w", err)
	}
	clientPrefix, err := st.GetSetting("client_id_prefix")
	if err != nil {
		return fmt.Errorf("app: read client_id_prefix: %w", err)
	}
	qosStr, _ := st.GetSetting("qos")
	qos, _ := strconv.Atoi(qosStr)
	keepaliveStr, _ := st.GetSetting("keepalive")
	keepalive, _ := strconv.Atoi(keepaliveStr)
	intervalStr, _ := st.GetSetting("publish_interval")
	interval, _ := strconv.Atoi(intervalStr)

	brokerCfg := fleet.BrokerConfig{
		URL:       brokerURL,
		ClientID:  clientPrefix,
		KeepAlive: keepalive,
	}
	s.fleet = fleet.New(brokerCfg, st, byte(qos), time.Duration(interval)*time.Second, s.lc)

	devMgr := devicemanager.New(st, s.fleet)
	router := admin.NewRouter(devMgr, s.fleet, s.lc)

	port := s.cfg.HTTPPort
	if port == "" {
		port, _ = st.GetSetting("http_port")
	}
	s.httpSrv = &http.Server{Addr: ":" + port, Handler: router}

	return nil
}

// Run connects the broker, starts the admin HTTP listener, and blocks
// until SIGINT/SIGTERM triggers an orderly shutdown.
func (s *Service) Run() error {
	if err := s.fleet.Run(); err != nil {
		return fmt.Errorf("app: fleet run: %w", err)
	}
	s.lc.Info("fleet manager running")

	go func() {
		s.lc.Infof("admin surface listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.lc.Error(fmt.Sprintf("admin surface stopped: %v", err))
		}
	}()

	s.waitForShutdown()
	s.Stop()
	return nil
}

func (s *Service) waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	s.lc.Info("shutdown signal received")
}

// Stop performs the orderly shutdown sequence: close the HTTP listener,
// then stop reconciler/reporters, drain outbound and disconnect the
// broker (via fleet.Stop), then close the store.
func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
	}
	if s.fleet != nil {
		s.fleet.Stop()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}
