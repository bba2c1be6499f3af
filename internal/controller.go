package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/squirrelay/internal/core"
	"github.com/dcrodman/squirrelay/internal/core/data"
	"github.com/dcrodman/squirrelay/internal/core/debug"
	"github.com/dcrodman/squirrelay/internal/relay"
)

// Controller is the main entrypoint for squirrelay. It's responsible for
// initializing any shared resources (such as database and logging), wiring
// the relay to its transport, and launching everything.
type Controller struct {
	Config *core.Config

	logger   *logrus.Logger
	registry *prometheus.Registry
	db       *gorm.DB
	recorder *data.Recorder
	frontend *Frontend
	relay    *relay.Server
	web      *http.Server
}

// Start runs the relay until ctx is canceled.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.init(); err != nil {
		return err
	}
	defer c.Shutdown()

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	c.web = &http.Server{Addr: c.Config.WebAddress(), Handler: c.Handler()}
	go func() {
		c.logger.Infof("serving metrics on %s", c.web.Addr)
		if err := c.web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorf("error serving metrics: %v", err)
		}
	}()

	return c.relay.Run(ctx)
}

// init builds every component without starting anything.
func (c *Controller) init() error {
	var err error
	// Set up the logger, which will be used by all components.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var observer *data.Recorder
	if c.Config.History.Enabled {
		c.db, err = data.Open(c.Config.Database.Engine, c.Config.DataSource(), c.Config.Logging.LogLevel == "debug")
		if err != nil {
			return fmt.Errorf("error opening history database: %w", err)
		}
		c.recorder = data.NewRecorder(c.db, c.logger.WithField("component", "history"), c.Config.History.BufferSize)
		observer = c.recorder
	}

	c.frontend = NewFrontend(c.Config, c.logger)
	c.relay = &relay.Server{
		Config:     c.Config,
		Logger:     c.logger,
		Transport:  c.frontend,
		Registerer: c.registry,
	}
	// A nil *Recorder in the interface would not compare equal to nil.
	if observer != nil {
		c.relay.Observer = observer
	}
	c.relay.Init()
	return nil
}

type healthStatus struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// Handler serves the status endpoints.
func (c *Controller) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthStatus{
			Status:      "ok",
			Connections: c.frontend.NumPeers(),
		})
	})
	return r
}

// Shutdown releases everything init acquired. The relay has already stopped
// its transport by the time this runs.
func (c *Controller) Shutdown() {
	if c.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.web.Shutdown(ctx); err != nil {
			c.logger.Warnf("error shutting down metrics server: %v", err)
		}
	}
	if c.recorder != nil {
		c.recorder.Close()
	}
	if c.db != nil {
		if err := data.Shutdown(c.db); err != nil {
			c.logger.Warnf("error closing history database: %v", err)
		}
	}
	c.logger.Info("shut down")
}
