package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/portcullismc/portcullis/internal/bans"
	"github.com/portcullismc/portcullis/internal/core"
	"github.com/portcullismc/portcullis/internal/core/data"
	"github.com/portcullismc/portcullis/internal/core/debug"
	"github.com/portcullismc/portcullis/internal/proxy"
)

// Controller is the main entrypoint for the proxy. It's responsible for
// initializing any shared resources (such as database and logging), defining
// the proxy server, and launching everything.
type Controller struct {
	Config *core.Config

	logger  *logrus.Logger
	wg      sync.WaitGroup
	db      *gorm.DB
	servers []*frontend
}

// Start brings up the proxy and blocks until the context is cancelled and all
// connections have drained. A non-nil error means the proxy never came up.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all components.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	c.db, err = data.Initialize(
		c.Config.Database.Engine,
		c.Config.DataSource(),
		c.Config.Debugging.DatabaseLoggingEnabled,
	)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer data.Shutdown(c.db)

	metrics := core.NewMetrics(prometheus.DefaultRegisterer)
	if c.Config.Metrics.Enabled {
		metrics.Serve(c.logger, c.Config.Metrics.Port)
	}
	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	c.declareServers(metrics)
	return c.run(ctx)
}

// Set up the servers we want to run.
func (c *Controller) declareServers(metrics *core.Metrics) {
	c.servers = []*frontend{
		{
			Address: c.Config.ListenAddress(),
			Backend: &proxy.Server{
				Name:    "PROXY",
				Config:  c.Config,
				Logger:  c.logger,
				Gate:    bans.NewGate(c.db, c.logger),
				Metrics: metrics,
			},
			Config:  c.Config,
			Logger:  c.logger,
			Metrics: metrics,
		},
	}
}

func (c *Controller) run(ctx context.Context) error {
	// Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		if err := server.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s server: %w", server.Backend.Identifier(), err)
		}
	}

	c.wg.Wait()
	return nil
}
