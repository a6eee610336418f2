package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/automation"
	"github.com/nerrad567/gray-logic-hub/internal/bridges/agent"
	"github.com/nerrad567/gray-logic-hub/internal/bridges/mesh"
	"github.com/nerrad567/gray-logic-hub/internal/bridges/portclaim"
	"github.com/nerrad567/gray-logic-hub/internal/bridges/serial"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/journal"
	"github.com/nerrad567/gray-logic-hub/internal/monitor"
	"github.com/nerrad567/gray-logic-hub/internal/process"
	"github.com/nerrad567/gray-logic-hub/internal/schedule"
)

// hub owns every long-lived component of the running process.
type hub struct {
	cfg *config.Config
	db  *database.DB
	log *logging.Logger

	mqtt    *mqtt.Client
	mesh    *mesh.MQTTManager
	influx  *influxdb.Client
	metrics *metrics.Metrics

	devices   *device.SQLiteRepository
	registry  *device.Registry
	runner    *automation.Runner
	scheduler *schedule.Scheduler
	monitor   *monitor.Monitor
}

// newHub builds the device registry and the automation pipeline. Nothing is
// connected yet; Run (or connectDevices) does that.
func newHub(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (h *hub, err error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving site timezone: %w", err)
	}

	h = &hub{
		cfg:      cfg,
		db:       db,
		log:      log,
		metrics:  metrics.New(),
		devices:  device.NewSQLiteRepository(db.DB),
		registry: device.NewRegistry(),
	}
	h.registry.SetLogger(log.Component("device"))
	defer func() {
		if err != nil {
			h.Close()
		}
	}()

	if cfg.HasMeshDevices() {
		if err := h.startMesh(); err != nil {
			return nil, err
		}
	}

	if cfg.InfluxDB.Enabled {
		h.influx, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		h.influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := h.registerDevices(ctx); err != nil {
		return nil, err
	}
	log.Info("device registry initialised", "devices", h.registry.Len())

	jrnl := journal.New(journal.NewSQLiteRepository(db.Sqlx()))
	jrnl.SetLogger(log.Component("journal"))

	commands := process.NewRunner()
	commands.SetLogger(log.Component("process"))

	executor := automation.NewExecutor(automation.ExecutorConfig{
		Devices:    h.registry,
		Startup:    h.devices,
		Journal:    jrnl,
		Commands:   commands,
		ScriptsDir: cfg.Hub.ScriptsDir,
		Metrics:    h.metrics,
		Logger:     log.Component("automation"),
	})
	h.runner = automation.NewRunner(automation.NewSQLiteRepository(db.DB), executor)

	calc := schedule.NewCalculator(loc)
	h.scheduler = schedule.NewScheduler(schedule.Config{
		Devices:    h.registry,
		Startup:    h.devices,
		Scripts:    h.runner,
		Store:      schedule.NewSQLiteRepository(db.DB),
		Journal:    jrnl,
		Calculator: calc,
		Metrics:    h.metrics,
		Logger:     log.Component("scheduler"),
	})

	monCfg := monitor.Config{
		Elements:   h.devices,
		Devices:    h.registry,
		Samples:    monitor.NewSQLiteRepository(db.Sqlx()),
		Calculator: calc,
		Metrics:    h.metrics,
		Logger:     log.Component("monitor"),
	}
	if h.influx != nil {
		monCfg.Mirror = h.influx
	}
	h.monitor = monitor.New(monCfg)

	return h, nil
}

// startMesh connects to the broker and starts the gateway manager shared by
// every mesh device.
func (h *hub) startMesh() error {
	client, err := mqtt.Connect(h.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	h.mqtt = client
	h.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", h.cfg.MQTT.Broker.Host, h.cfg.MQTT.Broker.Port),
		"client_id", h.cfg.MQTT.Broker.ClientID,
	)
	client.SetOnConnect(func() {
		h.log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		h.log.Warn("MQTT disconnected", "error", err)
	})

	h.mesh = mesh.NewMQTTManager(client, mesh.ManagerOptions{
		Topics:         mqtt.GatewayTopics{Prefix: h.cfg.Mesh.TopicPrefix, Gateway: h.cfg.Mesh.GatewayID},
		QoS:            byte(h.cfg.MQTT.QoS),
		RequestTimeout: h.cfg.Mesh.RequestTimeout,
		Logger:         h.log.Component("mesh"),
	})
	if err := h.mesh.Start(); err != nil {
		return fmt.Errorf("starting mesh manager: %w", err)
	}
	return nil
}

// registerDevices records every configured device and builds its driver.
// A driver that cannot be built is a configuration error.
func (h *hub) registerDevices(ctx context.Context) error {
	claims := portclaim.New()

	for _, dc := range h.cfg.Hub.Devices {
		d := deviceFromConfig(dc)

		drv, err := h.newDriver(d, claims)
		if err != nil {
			return fmt.Errorf("building driver for %s: %w", d.Name, err)
		}
		if err := h.devices.UpsertDevice(ctx, d); err != nil {
			return fmt.Errorf("recording device %s: %w", d.Name, err)
		}

		c := device.NewController(d, drv, h.devices)
		c.SetLogger(h.log.Component("device").With("device", d.Name))
		if err := h.registry.Add(c); err != nil {
			return err
		}
	}
	return nil
}

func (h *hub) newDriver(d device.Device, claims *portclaim.Table) (device.Driver, error) {
	switch d.Protocol() {
	case device.ProtocolSerial:
		return serial.New(d, serial.Options{Claims: claims, Logger: h.log.Component("serial")})
	case device.ProtocolMesh:
		return mesh.New(d, mesh.Options{Manager: h.mesh, Claims: claims, Logger: h.log.Component("mesh")})
	case device.ProtocolNet:
		return agent.New(d, agent.Options{Logger: h.log.Component("agent")})
	}
	return nil, fmt.Errorf("%w: %s has no protocol", device.ErrInvalidParams, d.Name)
}

// deviceFromConfig maps one hub.devices entry to a Device.
func deviceFromConfig(dc config.DeviceConfig) device.Device {
	d := device.Device{Name: dc.Name, DisplayName: dc.DisplayName, Enabled: dc.Enabled}
	switch dc.Protocol {
	case config.ProtocolSerial:
		if dc.Serial != nil {
			d.Params = device.SerialParams{Port: dc.Serial.Port, Baud: dc.Serial.Baud}
		}
	case config.ProtocolMesh:
		if dc.Mesh != nil {
			d.Params = device.MeshParams{ConfigPath: dc.Mesh.ConfigPath, UserPath: dc.Mesh.UserPath, Port: dc.Mesh.Port}
		}
	case config.ProtocolNet:
		if dc.Net != nil {
			d.Params = device.NetParams{URI: dc.Net.URI}
		}
	}
	return d
}

// connectDevices connects every enabled device. Failures are left for the
// scheduler heartbeat to retry.
func (h *hub) connectDevices(ctx context.Context) {
	if err := h.registry.ConnectAll(ctx); err != nil {
		h.log.Warn("some devices failed to connect", "error", err)
	}
}

// Run connects the devices and drives the periodic loops until ctx ends.
func (h *hub) Run(ctx context.Context) error {
	h.connectDevices(ctx)

	g, ctx := errgroup.WithContext(ctx)

	if h.cfg.Metrics.Enabled {
		g.Go(func() error {
			h.log.Info("metrics listening", "addr", h.cfg.Metrics.Listen)
			return h.metrics.Serve(ctx, h.cfg.Metrics.Listen, h.healthCheck)
		})
	}
	if h.cfg.Hub.SchedulerEnabled {
		g.Go(func() error {
			everyMinute(ctx, func(ctx context.Context) {
				if err := h.scheduler.Pass(ctx); err != nil {
					h.log.Error("scheduler pass failed", "error", err)
				}
			})
			return nil
		})
	}
	if h.cfg.Hub.MonitorEnabled {
		g.Go(func() error {
			everyMinute(ctx, func(ctx context.Context) {
				n, err := h.monitor.Pass(ctx)
				if err != nil {
					h.log.Error("monitor pass failed", "error", err)
					return
				}
				if n > 0 {
					h.log.Debug("monitor pass complete", "samples", n)
				}
			})
			return nil
		})
	}

	h.log.Info("initialisation complete, waiting for shutdown signal")
	err := g.Wait()
	h.log.Info("shutdown signal received, cleaning up")
	return err
}

// everyMinute calls pass at each wall-clock minute boundary until ctx ends.
// Passes run in their own goroutine and may overlap; everyMinute waits for
// all of them before returning.
func everyMinute(ctx context.Context, pass func(context.Context)) {
	var passes errgroup.Group
	defer func() { _ = passes.Wait() }()

	for {
		now := time.Now()
		timer := time.NewTimer(now.Truncate(time.Minute).Add(time.Minute).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			passes.Go(func() error {
				pass(ctx)
				return nil
			})
		}
	}
}

// healthCheck verifies the infrastructure connections are healthy.
func (h *hub) healthCheck(ctx context.Context) error {
	if err := h.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if h.mqtt != nil {
		if err := h.mqtt.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if h.influx != nil {
		if err := h.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// Close releases every component in reverse order of creation.
func (h *hub) Close() {
	if err := h.registry.CloseAll(); err != nil {
		h.log.Warn("error closing devices", "error", err)
	}
	if h.influx != nil {
		h.log.Info("closing InfluxDB connection")
		if err := h.influx.Close(); err != nil {
			h.log.Error("error closing InfluxDB", "error", err)
		}
	}
	if h.mesh != nil {
		if err := h.mesh.Stop(); err != nil {
			h.log.Warn("error stopping mesh manager", "error", err)
		}
	}
	if h.mqtt != nil {
		h.log.Info("disconnecting from MQTT")
		if err := h.mqtt.Close(); err != nil {
			h.log.Error("error closing MQTT", "error", err)
		}
	}
	h.log.Info("Gray Logic Hub stopped")
}
