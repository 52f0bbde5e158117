package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"linear-axis/canopen"
	"linear-axis/drive"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	AxisAppHealthCheckInterval = 30 * time.Second
	AxisAppTelemetryInterval   = 200 * time.Millisecond
)

type AxisApp struct {
	opts      *Options
	log       *LeveledLogger
	redis     *redis.Client
	ipcRx     *IPCRx
	ipcTx     *IPCTx
	diag      *Diag
	transport drive.Transport
	profile   drive.DriveConfig
	telemetry *rate.Limiter

	// sink and jogs default to ipcTx and ipcRx
	sink drive.DiagnosticsSink
	jogs drive.JogSource
	live func(drive.Sample) error

	mu sync.Mutex
}

func NewAxisApp(opts *Options) (*AxisApp, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, fmt.Sprintf("%s: ", ProjectName), log.LstdFlags)
	}

	app := &AxisApp{
		opts:      opts,
		log:       NewLeveledLogger(logger, opts.LogLevel),
		telemetry: rate.NewLimiter(rate.Every(AxisAppTelemetryInterval), 1),
	}

	profile, err := LoadProfile(opts.ProfilePath)
	if err != nil {
		return nil, err
	}
	app.profile = profile
	app.log.Info("Drive profile: %d parameters", len(profile))

	// Initialize Redis client with timeouts
	app.redis = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.RedisServerAddr, opts.RedisServerPort),
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer connectCancel()

	app.log.Info("Connecting to Redis at %s:%d...", opts.RedisServerAddr, opts.RedisServerPort)
	if err := app.redis.Ping(connectCtx).Err(); err != nil {
		app.log.Error("Failed to connect to Redis: %v", err)
		app.redis.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.log.Info("Successfully connected to Redis")

	app.diag = NewDiag(app.log, app.redis)
	app.ipcTx = NewIPCTx(app.log, app.redis, app.diag)
	app.ipcRx = NewIPCRx(app.log, app.redis)
	app.sink = app.ipcTx
	app.jogs = app.ipcRx
	app.live = app.ipcTx.SendSample

	if opts.Simulate {
		app.transport = &drive.SimulatedTransport{}
		app.log.Warn("Using simulated drive")
	} else {
		app.transport = &canopen.Transport{Logger: app.log}
	}

	app.writeDefaultRedisState()
	return app, nil
}

func (app *AxisApp) writeDefaultRedisState() {
	status := drive.AxisStatus{State: drive.StateUninitialized}
	if err := app.sink.ReportState(status); err != nil {
		app.log.Warn("Failed to write default state: %v", err)
		return
	}
	app.log.Info("Default Redis state written")
}

// Run opens the drive and runs the selected mode until it completes or ctx
// is cancelled. The drive is always left disabled.
func (app *AxisApp) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if app.redis != nil {
		g.Go(func() error {
			app.redisHealthCheck(gctx)
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return app.runSession(gctx)
	})
	return g.Wait()
}

func (app *AxisApp) runSession(ctx context.Context) error {
	config := drive.TransportConfig{
		Channel:    app.opts.CANDevice,
		NodeID:     app.opts.NodeID,
		Dictionary: app.opts.Dictionary,
	}

	reports, err := drive.WithSession(ctx, app.transport, config, app.log,
		func(ctx context.Context, axis *drive.Axis) ([]drive.MoveReport, error) {
			if err := app.prepare(ctx, axis); err != nil {
				return nil, err
			}
			if app.opts.Mode == RunModeJog {
				return nil, app.runJog(ctx, axis)
			}
			return app.runSequence(ctx, axis)
		}, drive.WithTolerance(app.opts.Tolerance))

	app.reportStatus(drive.AxisStatus{State: drive.StateDisconnected})
	if err != nil {
		return err
	}
	if len(reports) > 0 {
		app.log.Info("Sequence finished: %d moves", len(reports))
	}
	return nil
}

// prepare pushes the profile and enables the drive. Failure aborts the run.
func (app *AxisApp) prepare(ctx context.Context, axis *drive.Axis) error {
	err := axis.Configure(ctx, app.profile)
	app.observe(err)
	if err != nil {
		return fmt.Errorf("failed to configure drive: %w", err)
	}
	app.log.Info("Drive configured")

	err = axis.Enable(ctx)
	app.observe(err)
	if err != nil {
		return fmt.Errorf("failed to enable drive: %w", err)
	}
	app.log.Info("Drive enabled")
	app.reportAxis(ctx, axis)
	return nil
}

func (app *AxisApp) tracker() *drive.Tracker {
	return &drive.Tracker{
		Interval: app.opts.PollInterval,
		Timeout:  app.opts.MoveTimeout,
		OnSample: app.onSample,
		Logger:   app.log,
	}
}

// runSequence moves to each target in turn, pausing for the dwell between
// moves. A timed out move is logged and the sequence continues.
func (app *AxisApp) runSequence(ctx context.Context, axis *drive.Axis) ([]drive.MoveReport, error) {
	tracker := app.tracker()
	var reports []drive.MoveReport

	for i, target := range app.opts.Targets {
		if i > 0 && app.opts.Dwell > 0 {
			select {
			case <-ctx.Done():
				return reports, nil
			case <-time.After(app.opts.Dwell):
			}
		}

		h, err := axis.MoveAbsolute(ctx, target)
		if err != nil {
			app.observe(err)
			return reports, fmt.Errorf("failed to start move to %d: %w", target, err)
		}
		report := drive.Follow(ctx, axis, h, tracker)
		reports = append(reports, report)
		app.reportMove(report)
		app.reportAxis(ctx, axis)

		switch report.Status {
		case drive.StatusFailed:
			return reports, fmt.Errorf("move to %d failed: %w", target, report.Err)
		case drive.StatusCancelled:
			app.log.Info("Sequence cancelled")
			return reports, nil
		case drive.StatusTimeout:
			app.log.Warn("Move to %d timed out", target)
		}
	}
	return reports, nil
}

func (app *AxisApp) runJog(ctx context.Context, axis *drive.Axis) error {
	d := &drive.JogDispatcher{
		Axis:      axis,
		Tracker:   app.tracker(),
		Increment: app.opts.JogIncrement,
		Sink:      app.sink,
		Logger:    app.log,
	}
	app.log.Info("Waiting for jog commands on %s", ipcJogChannel)
	return d.Run(ctx, app.jogs)
}

// onSample forwards live positions, throttled to the telemetry interval
func (app *AxisApp) onSample(s drive.Sample) {
	if app.live == nil || !app.telemetry.Allow() {
		return
	}
	if err := app.live(s); err != nil {
		app.log.Warn("Failed to send position: %v", err)
	}
}

func (app *AxisApp) observe(err error) {
	if app.diag != nil {
		app.diag.Observe(err)
	}
}

func (app *AxisApp) reportMove(report drive.MoveReport) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if err := app.sink.ReportMove(report); err != nil {
		app.log.Warn("Failed to report move: %v", err)
	}
}

func (app *AxisApp) reportAxis(ctx context.Context, axis *drive.Axis) {
	status, err := axis.Status(ctx)
	if err != nil {
		app.log.Warn("Failed to read axis status: %v", err)
	}
	app.reportStatus(status)
}

func (app *AxisApp) reportStatus(status drive.AxisStatus) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if err := app.sink.ReportState(status); err != nil {
		app.log.Warn("Failed to report axis state: %v", err)
	}
}

func (app *AxisApp) redisHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(AxisAppHealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := app.redis.Ping(pingCtx).Err(); err != nil {
				app.log.Error("Redis health check failed: %v", err)
			}
			cancel()
		}
	}
}

func (app *AxisApp) Destroy() {
	app.log.Info("Shutting down axis application...")

	if app.ipcRx != nil {
		app.ipcRx.Destroy()
		app.log.Info("IPC RX shutdown complete")
	}

	if app.diag != nil {
		app.diag.Destroy()
		app.log.Info("Diagnostics shutdown complete")
	}

	if app.ipcTx != nil {
		app.ipcTx.Destroy()
		app.log.Info("IPC TX shutdown complete")
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.log.Error("Error closing Redis connection: %v", err)
		} else {
			app.log.Info("Redis connection closed")
		}
	}

	app.log.Info("Axis application shutdown complete")
}
