// Package main provides the unifi-reporter CLI entrypoint.
//
// The binary is the only execution entrypoint: a single command that
// either validates configuration and probes the controller (--test), or
// drives the collection/rule/delivery pipeline under a schedule (default).
//
// Exit codes:
//   - 0: success
//   - 1: configuration error
//   - 2: connection error
//   - 3: delivery error
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trekops/unifi-reporter/internal/aggregate"
	"github.com/trekops/unifi-reporter/internal/checkpoint"
	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/collector/push"
	"github.com/trekops/unifi-reporter/internal/collector/rest"
	"github.com/trekops/unifi-reporter/internal/collector/shell"
	"github.com/trekops/unifi-reporter/internal/config"
	"github.com/trekops/unifi-reporter/internal/delivery"
	deliveryemail "github.com/trekops/unifi-reporter/internal/delivery/email"
	deliveryfile "github.com/trekops/unifi-reporter/internal/delivery/file"
	"github.com/trekops/unifi-reporter/internal/driver"
	"github.com/trekops/unifi-reporter/internal/health"
	"github.com/trekops/unifi-reporter/internal/integration"
	"github.com/trekops/unifi-reporter/internal/integration/cloudflare"
	"github.com/trekops/unifi-reporter/internal/integration/geoip"
	"github.com/trekops/unifi-reporter/internal/model"
	"github.com/trekops/unifi-reporter/internal/orchestrator"
	"github.com/trekops/unifi-reporter/internal/rules"
	"github.com/trekops/unifi-reporter/internal/schedule"
	"github.com/trekops/unifi-reporter/internal/telemetry"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "unifi-reporter",
		Usage:   "Collect, analyze, and deliver UniFi controller log reports",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "/etc/unifi-reporter/config.yaml",
				Usage:   "path to the YAML configuration file",
			},
			&cli.BoolFlag{
				Name:  "test",
				Usage: "validate configuration and probe the controller, then exit",
			},
		},
		Action:         run,
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		fmt.Fprintln(os.Stderr, "unifi-reporter:", coder.Error())
		os.Exit(coder.ExitCode())
	}
	fmt.Fprintln(os.Stderr, "unifi-reporter:", err)
	os.Exit(1)
}

func run(c *cli.Context) error {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("load config: %v", err), 1)
	}

	result := settings.Validate()
	levelVar := new(slog.LevelVar)
	levelVar.Set(telemetry.ParseLevel(settings.LogLevel))
	logger := telemetry.NewLogger(os.Getenv("UNIFI_REPORTER_ENV"), levelVar)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	if !result.OK() {
		for _, ferr := range result.Fatal {
			logger.Error("configuration invalid", "error", ferr)
		}
		return cli.Exit("configuration invalid, see logged errors", 1)
	}

	if c.Bool("test") {
		return runTest(c.Context, settings, logger)
	}

	return runService(c.Context, c.String("config"), settings, levelVar, logger)
}

// runTest implements --test: validate configuration (already done by the
// time we get here) and probe the controller's REST endpoint, without
// running collection, rules, or delivery.
func runTest(ctx context.Context, settings *config.Settings, logger *slog.Logger) error {
	restCollector := rest.New(rest.Config{
		BaseURL:  fmt.Sprintf("https://%s:%d", settings.Connection.Host, settings.Connection.Port),
		Site:     settings.Connection.Site,
		Username: settings.Connection.Username,
		Password: settings.Connection.Password,
	}, logger)

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := restCollector.Collect(probeCtx, collector.Window{Start: time.Now().Add(-time.Minute), End: time.Now()}); err != nil {
		if errors.Is(err, model.ErrAuthentication) {
			return cli.Exit(fmt.Sprintf("authentication failed: %v", err), 2)
		}
		return cli.Exit(fmt.Sprintf("controller probe failed: %v", err), 2)
	}

	fmt.Println("configuration valid, controller reachable")
	return nil
}

// runService builds every pipeline component and runs it either once
// (no schedule configured) or under the cron scheduler until signaled to
// stop.
func runService(ctx context.Context, configPath string, settings *config.Settings, levelVar *slog.LevelVar, logger *slog.Logger) error {
	stateDir := "/var/lib/unifi-reporter"
	if dir := os.Getenv("UNIFI_REPORTER_STATE_DIR"); dir != "" {
		stateDir = dir
	}

	checkpoints, err := checkpoint.New(filepath.Join(stateDir, ".last_run.json"), logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("checkpoint store: %v", err), 1)
	}

	healthWriter, err := health.NewWriter(filepath.Join(stateDir, "health.json"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("health writer: %v", err), 1)
	}

	metrics, err := telemetry.New()
	if err != nil {
		return cli.Exit(fmt.Sprintf("metrics: %v", err), 1)
	}
	tracer := telemetry.NewTracer(1)
	defer tracer.Shutdown(context.Background())

	go serveMetrics(metrics, logger)

	baseURL := fmt.Sprintf("https://%s:%d", settings.Connection.Host, settings.Connection.Port)
	restCollector := rest.New(rest.Config{
		BaseURL:  baseURL,
		Site:     settings.Connection.Site,
		Username: settings.Connection.Username,
		Password: settings.Connection.Password,
	}, logger)

	var pushCollector *push.Collector
	if settings.PushEnabled() {
		pushCollector = push.New(push.Config{
			URL:          fmt.Sprintf("wss://%s:%d/wss/s/%s/events", settings.Connection.Host, settings.Connection.Port, settings.Connection.Site),
			CookieHeader: restCollector.CookieHeader,
			BufferSize:   settings.Push.BufferSize,
		}, logger)
		pushCollector.Start(ctx)
		defer pushCollector.Stop()
	}

	var shellCollector *shell.Collector
	if settings.ShellEnabled() {
		username := settings.Shell.Username
		if username == "" {
			username = settings.Connection.Username
		}
		password := settings.Shell.Password
		if password == "" {
			password = settings.Connection.Password
		}
		shellCollector = shell.New(shell.Config{
			Host:           settings.Connection.Host,
			Username:       username,
			Password:       password,
			CommandTimeout: settings.Shell.Timeout,
		}, nil, logger)
	}

	var pushSrc collector.Collector
	if pushCollector != nil {
		pushSrc = pushCollector
	}
	var shellSrc collector.Collector
	if shellCollector != nil {
		shellSrc = shellCollector
	}

	orch := orchestrator.New(pushSrc, restCollector, shellSrc, orchestrator.Config{
		MinEntriesForSufficient: settings.Lookback.MinEntriesForSufficient,
		ShellEnabled:            settings.ShellEnabled(),
	}, logger)

	geoipTracker := &geoip.SourceIPTracker{}
	integrations := buildIntegrations(settings, geoipTracker)
	runner := integration.NewRunner(logger)

	engine := rules.NewEngine(rules.DefaultRegistry(), logger)

	aggregators := []driver.Aggregator{
		aggregate.NewFlappingDetector(5),
		aggregate.NewThreatSummaryAggregator(10),
	}

	del, fileDelivery, err := buildDelivery(settings, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("delivery: %v", err), 1)
	}

	d := driver.New(driver.Config{
		SiteName:        settings.Connection.Site,
		ControllerType:  "unifi",
		InitialLookback: time.Duration(settings.Lookback.InitialLookbackHours) * time.Hour,
		OnCollected:     func(entries []model.LogEntry) { geoipTracker.Record(ipsSourceIPs(entries)) },
	}, checkpoints, orch, integrations, runner, engine, aggregators, del, logger)

	runOnce := func(ctx context.Context) error {
		start := time.Now()
		err := d.RunOnce(ctx)
		metrics.RecordRun(ctx, outcomeLabel(err), time.Since(start).Seconds())
		if err != nil {
			_ = healthWriter.RecordFailure(time.Now(), err)
			return err
		}
		return healthWriter.RecordSuccess(time.Now())
	}

	if settings.Scheduling.Preset == "" && settings.Scheduling.Cron == "" {
		if err := runOnce(ctx); err != nil {
			return translateRunError(err)
		}
		return nil
	}

	watcher, err := config.NewWatcher(configPath, settings, func(reload config.SafeReload) {
		levelVar.Set(telemetry.ParseLevel(reload.LogLevel))
		orch.SetMinEntriesForSufficient(reload.MinEntriesForSufficient)
		if fileDelivery != nil {
			fileDelivery.SetRetentionDays(reload.DeliveryFileRetention)
		}
	}, logger)
	if err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	location := time.UTC
	if settings.Scheduling.Timezone != "" {
		if loc, err := time.LoadLocation(settings.Scheduling.Timezone); err == nil {
			location = loc
		}
	}

	sched := schedule.New(runOnce, location, logger)

	expr := settings.Scheduling.Cron
	if settings.Scheduling.Preset != "" {
		resolved, ok := schedule.ResolvePreset(settings.Scheduling.Preset)
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown scheduling preset %q", settings.Scheduling.Preset), 1)
		}
		expr = resolved
	}
	if err := sched.StartCron(expr); err != nil {
		return cli.Exit(fmt.Sprintf("scheduler: %v", err), 1)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	if pushCollector != nil {
		pushCollector.Stop()
	}
	sched.Stop()
	return nil
}

func serveMetrics(metrics *telemetry.Metrics, logger *slog.Logger) {
	addr := os.Getenv("UNIFI_REPORTER_METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

func buildIntegrations(settings *config.Settings, geoipTracker *geoip.SourceIPTracker) []integration.Integration {
	var integrations []integration.Integration
	if settings.Integrations.Cloudflare.Token != "" {
		integrations = append(integrations, cloudflare.New(cloudflare.Config{
			Token:  settings.Integrations.Cloudflare.Token,
			ZoneID: settings.Integrations.Cloudflare.ZoneID,
		}))
	}
	if settings.Integrations.GeoIP.DatabasePath != "" {
		integrations = append(integrations, geoip.New(geoip.Config{
			DatabasePath: settings.Integrations.GeoIP.DatabasePath,
			SourceIPs:    geoipTracker.Provide,
		}))
	}
	return integrations
}

// ipsSourceIPs extracts the distinct source IPs carried by this run's IPS
// alarm entries, for the geoip integration to resolve on the next run.
func ipsSourceIPs(entries []model.LogEntry) []string {
	seen := make(map[string]bool)
	var ips []string
	for _, e := range entries {
		ev, ok := model.ExtractIPSEvent(e)
		if !ok || ev.SourceIP == "" || seen[ev.SourceIP] {
			continue
		}
		seen[ev.SourceIP] = true
		ips = append(ips, ev.SourceIP)
	}
	return ips
}

// buildDelivery also returns the file delivery adapter, if configured, so
// callers can reach its SetRetentionDays for live config reloads.
func buildDelivery(settings *config.Settings, logger *slog.Logger) (delivery.Delivery, *deliveryfile.Delivery, error) {
	var primary, fallback delivery.Delivery
	var fileDelivery *deliveryfile.Delivery

	if settings.Delivery.Email.Enabled {
		primary = deliveryemail.New(deliveryemail.Config{
			Host:       settings.Delivery.Email.SMTPHost,
			Port:       settings.Delivery.Email.Port,
			User:       settings.Delivery.Email.User,
			Password:   settings.Delivery.Email.Password,
			From:       settings.Delivery.Email.From,
			Recipients: settings.Delivery.Email.Recipients,
			TLS:        settings.Delivery.Email.TLS,
		}, nil)
	}
	if settings.Delivery.File.Enabled {
		fileDelivery = deliveryfile.New(deliveryfile.Config{
			OutputDir:     settings.Delivery.File.OutputDir,
			Format:        deliveryfile.Format(settings.Delivery.File.Format),
			RetentionDays: settings.Delivery.File.RetentionDays,
		}, nil)
		if primary == nil {
			primary = fileDelivery
		} else {
			fallback = fileDelivery
		}
	}
	if primary == nil && fallback == nil {
		return noopDelivery{}, nil, nil
	}
	if fallback == nil {
		return primary, fileDelivery, nil
	}
	return delivery.NewComposite(primary, fallback, logger), fileDelivery, nil
}

type noopDelivery struct{}

func (noopDelivery) Deliver(context.Context, model.Report) error { return nil }

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}

func translateRunError(err error) cli.ExitCoder {
	switch {
	case errors.Is(err, model.ErrDelivery):
		return cli.Exit(err.Error(), 3)
	case errors.Is(err, model.ErrAllSourcesFailed), errors.Is(err, model.ErrAuthentication), errors.Is(err, model.ErrSourceUnavailable):
		return cli.Exit(err.Error(), 2)
	default:
		return cli.Exit(err.Error(), 1)
	}
}
