// Command beacon periodically evaluates configured probes and publishes the
// results to a message broker, optionally recording them locally.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/ecociel/beacon/api"
	"github.com/ecociel/beacon/config"
	"github.com/ecociel/beacon/gateway/kafka"
	"github.com/ecociel/beacon/metrics"
	"github.com/ecociel/beacon/probe"
	"github.com/ecociel/beacon/scheduler"
	"github.com/ecociel/beacon/sink"
	"github.com/ecociel/beacon/task"
)

var (
	configPath = pflag.StringP("config", "c", "etc/beacon.yaml", "configuration file")
	verbose    = pflag.CountP("verbose", "v", "increase output verbosity")
	brokers    = pflag.StringSlice("brokers", []string{"localhost:9092"}, "broker seed addresses")
	jsonMode   = pflag.Bool("json", false, "publish one JSON object per task instead of primitive values")
	outPath    = pflag.String("outpath", "", "directory for local jsonl records")
	pgDSN      = pflag.String("pg-dsn", "", "Postgres DSN for the telemetry_record table")
	statusAddr = pflag.String("status-addr", "", "listen address for the status API (disabled when empty)")
)

func main() {
	pflag.Parse()

	switch *verbose {
	case 0:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("cannot load configuration")
	}
	defs := cfg.Defs(config.DefaultTopicPrefix(), *jsonMode)

	// The broker connection's keep-alive derives from the busiest task, so
	// intervals are scanned before the client is built. Unparseable ones
	// fail task creation below.
	keepAlive := minInterval(defs)

	host, _ := os.Hostname()
	client, err := kafka.NewClient(*brokers, host+"-beacon", keepAlive)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create broker client")
	}
	defer client.Close()
	publisher := kafka.New(client)

	reg := prometheus.NewRegistry()
	m := metrics.NewPromMetrics(reg)

	probes := probe.NewRegistry()
	probe.RegisterBuiltins(probes)

	var recordSinks []sink.Sink
	if *outPath != "" {
		recordSinks = append(recordSinks, sink.NewJSONL(*outPath))
	}
	if *pgDSN != "" {
		pool, err := pgxpool.New(ctx, *pgDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot connect to postgres")
		}
		defer pool.Close()
		recordSinks = append(recordSinks, sink.NewPostgres(pool))
	}

	sched := scheduler.New(scheduler.DefaultTick)
	for _, def := range defs {
		fn, err := probes.Lookup(def.Probe)
		if err != nil {
			log.Warn().Err(err).Str("task", def.Spec.Name).Msg("task cannot be created")
			continue
		}
		var sinks []sink.Sink
		if def.Record {
			sinks = recordSinks
		}
		t, err := task.New(ctx, def.Spec, fn, publisher, sinks, m)
		if err != nil {
			log.Warn().Err(err).Str("task", def.Spec.Name).Msg("task cannot be created")
			continue
		}
		sched.Add(t)
		log.Info().Str("topic", t.Topic()).Dur("interval", t.Interval()).Msg("task scheduled")
	}

	if sched.Len() == 0 {
		log.Fatal().Msg("no valid tasks specified, exiting")
	}

	if *statusAddr != "" {
		srv := &http.Server{Addr: *statusAddr, Handler: api.Handler(sched, reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	sched.Run(ctx)
}

func minInterval(defs []config.TaskDef) time.Duration {
	var min time.Duration
	for _, def := range defs {
		d, err := time.ParseDuration(def.Spec.Interval)
		if err != nil || d <= 0 {
			continue
		}
		if min == 0 || d < min {
			min = d
		}
	}
	return min
}
