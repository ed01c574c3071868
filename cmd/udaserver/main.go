// Binary udaserver polls the configured reading source, classifies every
// reading and serves the dashboard API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/envdash/uda/config"
	"github.com/envdash/uda/db"
	"github.com/envdash/uda/logging"
	"github.com/envdash/uda/poller"
	"github.com/envdash/uda/publish"
	"github.com/envdash/uda/source"
	"github.com/envdash/uda/web"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "path to the YAML config file (default $CONFIG_PATH or "+config.DefaultPath+")")

	flag.Usage = func() {
		message := `usage: udaserver [options]

Settings are read from the config file if it exists and from the environment
otherwise. Environment variables override the file.

Options:
`
		fmt.Fprint(flag.CommandLine.Output(), message)
		flag.PrintDefaults()
	}
}

// registerSources registers the configured source under its kind and returns a
// func that releases it.
func registerSources(ctx context.Context, cfg config.SourceConfig) (func(), error) {
	switch cfg.Kind {
	case "http":
		source.Register("http", source.NewHTTPSource(cfg.URL, cfg.Token, cfg.Timeout))
		return func() {}, nil
	case "postgres":
		pg, err := source.NewPostgresSource(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		source.Register("postgres", pg)
		return pg.Close, nil
	case "simulated":
		source.Register("simulated", source.NewSimulated(time.Now().UnixNano(), cfg.SimulatedDevices))
		return func() {}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q, want one of http, postgres, simulated", cfg.Kind)
}

// sinks builds the configured sinks and returns a func that closes them.
func sinks(cfg *config.Config, logger *slog.Logger) ([]poller.Sink, func(), error) {
	var out []poller.Sink
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Influx.Enabled() {
		influx := db.NewInfluxDB(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		out = append(out, influx)
		closers = append(closers, influx.Close)
		logger.Info("saving readings to InfluxDB", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
	}

	var publishers []publish.Publisher
	if cfg.MQTT.Enabled() {
		m, err := publish.NewMQTT(publish.MQTTConfig{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		publishers = append(publishers, m)
		closers = append(closers, m.Close)
		logger.Info("publishing status changes to MQTT", "broker", cfg.MQTT.BrokerURL)
	}
	if cfg.Kafka.Enabled() {
		k, err := publish.NewKafka(publish.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		publishers = append(publishers, k)
		closers = append(closers, func() {
			if err := k.Close(); err != nil {
				logger.Error("closing Kafka writer failed", logging.Err(err))
			}
		})
		logger.Info("publishing status changes to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	if len(publishers) > 0 {
		out = append(out, publish.NewSink(publishers...))
	}

	return out, closeAll, nil
}

func main() {
	flag.Parse()

	cfg := config.MustLoad(configPath)
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	release, err := registerSources(ctx, cfg.Source)
	if err != nil {
		logger.Error("failed to set up source", logging.Err(err))
		os.Exit(1)
	}
	defer release()

	src, err := source.Get(cfg.Source.Kind)
	if err != nil {
		logger.Error("failed to get source", logging.Err(err), "available", source.Names())
		os.Exit(1)
	}

	sinkList, closeSinks, err := sinks(cfg, logger)
	if err != nil {
		logger.Error("failed to set up sinks", logging.Err(err))
		os.Exit(1)
	}
	defer closeSinks()

	p := poller.New(src,
		poller.WithLogger(logger),
		poller.WithTTL(cfg.Poll.CacheTTL),
		poller.WithSinks(sinkList...),
	)

	domains, err := cfg.Domains()
	if err != nil {
		logger.Error("bad config", logging.Err(err))
		os.Exit(1)
	}
	if err := p.Start(cfg.Poll.Spec, domains...); err != nil {
		logger.Error("failed to start poller", logging.Err(err))
		os.Exit(1)
	}
	defer p.Stop(context.Background())

	hub := web.NewHub(logger)
	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()
	go hub.Run(ctx, updates)

	// Fill the caches before the first tick.
	for _, d := range domains {
		poller.Job{Poller: p, Domain: d, Timeout: cfg.Source.Timeout}.Run()
	}

	go p.Janitor(ctx, cfg.Poll.JanitorInterval)

	srv := &web.Server{
		Poller:         p,
		Source:         src,
		Hub:            hub,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AppEngine:      cfg.Server.AppEngine,
		Push: web.PushConfig{
			Token:          cfg.Push.Token,
			Audience:       cfg.Push.Audience,
			IgnoredDevices: cfg.Push.IgnoredDevices,
		},
	}

	logger.Info("starting udaserver", "env", cfg.Env, "source", cfg.Source.Kind, "domains", domains)
	if err := srv.ListenAndServe(ctx, cfg.Server.Address, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("server failed", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("stopped")
}
