// Command mapper subscribes to sensor telemetry over MQTT, decodes each
// payload into Readings and forwards them to the configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/mapper"
	"github.com/illmade-knight/go-sensormapper/pkg/mqttconverter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "optional path to a YAML config file; environment variables override it")
	flag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := mapper.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer, err := mqttconverter.NewMqttConsumer(&cfg.MQTT, logger, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create MQTT consumer")
		return 1
	}

	out, cleanup, err := mapper.BuildSink(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create sinks")
		return 1
	}
	defer cleanup()

	svc, err := mapper.NewService(cfg, consumer, out, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create service")
		return 1
	}
	if err := svc.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start service")
		return 1
	}

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received.")
	case <-svc.Done():
		if errors.Is(consumer.Err(), mqttconverter.ErrConnectionLost) {
			logger.Error().Err(consumer.Err()).Msg("Lost connection to MQTT broker, exiting.")
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Service shutdown was not clean")
		exitCode = 1
	}
	logger.Info().Int("exit_code", exitCode).Msg("Sensor mapper stopped.")
	return exitCode
}
