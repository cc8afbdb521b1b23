package observability

import (
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/observability/logger"
	"github.com/smallbiznis/carepoints/internal/observability/metrics"
	"github.com/smallbiznis/carepoints/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.Jobs,
	),
	fx.Invoke(ensureTracingProvider),
	fx.Invoke(watchLogLevel),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

// watchLogLevel applies logLevel changes from the gamification config file.
func watchLogLevel(holder *config.GamificationConfigHolder, log *zap.Logger) {
	holder.OnChange(func(cfg config.GamificationConfig) {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			log.Warn("log level reload ignored", zap.Error(err))
			return
		}
		log.Info("log level reloaded", zap.String("level", cfg.LogLevel))
	})
}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		FilePath:            cfg.LogFile.Path,
		FileMaxSizeMB:       cfg.LogFile.MaxSizeMB,
		FileMaxBackups:      cfg.LogFile.MaxBackups,
		FileMaxAgeDays:      cfg.LogFile.MaxAgeDays,
		FileCompress:        cfg.LogFile.Compress,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}
