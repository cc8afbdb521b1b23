package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes gamification instruments.
type Metrics struct {
	activitiesRecorded   metric.Int64Counter
	activitiesRejected   metric.Int64Counter
	pointsPosted         metric.Int64Counter
	achievementsUnlocked metric.Int64Counter
	streakMilestones     metric.Int64Counter
	redemptions          metric.Int64Counter
	redemptionsRejected  metric.Int64Counter
	rateLimitAllowed     metric.Int64Counter
	rateLimitDenied      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "carepoints"
	}
	meter := provider.Meter(name)

	counters := map[string]*metric.Int64Counter{}
	m := &Metrics{}
	counters["carepoints_activities_recorded_total"] = &m.activitiesRecorded
	counters["carepoints_activities_rejected_total"] = &m.activitiesRejected
	counters["carepoints_points_posted_total"] = &m.pointsPosted
	counters["carepoints_achievements_unlocked_total"] = &m.achievementsUnlocked
	counters["carepoints_streak_milestones_total"] = &m.streakMilestones
	counters["carepoints_redemptions_total"] = &m.redemptions
	counters["carepoints_redemptions_rejected_total"] = &m.redemptionsRejected
	counters["carepoints_rate_limit_allowed_total"] = &m.rateLimitAllowed
	counters["carepoints_rate_limit_denied_total"] = &m.rateLimitDenied

	for counterName, target := range counters {
		counter, err := meter.Int64Counter(counterName)
		if err != nil {
			return nil, err
		}
		*target = counter
	}

	return m, nil
}

// RecordActivity increments recorded activity counts.
func (m *Metrics) RecordActivity(ctx context.Context, category string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("category", strings.TrimSpace(category)))
	m.activitiesRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordActivityRejected counts recordings refused with a user-facing error.
func (m *Metrics) RecordActivityRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.activitiesRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPoints adds the absolute posted amount per transaction type.
func (m *Metrics) RecordPoints(ctx context.Context, txType, sourceType string, amount int64) {
	if m == nil {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	attrs := FilterAttributes(
		attribute.String("tx_type", strings.TrimSpace(txType)),
		attribute.String("source_type", strings.TrimSpace(sourceType)),
	)
	m.pointsPosted.Add(ctx, amount, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAchievementUnlocked(ctx context.Context, level int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Int("level", level))
	m.achievementsUnlocked.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordStreakMilestone(ctx context.Context) {
	if m == nil {
		return
	}
	m.streakMilestones.Add(ctx, 1)
}

// RecordRedemption increments successful redemption counts.
func (m *Metrics) RecordRedemption(ctx context.Context, category string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("category", strings.TrimSpace(category)))
	m.redemptions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRedemptionRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.redemptionsRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"category":    {},
	"level":       {},
	"tx_type":     {},
	"source_type": {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
