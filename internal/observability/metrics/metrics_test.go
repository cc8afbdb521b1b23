package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("category", "physical"),
		attribute.String("user_id", "456"),
		attribute.String("reason", "duplicate_activity"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("category"), attrs[0].Key)
	assert.Equal(t, attribute.Key("reason"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordActivity(context.Background(), "physical")
		m.RecordPoints(context.Background(), "spent", "reward", -10)
		m.RecordRedemptionRejected(context.Background(), "out_of_stock")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "carepoints"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordActivity(context.Background(), "mental")
		m.RecordAchievementUnlocked(context.Background(), 2)
		m.RecordStreakMilestone(context.Background())
	})
}
