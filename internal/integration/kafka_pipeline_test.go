//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/reservoir-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/reservoir-forecast-service/internal/config"
	"github.com/couchcryptid/reservoir-forecast-service/internal/domain"
	"github.com/couchcryptid/reservoir-forecast-service/internal/observability"
	"github.com/couchcryptid/reservoir-forecast-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-forecast-requests"
	testSinkTopic   = "test-forecast-results"
)

var testDefaults = pipeline.Defaults{
	Horizon:            6,
	DepletionThreshold: 20,
	DepletionWindow:    21,
	DepletionScenario:  domain.ScenarioLow,
}

// resultMessage holds a deserialized message read from the sink topic.
type resultMessage struct {
	Response domain.ForecastResponse
	Key      string
	Headers  map[string]string
}

func readResult(ctx context.Context, t *testing.T, consumer *kafkago.Reader) resultMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var resp domain.ForecastResponse
	require.NoError(t, json.Unmarshal(msg.Value, &resp), "unmarshal sink message")

	return resultMessage{Response: resp, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func requestMessage(t *testing.T, req domain.ForecastRequest) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(req.ID), Value: payload}
}

func demandHistory() []domain.TimeSeriesPoint {
	start := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]domain.TimeSeriesPoint, 24)
	for i := range rows {
		rows[i] = domain.TimeSeriesPoint{
			Period: domain.MonthLabel(start.AddDate(0, i, 0)),
			Value:  12000 + 800*float64(i%12),
		}
	}
	return rows
}

func damSamples() []domain.DamFillSample {
	start := time.Date(2024, time.September, 1, 6, 0, 0, 0, time.UTC)
	samples := make([]domain.DamFillSample, 0, 28)
	for i := range 14 {
		day := start.AddDate(0, 0, i)
		samples = append(samples,
			domain.DamFillSample{DamName: "Tahtali", Date: day, FillPercent: 40 - 0.5*float64(i)},
			domain.DamFillSample{DamName: "Balcova", Date: day, FillPercent: 22 - 0.25*float64(i)},
		)
	}
	return samples
}

// TestPipelineEndToEnd wires reader, transformer, and writer against a real
// broker and checks one response per request kind plus a degraded response.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		requestMessage(t, domain.ForecastRequest{
			ID:     "demand-1",
			Kind:   domain.KindDemand,
			Demand: &domain.DemandRequest{Name: "Bornova", Monthly: demandHistory()},
		}),
		requestMessage(t, domain.ForecastRequest{
			ID:        "depletion-1",
			Kind:      domain.KindDepletion,
			Depletion: &domain.DepletionRequest{Samples: damSamples()},
		}),
		requestMessage(t, domain.ForecastRequest{
			ID:        "summary-1",
			Kind:      domain.KindReservoirSummary,
			Reservoir: &domain.ReservoirRequest{Days: 7, Samples: damSamples()},
		}),
		requestMessage(t, domain.ForecastRequest{
			ID:     "demand-unnamed",
			Kind:   domain.KindDemand,
			Demand: &domain.DemandRequest{Monthly: demandHistory()},
		}),
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(testDefaults, discardLogger(), metrics)
	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	received := make(map[string]resultMessage, 4)
	for len(received) < 4 {
		rm := readResult(ctx, t, consumer)
		received[rm.Key] = rm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	for key, rm := range received {
		assert.Equal(t, key, rm.Response.ID)
		assert.Equal(t, string(rm.Response.Kind), rm.Headers["kind"])
		_, err := time.Parse(time.RFC3339, rm.Headers["processed_at"])
		assert.NoError(t, err, "invalid processed_at for %s", key)
	}

	demand := received["demand-1"].Response
	require.NotNil(t, demand.Demand)
	assert.Empty(t, demand.Error)
	assert.Equal(t, domain.ModelSeasonalNaive, demand.Demand.Model)
	require.Len(t, demand.Demand.Forecast, 6)
	assert.Equal(t, "2024-01", demand.Demand.Forecast[0].Period)

	depletion := received["depletion-1"].Response
	require.NotNil(t, depletion.Depletion)
	require.Len(t, depletion.Depletion.Items, 2)
	require.NotNil(t, depletion.Depletion.EarliestDam)
	assert.Equal(t, "Balcova", *depletion.Depletion.EarliestDam)
	assert.Equal(t, 0, *depletion.Depletion.EarliestDays)

	summary := received["summary-1"].Response
	require.NotNil(t, summary.Reservoir)
	assert.Len(t, summary.Reservoir.Trend, 7)
	assert.Equal(t, "2024-09-14", summary.Reservoir.LatestDate)

	degraded := received["demand-unnamed"].Response
	assert.Equal(t, domain.ErrMissingName.Error(), degraded.Error)

	assert.NoError(t, p.CheckReadiness(ctx))
}

// TestPipelineSkipsPoisonMessage verifies that an unparseable request is
// committed and skipped while later requests are still answered.
func TestPipelineSkipsPoisonMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("wrong-kind"), Value: []byte(`{"id":"wrong-kind","kind":"rainfall"}`)},
		requestMessage(t, domain.ForecastRequest{ID: "good", Kind: domain.KindReservoirSummary}),
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(testDefaults, discardLogger(), metrics)
	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	rm := readResult(ctx, t, consumer)
	assert.Equal(t, "good", rm.Key)
	assert.Equal(t, "reservoir_summary", rm.Headers["kind"])

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further messages on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
