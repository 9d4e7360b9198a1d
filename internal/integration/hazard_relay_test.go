//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/neo-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/neo-risk-service/internal/adapter/neows"
	"github.com/couchcryptid/neo-risk-service/internal/adapter/sqlite"
	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/observability"
	"github.com/couchcryptid/neo-risk-service/internal/pipeline"
)

const testHazardTopic = "test-neo-hazard-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("neo-risk-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// feedServer serves the pipeline fixture for any window.
func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", "feed.json"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestHazardScanMirroredToKafka runs one scan against a fake feed with a real
// SQLite store and a real broker, and checks that the bus, the store and the
// Kafka topic all saw the same hazard.
func TestHazardScanMirroredToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testHazardTopic)

	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "neo.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	owner, err := store.UpsertUser(ctx, "observer@example.com", "Observer")
	require.NoError(t, err)

	bus := broadcast.NewBus(16, metrics, logger)
	client := bus.Subscribe()
	defer bus.Unsubscribe(client)

	relay := kafka.NewRelay([]string{broker}, testHazardTopic, bus, metrics, logger)
	t.Cleanup(func() { _ = relay.Close() })
	relayCtx, relayCancel := context.WithCancel(ctx)
	relayDone := make(chan error, 1)
	go func() { relayDone <- relay.Run(relayCtx) }()

	feed := neows.NewClient(feedServer(t).URL, "test-key", 5*time.Second, metrics, logger)
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC))
	scanner := pipeline.NewScanner(feed, bus, store,
		pipeline.ScannerConfig{Schedule: pipeline.Schedule{Hour: 9}, AlertThreshold: 90},
		clock, metrics, logger)

	outcome := scanner.ScanOnce(ctx)
	require.Equal(t, pipeline.ScanAlerted, outcome.Result)
	require.NotNil(t, outcome.Alert)

	select {
	case env := <-client.C:
		assert.Equal(t, broadcast.TypeHazard, env.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not receive the hazard event")
	}

	alerts, err := store.ListAlerts(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "NASA: 453309 (2019 HZ4) Approach", alerts[0].Name)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testHazardTopic,
		GroupID:     fmt.Sprintf("test-hazards-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read hazard event from kafka")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "2453309", string(msg.Key))
	assert.Equal(t, "system_alert", headers["event_type"])
	assert.Equal(t, "critical", headers["severity"])

	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "453309 (2019 HZ4)", payload["object_name"])
	assert.Equal(t, outcome.Event.Message, payload["message"])

	relayCancel()
	require.NoError(t, <-relayDone)
}
