package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

func setupKafka(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_ClearsCartFromKafka(t *testing.T) {
	broker := setupKafka(t)
	topic := "order-events"
	createTopic(t, broker, topic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := cart.NewStore(ctx, "owner1", repository.NewMemoryRepository(), zap.NewNop())
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	store.Add(domain.LineDescriptor{ProductID: 1, Key: "p1", Title: "Mug"}, 2)

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	var msgs []kafkaGo.Message
	for _, ev := range []OrderEvent{
		{EventType: EventOrderCompleted, OwnerID: "someone-else", OrderID: "o-1"},
		{EventType: EventOrderCompleted, OwnerID: "owner1", OrderID: "o-2"},
	} {
		payload, err := json.Marshal(ev)
		require.NoError(t, err)
		msgs = append(msgs, kafkaGo.Message{Key: []byte(ev.OrderID), Value: payload})
	}
	require.NoError(t, w.WriteMessages(ctx, msgs...))
	require.NoError(t, w.Close())

	p := NewPoller("owner1", store, Config{Brokers: []string{broker}, Topic: topic, GroupID: "storefront-test"}, zap.NewNop())
	defer p.Close()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		return store.TotalLines() == 0
	}, 30*time.Second, 500*time.Millisecond, "completed order for this owner clears the cart")
}
