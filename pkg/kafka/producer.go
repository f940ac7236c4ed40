// Package kafka wraps a franz-go client for fire-and-confirm event
// publishing.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
)

const (
	defaultProduceTimeout = 5 * time.Second
	defaultLinger         = 10 * time.Millisecond
)

// ProducerConfig configures a Producer. Brokers are dialed lazily on the
// first produce.
type ProducerConfig struct {
	Brokers  []string
	ClientID string
	// ClusterID is stamped on every record as the cluster_id header when set.
	ClusterID string
	// ProduceTimeout bounds a produce whose context has no deadline.
	ProduceTimeout time.Duration
	Logger         logging.Logger
}

// Producer writes records synchronously and waits for the broker ack.
type Producer struct {
	client    *kgo.Client
	logger    logging.Logger
	clusterID string
	timeout   time.Duration
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("kafka client id is required")
	}
	timeout := cfg.ProduceTimeout
	if timeout <= 0 {
		timeout = defaultProduceTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(defaultLinger),
		kgo.RecordRetries(3),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	logger.WithFields(logging.Fields{
		"brokers":   cfg.Brokers,
		"client_id": cfg.ClientID,
	}).Info("Kafka producer created")

	return &Producer{client: client, logger: logger, clusterID: cfg.ClusterID, timeout: timeout}, nil
}

// ProduceMessage writes one record to topic and waits for it to be acked.
func (p *Producer) ProduceMessage(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	if p.clusterID != "" {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: "cluster_id", Value: []byte(p.clusterID)})
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Client exposes the underlying client for health checks.
func (p *Producer) Client() *kgo.Client {
	return p.client
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.WithError(err).Warn("Kafka flush on close failed")
	}
	p.client.Close()
	return nil
}
