package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
)

// Producer streams payment outcome events for downstream consumers
// (receipts, notifications, analytics). With MockMode on, events are only
// logged; useful for local development without a broker.
type Producer struct {
	successWriter *kafka.Writer
	failedWriter  *kafka.Writer
	mockMode      bool
	log           *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	if !cfg.Enabled || cfg.MockMode {
		log.Info("KAFKA", "producer running in mock mode, events will be logged only")
		return &Producer{mockMode: true, log: log}
	}

	return &Producer{
		successWriter: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topics.PaymentSuccess,
			Balancer: &kafka.LeastBytes{},
		},
		failedWriter: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topics.PaymentFailed,
			Balancer: &kafka.LeastBytes{},
		},
		log: log,
	}
}

func (p *Producer) PublishPaymentSucceeded(ctx context.Context, payment *models.Payment) error {
	return p.publish(ctx, p.successWriter, "payment.success", payment)
}

func (p *Producer) PublishPaymentFailed(ctx context.Context, payment *models.Payment) error {
	return p.publish(ctx, p.failedWriter, "payment.failed", payment)
}

func (p *Producer) publish(ctx context.Context, writer *kafka.Writer, eventType string, payment *models.Payment) error {
	event := models.PaymentEvent{
		Type:      eventType,
		PaymentID: payment.PaymentID,
		OrderID:   payment.OrderID,
		Payment:   payment,
		Timestamp: time.Now(),
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	if p.mockMode {
		p.log.LogKafka("MOCK", eventType, string(eventData))
		return nil
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payment.PaymentID),
		Value: eventData,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.log.LogKafka("PUBLISH", eventType, fmt.Sprintf("payment %s for order %s", payment.PaymentID, payment.OrderID))
	return nil
}

func (p *Producer) Close() error {
	if p.mockMode {
		return nil
	}
	if err := p.successWriter.Close(); err != nil {
		return err
	}
	return p.failedWriter.Close()
}
