package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/models"
)

// Notifier delivers visit offers to counsellors through the notification
// exchange. Delivery is best effort: the mobile gateway consuming the queue
// owns retries and per-channel fan-out (push, SMS).
type Notifier struct {
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

func NewNotifier(cfg *config.Configuration, channel *amqp.Channel) *Notifier {
	return &Notifier{
		channel: channel,
		cfg:     &cfg.Queue.RabbitMQ,
	}
}

// PublishOffer publishes an assignment offer message to the exchange.
func (n *Notifier) PublishOffer(offer models.OfferMessage) error {
	if offer.Timestamp.IsZero() {
		offer.Timestamp = time.Now()
	}

	body, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer message: %w", err)
	}

	err = n.channel.Publish(
		n.cfg.Exchange,
		n.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		logrus.WithError(err).Error("Failed to publish offer message")
		return fmt.Errorf("failed to publish offer message: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session_id":    offer.SessionID,
		"counsellor_id": offer.CounsellorID,
		"kind":          offer.Kind,
		"exchange":      n.cfg.Exchange,
		"routing_key":   n.cfg.RoutingKey,
	}).Debug("Offer message published")

	return nil
}
