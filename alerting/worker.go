package alerting

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/chefbooks/foodcost_backend/config"
	"github.com/sirupsen/logrus"
)

// Notifier hands one alert to the outbound delivery channel (SMS gateway,
// chat webhook). Delivery itself happens outside this service.
type Notifier interface {
	Send(ctx context.Context, msg config.AlertMessage) error
}

// LogNotifier is the default sink when no gateway is configured: it just
// records the alert.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n *LogNotifier) Send(ctx context.Context, msg config.AlertMessage) error {
	n.Logger.WithFields(logrus.Fields{
		"establishment_id":  msg.EstablishmentId,
		"master_article_id": msg.MasterArticleId,
		"article_name":      msg.ArticleName,
		"supplier_name":     msg.SupplierName,
		"old_unit_cost":     msg.OldUnitCost,
		"new_unit_cost":     msg.NewUnitCost,
		"percentage":        msg.Percentage,
		"correlation_id":    msg.CorrelationId,
	}).Info("price variation alert")
	return nil
}

func subscriptionName() string {
	if v := strings.TrimSpace(os.Getenv("PUBSUB_ALERT_SUBSCRIPTION")); v != "" {
		return v
	}
	return "price-alert-worker"
}

// Run consumes the alert topic and forwards each message to the notifier.
// Alerts are a best-effort side channel: a failing handler is logged and the
// message acked, never redelivered forever.
func Run(ctx context.Context, logger *logrus.Logger, notifier Notifier) error {
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}
	topicName := strings.TrimSpace(os.Getenv("PUBSUB_ALERT_TOPIC"))
	topic, err := config.CreateTopicIfNotExists(client, topicName)
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, subscriptionName(), topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		defer m.Ack()

		var alert config.AlertMessage
		if err := json.Unmarshal(m.Data, &alert); err != nil {
			config.LogError(logger, "worker.go", "Run", "Unmarshal alert", string(m.Data), err)
			return
		}
		if err := notifier.Send(ctx, alert); err != nil {
			config.LogError(logger, "worker.go", "Run", "Send", alert, err)
		}
	})
}
