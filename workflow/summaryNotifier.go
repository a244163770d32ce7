package workflow

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const SummaryReconciledEvent = "DailySummaryReconciled"

// SummaryNotifier is told about every summary written by a committed reconcile.
type SummaryNotifier interface {
	SummaryReconciled(ctx context.Context, summary *models.DailyExpenseSummary)
}

type NoopNotifier struct{}

func (NoopNotifier) SummaryReconciled(context.Context, *models.DailyExpenseSummary) {}

type SummaryReconciledMessage struct {
	Event            string          `json:"event"`
	ProjectId        string          `json:"project_id"`
	Date             models.Date     `json:"date"`
	CarriedForward   decimal.Decimal `json:"carried_forward_amount"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	CorrelationId    string          `json:"correlation_id,omitempty"`
	TriggeredBy      string          `json:"triggered_by,omitempty"`
	ReconciledAt     time.Time       `json:"reconciled_at"`
}

func NewSummaryReconciledMessage(ctx context.Context, summary *models.DailyExpenseSummary) SummaryReconciledMessage {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	return SummaryReconciledMessage{
		Event:            SummaryReconciledEvent,
		ProjectId:        summary.ProjectId,
		Date:             summary.SummaryDate,
		CarriedForward:   summary.CarriedForwardAmount,
		TotalIncome:      summary.TotalIncome,
		TotalExpenses:    summary.TotalExpenses,
		RemainingBalance: summary.RemainingBalance,
		CorrelationId:    correlationId,
		TriggeredBy:      userName,
		ReconciledAt:     time.Now().UTC(),
	}
}

// PubSubNotifier publishes SummaryReconciledMessage to a topic. Publishing is
// asynchronous and failures are only logged.
type PubSubNotifier struct {
	topic  *pubsub.Topic
	logger *logrus.Logger
}

func NewPubSubNotifier(topic *pubsub.Topic, logger *logrus.Logger) *PubSubNotifier {
	// ordering per project keeps a consumer's view of a project's balance monotonic
	topic.EnableMessageOrdering = true
	return &PubSubNotifier{topic: topic, logger: logger}
}

func (n *PubSubNotifier) SummaryReconciled(ctx context.Context, summary *models.DailyExpenseSummary) {
	msg := NewSummaryReconciledMessage(ctx, summary)
	data, err := json.Marshal(msg)
	if err != nil {
		config.LogError(n.logger, "summaryNotifier.go", "SummaryReconciled", "marshal message", msg, err)
		return
	}
	ctx = utils.DetachedContext(ctx)
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: summary.ProjectId,
		Attributes: map[string]string{
			"event":      SummaryReconciledEvent,
			"project_id": summary.ProjectId,
			"date":       summary.SummaryDate.String(),
		},
	})
	go func() {
		if _, err := result.Get(ctx); err != nil {
			config.LogError(n.logger, "summaryNotifier.go", "SummaryReconciled", "publish", msg, err)
			// ordered publishing pauses the key after a failure
			n.topic.ResumePublish(summary.ProjectId)
		}
	}()
}

// Stop flushes pending messages.
func (n *PubSubNotifier) Stop() {
	n.topic.Stop()
}
