package workflow_test

import (
	"context"
	"encoding/json"
	"testing"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/stretchr/testify/require"
)

func TestSummaryReconciledMessage(t *testing.T) {
	summary := &models.DailyExpenseSummary{
		ProjectId:            "p1",
		SummaryDate:          day2,
		CarriedForwardAmount: dec("1000"),
		TotalIncome:          dec("200"),
		TotalExpenses:        dec("300"),
		RemainingBalance:     dec("900"),
	}

	ctx := utils.SetUserNameInContext(context.Background(), "RecalculateBalances")
	ctx = utils.SetCorrelationIdInContext(ctx, "cid-1")
	msg := workflow.NewSummaryReconciledMessage(ctx, summary)
	require.Equal(t, workflow.SummaryReconciledEvent, msg.Event)
	require.Equal(t, "p1", msg.ProjectId)
	require.Equal(t, day2, msg.Date)
	requireDecimal(t, "900", msg.RemainingBalance)
	require.Equal(t, "cid-1", msg.CorrelationId)
	require.Equal(t, "RecalculateBalances", msg.TriggeredBy)

	body, err := json.Marshal(workflow.NewSummaryReconciledMessage(context.Background(), summary))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.NotContains(t, decoded, "triggered_by")
	require.NotContains(t, decoded, "correlation_id")
	require.Equal(t, "p1", decoded["project_id"])
}
