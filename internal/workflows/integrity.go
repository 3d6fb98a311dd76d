package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jmaguas/azenha/internal/core/domain"
)

// AuditInput is the input for the geometry audit workflow.
type AuditInput struct {
	ThresholdMeters float64
}

// GeometryAuditWorkflow decode-verifies every stored geometry, then gives
// unlinked structures another chance to find their channel. Malformed
// rows are reported in the result, never repaired in place.
func GeometryAuditWorkflow(ctx workflow.Context, input AuditInput) (*domain.AuditReport, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting geometry audit")

	report := &domain.AuditReport{StartedAt: workflow.Now(ctx)}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: decode every stored geometry
	var verify VerifyResult
	if err := workflow.ExecuteActivity(ctx, "VerifyGeometries").Get(ctx, &verify); err != nil {
		return nil, err
	}
	report.CheckedStructures = verify.CheckedStructures
	report.CheckedChannels = verify.CheckedChannels
	report.MalformedIDs = verify.MalformedIDs
	if len(verify.MalformedIDs) > 0 {
		logger.Warn("Audit found malformed geometries", "count", len(verify.MalformedIDs))
	}

	// Step 2: relink structures that lost or never had a channel
	var relinked int
	if err := workflow.ExecuteActivity(ctx, "RelinkStructures", input.ThresholdMeters).Get(ctx, &relinked); err != nil {
		return nil, err
	}
	report.Relinked = relinked
	report.FinishedAt = workflow.Now(ctx)

	logger.Info("Geometry audit finished",
		"checkedStructures", report.CheckedStructures,
		"checkedChannels", report.CheckedChannels,
		"malformed", len(report.MalformedIDs),
		"relinked", report.Relinked)
	return report, nil
}
