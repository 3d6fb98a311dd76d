package workflows

import (
	"context"

	"github.com/jmaguas/azenha/internal/core/usecases"
	"github.com/jmaguas/azenha/internal/pkg/metrics"
)

// VerifyResult carries one verification pass across the activity
// boundary.
type VerifyResult struct {
	CheckedStructures int
	CheckedChannels   int
	MalformedIDs      []string
}

// AuditActivities holds the activity implementations for the geometry
// audit workflow.
type AuditActivities struct {
	Integrity *usecases.IntegrityService
}

// VerifyGeometries decodes every stored geometry and reports the rows
// that fail.
func (a *AuditActivities) VerifyGeometries(ctx context.Context) (VerifyResult, error) {
	checkedStructures, checkedChannels, malformed, err := a.Integrity.VerifyGeometries(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	metrics.AuditMalformedFound.Add(float64(len(malformed)))
	return VerifyResult{
		CheckedStructures: checkedStructures,
		CheckedChannels:   checkedChannels,
		MalformedIDs:      malformed,
	}, nil
}

// RelinkStructures resolves unlinked structures against current channels
// and persists any line match.
func (a *AuditActivities) RelinkStructures(ctx context.Context, thresholdMeters float64) (int, error) {
	relinked, err := a.Integrity.RelinkStructures(ctx, thresholdMeters)
	if err != nil {
		return relinked, err
	}
	metrics.AuditRelinked.Add(float64(relinked))
	return relinked, nil
}
