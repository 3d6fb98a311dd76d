package workflows_test

import (
	"context"
	"fmt"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/core/usecases"
	"github.com/jmaguas/azenha/internal/workflows"
)

// ---- Repo mocks; only the methods the audit touches carry behavior ----

type mockGeometryRepo struct {
	pages map[string][]ports.GeometryRow
	err   error
}

func (m *mockGeometryRepo) ListGeometries(ctx context.Context, afterID string, limit int) ([]ports.GeometryRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pages[afterID], nil
}

type mockStructureRepo struct {
	unlinked []domain.Structure
	linked   map[string]string
}

func (m *mockStructureRepo) Upsert(ctx context.Context, s *domain.Structure) error      { return nil }
func (m *mockStructureRepo) UpsertBatch(ctx context.Context, ss []domain.Structure) error { return nil }
func (m *mockStructureRepo) GetByID(ctx context.Context, id string) (*domain.Structure, error) {
	return nil, nil
}
func (m *mockStructureRepo) List(ctx context.Context, f ports.StructureFilter) ([]domain.Structure, error) {
	return nil, nil
}
func (m *mockStructureRepo) FindNearby(ctx context.Context, center domain.Coordinate, radiusMeters float64, limit int) ([]domain.Structure, error) {
	return nil, nil
}
func (m *mockStructureRepo) ListUnlinked(ctx context.Context, limit int) ([]domain.Structure, error) {
	return m.unlinked, nil
}
func (m *mockStructureRepo) SetChannel(ctx context.Context, id, channelID string) error {
	if m.linked == nil {
		m.linked = map[string]string{}
	}
	m.linked[id] = channelID
	return nil
}
func (m *mockStructureRepo) Delete(ctx context.Context, id string) error { return nil }
func (m *mockStructureRepo) CountByMunicipality(ctx context.Context, municipality string) ([]domain.KindCount, error) {
	return nil, nil
}

type mockChannelRepo struct {
	channels []domain.Channel
}

func (m *mockChannelRepo) Upsert(ctx context.Context, c *domain.Channel) error       { return nil }
func (m *mockChannelRepo) UpsertBatch(ctx context.Context, cs []domain.Channel) error { return nil }
func (m *mockChannelRepo) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	return nil, nil
}
func (m *mockChannelRepo) List(ctx context.Context, municipality string) ([]domain.Channel, error) {
	return m.channels, nil
}
func (m *mockChannelRepo) ListIntersecting(ctx context.Context, b domain.Bounds) ([]domain.Channel, error) {
	return nil, nil
}
func (m *mockChannelRepo) Delete(ctx context.Context, id string) error { return nil }

// ---- Workflow tests ----

func TestGeometryAuditWorkflow_AggregatesReport(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	geoms := &mockGeometryRepo{pages: map[string][]ports.GeometryRow{
		"": {
			{ID: "st-1", Table: "structures", Geom: "POINT(-8.611 41.145)"},
			{ID: "ch-1", Table: "channels", Geom: "LINESTRING(-8.620 41.150, -8.610 41.150)"},
			{ID: "st-2", Table: "structures", Geom: "POINT(broken"},
		},
		"st-2": {},
	}}
	structures := &mockStructureRepo{unlinked: []domain.Structure{
		// ~5.6 m from the levada below: should relink
		{ID: "st-unlinked", Kind: domain.KindMill, Location: domain.Coordinate{Lng: -8.615, Lat: 41.15005}},
	}}
	channels := &mockChannelRepo{channels: []domain.Channel{{
		ID:   "ch-1",
		Name: "Levada de Contumil",
		Path: []domain.Coordinate{{Lng: -8.620, Lat: 41.150}, {Lng: -8.610, Lat: 41.150}},
	}}}

	a := &workflows.AuditActivities{
		Integrity: usecases.NewIntegrityService(geoms, structures, channels, nil),
	}
	env.RegisterActivity(a)

	env.ExecuteWorkflow(workflows.GeometryAuditWorkflow, workflows.AuditInput{ThresholdMeters: 10})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	var report domain.AuditReport
	if err := env.GetWorkflowResult(&report); err != nil {
		t.Fatalf("get result: %v", err)
	}
	if report.CheckedStructures != 2 {
		t.Errorf("expected 2 structures checked, got %d", report.CheckedStructures)
	}
	if report.CheckedChannels != 1 {
		t.Errorf("expected 1 channel checked, got %d", report.CheckedChannels)
	}
	if len(report.MalformedIDs) != 1 || report.MalformedIDs[0] != "structures/st-2" {
		t.Errorf("expected structures/st-2 flagged, got %v", report.MalformedIDs)
	}
	if report.Relinked != 1 {
		t.Errorf("expected 1 relink, got %d", report.Relinked)
	}
	if structures.linked["st-unlinked"] != "ch-1" {
		t.Errorf("expected st-unlinked linked to ch-1, got %v", structures.linked)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("report finished before it started")
	}
}

func TestGeometryAuditWorkflow_VerifyFailurePropagates(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	geoms := &mockGeometryRepo{err: fmt.Errorf("connection refused")}
	a := &workflows.AuditActivities{
		Integrity: usecases.NewIntegrityService(geoms, &mockStructureRepo{}, &mockChannelRepo{}, nil),
	}
	env.RegisterActivity(a)

	env.ExecuteWorkflow(workflows.GeometryAuditWorkflow, workflows.AuditInput{})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected the verification failure to surface as a workflow error")
	}
}

// ---- Activity tests ----

func TestVerifyGeometriesActivity(t *testing.T) {
	geoms := &mockGeometryRepo{pages: map[string][]ports.GeometryRow{
		"": {
			{ID: "ch-ok", Table: "channels", Geom: "LINESTRING(-8.62 41.15, -8.61 41.15)"},
			{ID: "ch-bad", Table: "channels", Geom: "LINESTRING(-8.62 41.15)"},
		},
		"ch-bad": {},
	}}
	a := &workflows.AuditActivities{
		Integrity: usecases.NewIntegrityService(geoms, &mockStructureRepo{}, &mockChannelRepo{}, nil),
	}

	res, err := a.VerifyGeometries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CheckedChannels != 2 || res.CheckedStructures != 0 {
		t.Errorf("expected 2 channels and 0 structures checked, got %d and %d",
			res.CheckedChannels, res.CheckedStructures)
	}
	if len(res.MalformedIDs) != 1 || res.MalformedIDs[0] != "channels/ch-bad" {
		t.Errorf("expected channels/ch-bad flagged, got %v", res.MalformedIDs)
	}
}

func TestRelinkStructuresActivity_OutsideThreshold(t *testing.T) {
	structures := &mockStructureRepo{unlinked: []domain.Structure{
		// ~550 m from the levada: must stay unlinked
		{ID: "st-far", Kind: domain.KindMill, Location: domain.Coordinate{Lng: -8.615, Lat: 41.155}},
	}}
	channels := &mockChannelRepo{channels: []domain.Channel{{
		ID:   "ch-1",
		Path: []domain.Coordinate{{Lng: -8.620, Lat: 41.150}, {Lng: -8.610, Lat: 41.150}},
	}}}
	a := &workflows.AuditActivities{
		Integrity: usecases.NewIntegrityService(&mockGeometryRepo{}, structures, channels, nil),
	}

	relinked, err := a.RelinkStructures(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if relinked != 0 {
		t.Errorf("expected 0 relinks, got %d", relinked)
	}
	if len(structures.linked) != 0 {
		t.Errorf("expected no links written, got %v", structures.linked)
	}
}
