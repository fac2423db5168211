package idxmigrate

import (
	"context"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
	healthuc "github.com/kailas-cloud/idxmigrate/internal/usecase/health"
)

// --- runUseCase mock ---

type mockRunUC struct {
	runFn func(ctx context.Context) (domain.RunSummary, error)
	last  *domain.RunSummary
}

func (m *mockRunUC) Run(ctx context.Context) (domain.RunSummary, error) {
	return m.runFn(ctx)
}

func (m *mockRunUC) Last() (domain.RunSummary, bool) {
	if m.last == nil {
		return domain.RunSummary{}, false
	}
	return *m.last, true
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report {
	return m.report
}

// --- helpers ---

func testClient(runSvc runUseCase, healthSvc healthUseCase) *Client {
	return &Client{
		runSvc:    runSvc,
		healthSvc: healthSvc,
	}
}
