package services

import (
	"context"
	"errors"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
)

// SystemServiceDeps wires the dependencies required by the system service.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
}

type systemService struct {
	health repositories.HealthRepository
}

// NewSystemService constructs a SystemService validating required dependencies.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	return &systemService{health: deps.Health}, nil
}

// Health aggregates dependency probes into a readiness report.
func (s *systemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	return s.health.Collect(ctx)
}
