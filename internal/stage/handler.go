package stage

import (
	"context"

	"stagehand/internal/registry"
)

// Handler is implemented by each pipeline stage. Prepare runs quick setup
// once the job enters the stage's processing status, Execute does the work,
// and HealthCheck answers whether the stage could run right now.
type Handler interface {
	Prepare(context.Context, *registry.Job) error
	Execute(context.Context, *registry.Job) error
	HealthCheck(context.Context) Health
}
