package driven

import (
	"context"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
)

// Validator defines the driven port for per-provider credential validation.
// Implementations never let a provider SDK error or panic cross this
// boundary; every outcome, expected or not, is folded into a
// ValidationResult. Validators do not retry; retry and timeout policy
// belongs to the caller, and ctx cancellation must abort an in-flight probe.
type Validator interface {
	// Provider returns the provider this validator handles.
	Provider() model.CloudProvider

	// ValidateFormat performs purely local, offline checks of the config:
	// required-field presence and syntactic shape. It must not perform
	// network I/O.
	ValidateFormat(config map[string]string) model.ValidationResult

	// Validate re-runs ValidateFormat, then performs one minimal-privilege
	// live probe against the provider's control plane to prove the
	// credential is usable. Potentially slow (seconds).
	Validate(ctx context.Context, config map[string]string) model.ValidationResult
}
