package resolve

import (
	"context"

	"github.com/termbridge/termbridge/internal/domain/record"
)

// Suggestion is one candidate external code returned by the collaborator.
// Score is the collaborator's own match confidence in [0,1].
type Suggestion struct {
	TargetSystem string
	TargetCode   string
	Display      string
	Score        float64
}

// ExternalLookuper is the external code-resolution collaborator. It must
// return promptly or fail with errs.ErrUnavailable; the resolver treats any
// error as "no suggestion" and never lets it escalate into a resolution
// failure.
type ExternalLookuper interface {
	LookupExternalCode(ctx context.Context, rec *record.TerminologyRecord) ([]Suggestion, error)
}
