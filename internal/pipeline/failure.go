package pipeline

import (
	"github.com/rotisserie/eris"
)

// Kind classifies a fatal pipeline failure.
type Kind string

const (
	KindCredentials Kind = "credentials"
	KindInput       Kind = "input"
	KindEnrichment  Kind = "enrichment"
	KindOutput      Kind = "output"
	KindInternal    Kind = "internal"
)

// Failure is the error returned when a run aborts. Per-store lookup
// problems never produce a Failure; they are recorded on the row instead.
type Failure struct {
	Kind    Kind
	Phase   string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind Kind, phase string, err error) *Failure {
	return &Failure{Kind: kind, Phase: phase, Message: err.Error(), Err: err}
}

func panicFailure(phase string, v any) *Failure {
	err := eris.Errorf("panic: %v", v)
	return &Failure{Kind: KindInternal, Phase: phase, Message: err.Error(), Err: err}
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if eris.As(err, &f) {
		return f, true
	}
	return nil, false
}
