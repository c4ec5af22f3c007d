package release

import "fmt"

// VariantStatus tracks a variant's progress through the pipeline. Statuses
// advance strictly in order; `FAILED` is reachable from any non-terminal
// status and both `DONE` and `FAILED` are terminal.
type VariantStatus string

const (
	StatusPending    VariantStatus = "PENDING"
	StatusCompiling  VariantStatus = "COMPILING"
	StatusStaged     VariantStatus = "STAGED"
	StatusPublishing VariantStatus = "PUBLISHING"
	StatusDone       VariantStatus = "DONE"
	StatusFailed     VariantStatus = "FAILED"
)

func (status VariantStatus) Terminal() bool {
	return status == StatusDone || status == StatusFailed
}

var nextStatus = map[VariantStatus]VariantStatus{
	StatusPending:    StatusCompiling,
	StatusCompiling:  StatusStaged,
	StatusStaged:     StatusPublishing,
	StatusPublishing: StatusDone,
}

// Execution is the mutable pipeline state for a single variant.
type Execution struct {
	Variant string
	Status  VariantStatus
}

func NewExecution(variant string) *Execution {
	return &Execution{Variant: variant, Status: StatusPending}
}

// Advance moves the execution to `status`, enforcing that no stage is
// skipped and that terminal statuses are never left.
func (e *Execution) Advance(status VariantStatus) error {
	if !e.Status.Terminal() {
		if status == StatusFailed || nextStatus[e.Status] == status {
			e.Status = status
			return nil
		}
	}
	return fmt.Errorf(
		"variant `%s`: illegal status transition `%s` -> `%s`",
		e.Variant,
		e.Status,
		status,
	)
}

// Fail marks the execution failed. Failing is legal from every non-terminal
// status, so any stage can abort the variant.
func (e *Execution) Fail() error {
	return e.Advance(StatusFailed)
}
