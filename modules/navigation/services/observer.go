package services

// Observer receives engine events for metrics. Implementations must be safe
// for concurrent use.
type Observer interface {
	FetchCompleted(tenantID string, records int, anomalies int)
	FetchFailed(tenantID string)
	FetchDiscarded(tenantID string)
	MutationApplied(tenantID string, kind string)
	MutationRejected(tenantID string, kind string, reason string)
}

type nopObserver struct{}

func (nopObserver) FetchCompleted(string, int, int)         {}
func (nopObserver) FetchFailed(string)                      {}
func (nopObserver) FetchDiscarded(string)                   {}
func (nopObserver) MutationApplied(string, string)          {}
func (nopObserver) MutationRejected(string, string, string) {}

const (
	MutationMove    = "move"
	MutationReorder = "reorder"
	MutationStatus  = "status"
	MutationCreate  = "create"
	MutationUpdate  = "update"
	MutationDelete  = "delete"
)
