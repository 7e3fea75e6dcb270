package ephemera

import "time"

// Observer receives lifecycle events for metrics. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObjectIngested(sizeBytes int64)
	IngestRejected(reason string)
	ObjectDownloaded(sizeBytes int64)
	ObjectDeleted()
	ReapCompleted(purged, failed int, elapsed time.Duration)
	ReapFailed()
}

// Rejection reasons reported to Observer.IngestRejected.
const (
	RejectForbiddenType = "forbidden_type"
	RejectTooLarge      = "too_large"
	RejectInvalid       = "invalid"
)

type nopObserver struct{}

func (nopObserver) ObjectIngested(int64) {}
func (nopObserver) IngestRejected(string) {}
func (nopObserver) ObjectDownloaded(int64) {}
func (nopObserver) ObjectDeleted() {}
func (nopObserver) ReapCompleted(int, int, time.Duration) {}
func (nopObserver) ReapFailed() {}
