package photo

import "lightbox/internal/services"

// Status is the lifecycle position of a photo in the library.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEnriching Status = "enriching"
	StatusEnriched  Status = "enriched"
	StatusPartial   Status = "partial"
	StatusReview    Status = "review"
	StatusFailed    Status = "failed"
	StatusDuplicate Status = "duplicate"
)

// AllStatuses returns every status in display order.
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusEnriching,
		StatusEnriched,
		StatusPartial,
		StatusReview,
		StatusFailed,
		StatusDuplicate,
	}
}

// ParseStatus reports whether value names a known status.
func ParseStatus(value string) (Status, bool) {
	for _, s := range AllStatuses() {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// FailureStatus maps a unit error to the status a photo should be left in.
// Problems a person has to fix go to review; everything else is failed and
// eligible for retry.
func FailureStatus(err error) Status {
	if services.NeedsReview(err) {
		return StatusReview
	}
	return StatusFailed
}
