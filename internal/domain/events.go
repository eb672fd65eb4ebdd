package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
)

const (
	EventSubmissionSubmitted         = "submission.submitted"
	EventSubmissionApproved          = "submission.approved"
	EventSubmissionRevisionRequested = "submission.revision_requested"
	EventSubmissionRejected          = "submission.rejected"
	EventSubmissionPaymentCredited   = "submission.payment_credited"
	EventSubmissionCompleted         = "submission.completed"
	EventSubmissionMetricsRefreshed  = "submission.metrics_refreshed"

	EventTrackingCycleRequested = "tracking.cycle_requested"
)

type canonicalEventMeta struct {
	class            string
	partitionKeyPath string
}

var canonicalOutputEvents = map[string]canonicalEventMeta{
	EventSubmissionSubmitted:         {class: CanonicalEventClassDomain, partitionKeyPath: "data.submission_id"},
	EventSubmissionApproved:          {class: CanonicalEventClassDomain, partitionKeyPath: "data.submission_id"},
	EventSubmissionRevisionRequested: {class: CanonicalEventClassDomain, partitionKeyPath: "data.submission_id"},
	EventSubmissionRejected:          {class: CanonicalEventClassDomain, partitionKeyPath: "data.submission_id"},
	EventSubmissionPaymentCredited:   {class: CanonicalEventClassDomain, partitionKeyPath: "data.submission_id"},
	EventSubmissionCompleted:         {class: CanonicalEventClassDomain, partitionKeyPath: "data.submission_id"},
	EventSubmissionMetricsRefreshed:  {class: CanonicalEventClassAnalyticsOnly, partitionKeyPath: "data.submission_id"},
}

var canonicalInputEvents = map[string]canonicalEventMeta{
	EventTrackingCycleRequested: {class: CanonicalEventClassDomain, partitionKeyPath: "data.requested_by"},
}

func IsCanonicalInputEvent(eventType string) bool {
	_, ok := canonicalInputEvents[eventType]
	return ok
}

func CanonicalEventClass(eventType string) string {
	if m, ok := lookupCanonicalMeta(eventType); ok {
		return m.class
	}
	return ""
}

func CanonicalPartitionKeyPath(eventType string) string {
	if m, ok := lookupCanonicalMeta(eventType); ok {
		return m.partitionKeyPath
	}
	return ""
}

func lookupCanonicalMeta(eventType string) (canonicalEventMeta, bool) {
	if m, ok := canonicalOutputEvents[eventType]; ok {
		return m, true
	}
	m, ok := canonicalInputEvents[eventType]
	return m, ok
}

func IsCanonicalEmittedEvent(eventType string) bool {
	_, ok := canonicalOutputEvents[eventType]
	return ok
}
