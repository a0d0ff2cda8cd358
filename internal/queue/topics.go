package queue

const (
	// TopicIssueRequested carries confirmation messages keyed by coupon id.
	TopicIssueRequested = "coupon-issue-requested"
	TopicDLTSuffix      = ".DLT"

	HeaderRequestID         = "x-request-id"
	HeaderError             = "x-error"
	HeaderAttempts          = "x-attempts"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
)

// DeadLetterTopic returns the dead-letter topic for topic.
func DeadLetterTopic(topic string) string {
	return topic + TopicDLTSuffix
}
