package mqtt

import "fmt"

func TopicTestRequests(prefix string) string {
	return fmt.Sprintf("%s/test/+", prefix)
}

func TopicTestRequest(prefix, requestID string) string {
	return fmt.Sprintf("%s/test/%s", prefix, requestID)
}

func TopicTestResult(prefix, requestID string) string {
	return fmt.Sprintf("%s/result/%s", prefix, requestID)
}

func TopicRunOutcome(prefix, runID string) string {
	return fmt.Sprintf("%s/runs/%s/result", prefix, runID)
}
