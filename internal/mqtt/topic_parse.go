package mqtt

import (
	"fmt"
	"strings"
)

// expected: {prefix}/test/{requestId}
func ParseRequestID(topic, prefix string) (string, error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) != len(prefixParts)+2 {
		return "", fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return "", fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	if parts[len(prefixParts)] != "test" {
		return "", fmt.Errorf("invalid topic pattern: %s", topic)
	}
	requestID := parts[len(prefixParts)+1]
	if requestID == "" {
		return "", fmt.Errorf("empty request id: %s", topic)
	}
	return requestID, nil
}
