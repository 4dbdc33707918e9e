package luis

import "fmt"

// ArgumentError reports a missing required input.
type ArgumentError struct {
	Param string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("missing required argument: %s", e.Param)
}

// FormatError reports a prediction response that cannot be interpreted.
type FormatError struct {
	Type   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("malformed prediction response: %s", e.Reason)
	}
	return fmt.Sprintf("malformed prediction response for entity type %q: %s", e.Type, e.Reason)
}
