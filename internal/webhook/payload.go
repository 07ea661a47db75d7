// Package webhook implements both legs of the return channel: the chi
// receiver the hosted side runs, and the client the browser-side agent
// posts with. The response body is a plain-text marker ("Success" or
// "Unauthorized") that callers match by substring.
package webhook

// Payload is the wire format of a delivery
type Payload struct {
	Key       string     `json:"key"`
	TableData [][]string `json:"tableData"`
}

// Response markers. The canonical response wraps these, so callers check
// with strings.Contains, never equality.
const (
	MarkerSuccess      = "Success"
	MarkerUnauthorized = "Unauthorized"
)
