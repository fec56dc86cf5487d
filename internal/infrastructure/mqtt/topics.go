package mqtt

import "fmt"

// Topic prefixes for the taskt runtime.
const (
	// TopicPrefix is the root of every taskt topic.
	TopicPrefix = "taskt"

	// TopicPrefixRun is the base for per-run event topics.
	TopicPrefixRun = "taskt/run"

	// TopicPrefixControl is the base for remote-control topics.
	TopicPrefixControl = "taskt/control"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "taskt/system"
)

// Topics provides builders for taskt MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.RunEvent("9b1d…", "command.failed")
//	// Returns: "taskt/run/9b1d…/command.failed"
type Topics struct{}

// ─── Run Topics ─────────────────────────────────────────────────────────────

// RunEvent returns the topic for one event type of a run.
//
// Example: taskt/run/{run_id}/run.state
func (Topics) RunEvent(runID, eventType string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixRun, runID, eventType)
}

// RunStatus returns the retained last-known-state topic of a run.
//
// Example: taskt/run/{run_id}/status
func (Topics) RunStatus(runID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixRun, runID)
}

// AllRunEvents returns a pattern matching every run event.
//
// Pattern: taskt/run/+/+
func (Topics) AllRunEvents() string {
	return TopicPrefixRun + "/+/+"
}

// ─── Control Topics ─────────────────────────────────────────────────────────

// ControlRequest returns the topic remote controllers publish envelopes on.
//
// Example: taskt/control/request
func (Topics) ControlRequest() string {
	return TopicPrefixControl + "/request"
}

// ControlResponse returns the topic a control answer is published on.
//
// Example: taskt/control/response/req-abc123
func (Topics) ControlResponse(requestID string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefixControl, requestID)
}

// ─── System Topics ──────────────────────────────────────────────────────────

// SystemStatus returns the runtime online/offline topic. It carries the LWT.
//
// Example: taskt/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllTopics returns a pattern matching all taskt topics.
//
// Pattern: taskt/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
