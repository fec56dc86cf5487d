package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// Publisher is the publish side of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventPublisher forwards run events to MQTT. It satisfies
// automation.EventPublisher.
//
// Every event goes to taskt/run/{id}/{type}; state changes and the final
// event are also written, retained, to taskt/run/{id}/status so late
// subscribers see the last known state.
type EventPublisher struct {
	pub Publisher
	qos byte
}

// NewEventPublisher creates an EventPublisher on pub with the given QoS.
func NewEventPublisher(pub Publisher, qos byte) *EventPublisher {
	return &EventPublisher{pub: pub, qos: qos}
}

// PublishRunEvent publishes ev.
func (p *EventPublisher) PublishRunEvent(ev automation.Event) error {
	if ev.RunID == "" {
		return fmt.Errorf("%w: event has no run id", ErrInvalidTopic)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}

	topics := Topics{}
	if err := p.pub.Publish(topics.RunEvent(ev.RunID, ev.Type), payload, p.qos, false); err != nil {
		return err
	}
	if ev.Type == automation.EventRunState || ev.Type == automation.EventRunFinished {
		return p.pub.Publish(topics.RunStatus(ev.RunID), payload, p.qos, true)
	}
	return nil
}
