package listener

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ishandutta2007/taskt/internal/auth"
	"github.com/ishandutta2007/taskt/internal/infrastructure/logging"
	"github.com/ishandutta2007/taskt/internal/infrastructure/mqtt"
)

// Transport is the subset of the MQTT client used by the control channel.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTControl accepts control envelopes on the request topic and answers
// on the per-request response topic.
type MQTTControl struct {
	transport  Transport
	controller *Controller
	authn      *auth.Authenticator
	logger     *logging.Logger
	qos        byte
}

// NewMQTTControl creates a control channel over transport.
func NewMQTTControl(transport Transport, controller *Controller, authn *auth.Authenticator, logger *logging.Logger, qos byte) *MQTTControl {
	return &MQTTControl{
		transport:  transport,
		controller: controller,
		authn:      authn,
		logger:     logger,
		qos:        qos,
	}
}

// Start subscribes to the control request topic.
func (m *MQTTControl) Start() error {
	topic := mqtt.Topics{}.ControlRequest()
	if err := m.transport.Subscribe(topic, m.qos, m.handleRequest); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	m.logger.Info("mqtt control channel started", "topic", topic)
	return nil
}

// Stop unsubscribes from the control request topic.
func (m *MQTTControl) Stop() error {
	return m.transport.Unsubscribe(mqtt.Topics{}.ControlRequest())
}

// handleRequest never returns an error for bad envelopes; they are
// answered instead. Envelopes without a usable request_id cannot be
// answered and are dropped.
func (m *MQTTControl) handleRequest(_ string, payload []byte) error {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		m.logger.Warn("dropping malformed mqtt control envelope", "error", err)
		return nil
	}
	if env.RequestID == "" {
		m.logger.Warn("dropping mqtt control envelope without request_id", "action", env.Action)
		return nil
	}
	if strings.ContainsAny(env.RequestID, "/+#") {
		m.logger.Warn("dropping mqtt control envelope with invalid request_id", "request_id", env.RequestID, "action", env.Action)
		return nil
	}

	var resp Response
	p, err := m.authn.AuthenticateToken(env.AuthToken)
	if err != nil {
		_, code := classify(err)
		resp = Response{RequestID: env.RequestID, Result: ResultError, Code: code, Detail: "authentication failed"}
	} else {
		resp, _ = m.controller.Handle(p, env) //nolint:errcheck // carried in resp
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding control response: %w", err)
	}
	return m.transport.Publish(mqtt.Topics{}.ControlResponse(env.RequestID), data, m.qos, false)
}
