// Package mqtt provides MQTT connectivity for the taskt runtime.
//
// The runtime uses the broker in two directions:
//
//	engine events ──► taskt/run/{id}/{event}      (EventPublisher)
//	controllers   ──► taskt/control/request       (listener control channel)
//	runtime       ──► taskt/control/response/{request_id}
//
// A retained status message on taskt/system/status reports the runtime as
// online; the broker replaces it with an offline LWT if the runtime dies.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	opts.Publisher = mqtt.NewEventPublisher(client, client.QoS())
//
// Connection failures, reconnects and handler errors are reported through
// the optional Logger.
package mqtt
