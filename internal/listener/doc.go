// Package listener is the remote control surface of the taskt runtime.
//
// A Server exposes a run Manager over HTTP:
//
//	POST /api/v1/control             envelope {action, target, auth_token, payload}
//	POST /api/v1/auth/token          exchange the shared key for a bearer token
//	GET  /api/v1/runs                live runs
//	POST /api/v1/runs                start a run from a named or inline script
//	GET  /api/v1/runs/{id}           status (and result once finished)
//	POST /api/v1/runs/{id}/{action}  cancel, pause or resume
//	GET  /api/v1/runs/{id}/history   persisted record
//	GET  /api/v1/history             recent persisted records
//	GET  /api/v1/commands            command catalog
//	GET  /api/v1/scripts             scripts in the scripts folder
//	GET  /api/v1/ws                  run event stream
//
// The remote-address whitelist is checked before credentials. MQTTControl
// serves the same envelopes over the taskt/control topics.
//
//	srv, err := listener.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package listener
