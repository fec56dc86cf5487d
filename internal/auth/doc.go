// Package auth provides authentication and authorisation for the control
// listener.
//
// Callers present either the shared listener key (X-Auth-Key header or the
// envelope's auth_token) or a bearer JWT issued from that key. The key is
// compared in constant time. Tokens carry one of two roles:
//
//   - viewer: status and history only
//   - operator: everything, including start, pause, resume and cancel
//
// The source-address whitelist is checked before any credential.
package auth
