package auth

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// KeyMatches compares a presented key with the configured one in constant
// time. An empty configured key never matches.
func KeyMatches(expected, presented string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// Authenticator checks listener credentials: the shared key or a bearer
// token signed with it.
type Authenticator struct {
	key      string
	required bool
}

// NewAuthenticator returns an Authenticator. When required is false every
// request is accepted as operator.
func NewAuthenticator(key string, required bool) *Authenticator {
	return &Authenticator{key: key, required: required}
}

// Required reports whether credentials are checked.
func (a *Authenticator) Required() bool { return a.required }

// Key returns the signing key.
func (a *Authenticator) Key() string { return a.key }

// Authenticate resolves the principal for the presented credentials. Either
// may be empty. A matching key wins over the bearer token, so a stale token
// does not shadow valid key credentials.
func (a *Authenticator) Authenticate(key, bearer string) (*Principal, error) {
	if !a.required {
		return &Principal{Subject: "anonymous", Role: RoleOperator, Method: "none"}, nil
	}
	if key != "" && KeyMatches(a.key, key) {
		return &Principal{Subject: "key", Role: RoleOperator, Method: "key"}, nil
	}
	if bearer == "" {
		return nil, ErrUnauthorized
	}
	claims, err := ParseToken(bearer, a.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return &Principal{Subject: claims.Subject, Role: claims.Role, Method: "token"}, nil
}

// AuthenticateToken resolves a single credential that may be either the
// shared key or a bearer token, as carried in an envelope's auth_token.
func (a *Authenticator) AuthenticateToken(token string) (*Principal, error) {
	if !a.required || KeyMatches(a.key, token) {
		return a.Authenticate(token, "")
	}
	if token == "" {
		return nil, ErrUnauthorized
	}
	return a.Authenticate("", token)
}

// Authorize returns ErrForbidden unless p holds perm.
func Authorize(p *Principal, perm Permission) error {
	if p == nil {
		return ErrUnauthorized
	}
	if perm == "" || !HasPermission(p.Role, perm) {
		return fmt.Errorf("%w: role %q lacks %s", ErrForbidden, p.Role, perm)
	}
	return nil
}

// Whitelist is the literal allow-list of remote addresses.
type Whitelist struct {
	enabled bool
	addrs   map[netip.Addr]struct{}
}

// NewWhitelist parses entries as IP addresses. A disabled whitelist allows
// every address.
func NewWhitelist(enabled bool, entries []string) (*Whitelist, error) {
	w := &Whitelist{enabled: enabled, addrs: make(map[netip.Addr]struct{}, len(entries))}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("whitelist entry %q: %w", e, err)
		}
		w.addrs[addr.Unmap()] = struct{}{}
	}
	return w, nil
}

// Allows reports whether remote (an IP, or host:port) may connect.
func (w *Whitelist) Allows(remote string) bool {
	if w == nil || !w.enabled {
		return true
	}
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	_, ok := w.addrs[addr.Unmap()]
	return ok
}
