// Package auth resolves the backend session cookie ghsync sends with every request.
// Like a token chain, several providers are tried in order and the first one
// that yields a value wins.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSession is returned when no provider has a session.
var ErrNoSession = errors.New("no session")

// SessionProvider obtains the backend session cookie value.
type SessionProvider interface {
	Session() (string, error)
	Name() string
}

// SessionStore is the part of the preference store that remembers the session.
type SessionStore interface {
	Session() (string, error)
	SetSession(string) error
}

// StaticProvider returns a value fixed at startup (config file, GHSYNC_SESSION or --session).
type StaticProvider struct {
	Value string
}

// Name implements SessionProvider.
func (p *StaticProvider) Name() string { return "config" }

// Session returns the configured value.
func (p *StaticProvider) Session() (string, error) {
	if strings.TrimSpace(p.Value) == "" {
		return "", fmt.Errorf("%w: session not configured", ErrNoSession)
	}
	return strings.TrimSpace(p.Value), nil
}

// StoredProvider returns the session saved by `ghsync login`.
type StoredProvider struct {
	Store SessionStore
}

// Name implements SessionProvider.
func (p *StoredProvider) Name() string { return "stored" }

// Session reads the stored cookie value.
func (p *StoredProvider) Session() (string, error) {
	if p.Store == nil {
		return "", fmt.Errorf("%w: no preference store", ErrNoSession)
	}
	v, err := p.Store.Session()
	if err != nil {
		return "", fmt.Errorf("read stored session: %w", err)
	}
	if v == "" {
		return "", fmt.Errorf("%w: nothing stored", ErrNoSession)
	}
	return v, nil
}

// Resolve tries each provider in order and returns the first session found
// together with the name of the provider that supplied it.
func Resolve(providers ...SessionProvider) (session, source string, err error) {
	var errs []error
	for _, p := range providers {
		v, err := p.Session()
		if err == nil {
			return v, p.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", "", fmt.Errorf(
		"%w (%v).\n"+
			"Please either:\n"+
			"  1. Run 'ghsync login' to connect through the browser, or\n"+
			"  2. Set GHSYNC_SESSION to the value of the backend session cookie",
		ErrNoSession, errors.Join(errs...),
	)
}

// NormalizeCookie accepts what a user pastes from the browser: the bare value,
// "name=value", or a whole Cookie header, and returns just the value of cookie name.
// Input that names no cookie called name is returned trimmed and otherwise untouched.
func NormalizeCookie(name, raw string) string {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Cookie:"))
	for _, part := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k == name {
			return strings.TrimSpace(v)
		}
	}
	return raw
}
