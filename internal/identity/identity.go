// Package identity verifies bearer tokens and carries the caller's identity
// through the request context. End users are authenticated by an external
// provider whose tokens are only verified here; operator tokens are issued by
// this service.
package identity

import "context"

// RoleOperator marks tokens issued by the operator login.
const RoleOperator = "operator"

// Identity is the authenticated caller. Subject is treated as an opaque unique key.
type Identity struct {
	Subject string
	Role    string
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the Authenticate middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.Subject == "" {
		return Identity{}, false
	}
	return id, true
}

// SubjectFrom returns the caller subject or "" when unauthenticated.
func SubjectFrom(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.Subject
}
