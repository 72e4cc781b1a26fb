package backend

import "context"

type identityKey struct{}

// WithIdentity attaches the acting user's email to ctx
func WithIdentity(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, identityKey{}, email)
}

// IdentityFrom returns the email set by WithIdentity, or ""
func IdentityFrom(ctx context.Context) string {
	email, _ := ctx.Value(identityKey{}).(string)
	return email
}
