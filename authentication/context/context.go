package context

import "context"

const (
	// Anonymous is the subject of requests without a valid access token.
	Anonymous = "system:anonymous"

	Authenticated   = "system:authenticated"
	Unauthenticated = "system:unauthenticated"

	// Admin is the group members with the ADMIN role belong to.
	Admin = "role:admin"
)

type contextKeySubject struct{}

func GetSubject(ctx context.Context) string {
	memberID, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok {
		return Anonymous
	}

	return memberID
}

func WithSubject(ctx context.Context, memberID string) context.Context {
	return context.WithValue(ctx, contextKeySubject{}, memberID)
}

func WithServiceSubject(ctx context.Context, serviceName string) context.Context {
	return WithSubject(ctx, "system:service:"+serviceName)
}

type contextKeyTokenID struct{}

// TokenIDFromContext returns the jti of the access token the request was authenticated with.
func TokenIDFromContext(ctx context.Context) (string, bool) {
	tokenID, ok := ctx.Value(contextKeyTokenID{}).(string)
	if !ok {
		return "", false
	}

	return tokenID, true
}

func WithTokenID(ctx context.Context, tokenID string) context.Context {
	return context.WithValue(ctx, contextKeyTokenID{}, tokenID)
}
