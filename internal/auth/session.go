package auth

import "context"

// Session identifies the caller of a request. It is passed explicitly
// through context rather than kept in any global.
type Session struct {
	UserID  string
	Email   string
	IsAdmin bool
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.UserID != ""
}

// CanAccess reports whether s may read data owned by ownerID.
func (s Session) CanAccess(ownerID string) bool {
	return s.IsAdmin || s.UserID == ownerID
}
