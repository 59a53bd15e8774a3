package auth

import (
	"context"
)

type contextKey string

const UserKey contextKey = "user"

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserKey, userID)
}

func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserKey).(uint)
	return userID, ok && userID != 0
}
