package middlewares

import (
	"context"

	"github.com/nexaerp/authd/internal/guard"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyIdentity
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, rid)
}

// GetRequestID devuelve el request id del contexto, o "".
func GetRequestID(ctx context.Context) string {
	rid, _ := ctx.Value(ctxKeyRequestID).(string)
	return rid
}

func setIdentity(ctx context.Context, id *guard.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// GetIdentity devuelve la identidad autenticada del request. nil si el
// request no pasó por RequireAuth.
func GetIdentity(ctx context.Context) *guard.Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(*guard.Identity)
	return id
}
