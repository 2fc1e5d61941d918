package orders

import (
	"context"
	"net/http"

	"SliceSizzle/pkg/kit"
)

type ctxKey string

const receiptKey ctxKey = "receipt"

func ReceiptFromContext(ctx context.Context) (ReceiptClaims, bool) {
	c, ok := ctx.Value(receiptKey).(ReceiptClaims)
	return c, ok
}

// RequireReceipt admits requests carrying a valid receipt bearer token.
func RequireReceipt(signer *ReceiptSigner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := signer.Parse(tok)
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), receiptKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
