package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey int

const customerIDKey ctxKey = iota

const (
	CustomerHeader = "X-Customer-ID"
	RoleHeader     = "X-Role"
	RoleAdmin      = "ADMIN"
)

// RequireCustomer rejects requests without a customer id and stores it on
// the request context. Authentication happens upstream at the gateway.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CustomerHeader))
		if id == "" {
			deny(w, http.StatusUnauthorized, "customer id required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), id)))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get(RoleHeader), RoleAdmin) {
			deny(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, customerIDKey, id)
}

// CustomerID returns the id set by RequireCustomer, or "".
func CustomerID(ctx context.Context) string {
	id, _ := ctx.Value(customerIDKey).(string)
	return id
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
