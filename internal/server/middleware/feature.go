package middleware

import "net/http"

// FeatureGate reports whether an addon feature is licensed.
type FeatureGate interface {
	FeatureEnabled(feature string) bool
}

// RequireFeature rejects requests with 403 when feature is not enabled.
func RequireFeature(gate FeatureGate, feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate == nil || !gate.FeatureEnabled(feature) {
				deny(w, http.StatusForbidden, "feature not enabled: "+feature)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
