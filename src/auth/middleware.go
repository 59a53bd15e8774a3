package auth

import (
	"net/http"
	"strconv"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// TrustedHeader reads the user id set by the upstream session layer from header
// and stores it on the request context. Requests without a valid id get 401.
func TrustedHeader(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				logger.WithFields(logger.Fields{
					"header": header,
					"value":  raw,
				}).Warn("invalid user id header")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uint(id))))
		})
	}
}
