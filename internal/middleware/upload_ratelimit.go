package middleware

import (
	"net/http"
	"strconv"

	"github.com/AnshRaj112/planpal-backend/pkg/clientip"
)

// The relay endpoint uploads with the server's image-host account whoever
// calls it, so callers are throttled per IP. Signed-in callers get more room.
// Auth: 30/min burst 10. Anonymous: 6/min burst 3.
var (
	uploadAuthLimiter = NewIPLimiter(0.5, 10)
	uploadAnonLimiter = NewIPLimiter(0.1, 3)
)

// UploadRateLimit throttles image relay requests.
func UploadRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := uploadAnonLimiter
		if IdentityFrom(r.Context()) != nil {
			limiter = uploadAuthLimiter
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
		if !limiter.Allow(clientip.RealClientIP(r)) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeTooMany(w, "Too many uploads. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
