package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// throttledBody тело ответа 429 в формате остальных ошибок REST API
const throttledBody = `{"detail":"Request was throttled."}`

// RateLimit ограничивает частоту запросов общим token bucket.
// rps - запросов в секунду (0 - 100), burst - допустимый всплеск (0 - 10).
// При превышении отвечает 429 с Retry-After в секундах.
func RateLimit(next http.Handler, rps int, burst int, l *zap.Logger) http.Handler {
	if rps <= 0 {
		rps = 100
	}
	if burst <= 0 {
		burst = 10
	}
	if l == nil {
		l = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := limiter.Reserve()
		delay := res.Delay()
		if delay == 0 {
			next.ServeHTTP(w, r)
			return
		}
		// Токен не ждем, резерв возвращаем в bucket
		res.Cancel()

		l.Warn("rate limit exceeded",
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("retry_in", delay))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", retryAfter(delay))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(throttledBody))
	})
}

func retryAfter(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
