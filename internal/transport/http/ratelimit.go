package http

import (
	"time"

	"golang.org/x/time/rate"
)

// messageLimiter throttles send_message per connection. A nil limiter
// allows everything.
type messageLimiter struct {
	limiter *rate.Limiter
}

func newMessageLimiter(perMinute int) *messageLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &messageLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (m *messageLimiter) allow() bool {
	if m == nil {
		return true
	}
	return m.limiter.Allow()
}
