package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auth"
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(c *gin.Context) string

// ByClientIP keys requests on the client address.
func ByClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// BySession keys requests on the login session of a verified access token.
// Requests without one fall back to the client address, so this must run
// after auth.RequireSession to see the session.
func BySession(c *gin.Context) string {
	if v, ok := c.Get(auth.ClaimsKey); ok {
		if claims, ok := v.(auth.Claims); ok && claims.ID != "" {
			return "session:" + claims.ID
		}
	}
	return ByClientIP(c)
}

// TokenBucket limits requests per key. Buckets refill continuously and are
// forgotten once they have been full for a while.
type TokenBucket struct {
	burst     float64
	perSecond float64
	key       KeyFunc
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewTokenBucket allows burst requests at once per key, refilled at
// perMinute. A non-positive burst means perMinute.
func NewTokenBucket(burst, perMinute int, key KeyFunc) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = perMinute
	}
	if key == nil {
		key = ByClientIP
	}
	return &TokenBucket{
		burst:     float64(burst),
		perSecond: float64(perMinute) / 60,
		key:       key,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header in whole seconds.
func (l *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.Take(l.key(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// Allow takes one token for key.
func (l *TokenBucket) Allow(key string) bool {
	ok, _ := l.Take(key)
	return ok
}

// Take draws one token for key. When the bucket is empty it reports how long
// until the next token.
func (l *TokenBucket) Take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, seen: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.seen).Seconds()*l.perSecond)
	b.seen = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
}

// sweepLocked drops buckets that have refilled completely.
func (l *TokenBucket) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	full := time.Duration(l.burst / l.perSecond * float64(time.Second))
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= full {
			delete(l.buckets, key)
		}
	}
}
