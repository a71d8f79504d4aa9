package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Rate limit scopes of the unauthenticated routes.
const (
	ScopeRegister       = "auth_register"
	ScopeLogin          = "auth_login"
	ScopeForgotPassword = "auth_forgot_password"
	ScopeResetPassword  = "auth_reset_password"
	ScopeAdminLogin     = "admin_login"
)

// RateLimitPolicy allows Limit requests per Window. A zero policy disables limiting.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// RateLimitPolicies resolves the policy of a scope. Scopes without an entry
// use Default.
type RateLimitPolicies struct {
	Default RateLimitPolicy
	Scopes  map[string]RateLimitPolicy
}

// AuthRateLimitPolicies gives every auth route perWindow requests per window,
// and forgot-password, which sends mail, forgotPerWindow when set.
func AuthRateLimitPolicies(perWindow int, window time.Duration, forgotPerWindow int) RateLimitPolicies {
	policies := RateLimitPolicies{
		Default: RateLimitPolicy{Limit: perWindow, Window: window},
		Scopes:  map[string]RateLimitPolicy{},
	}
	if perWindow > 0 && forgotPerWindow > 0 && forgotPerWindow < perWindow {
		policies.Scopes[ScopeForgotPassword] = RateLimitPolicy{Limit: forgotPerWindow, Window: window}
	}
	return policies
}

// For returns the policy of scope.
func (p RateLimitPolicies) For(scope string) RateLimitPolicy {
	if policy, ok := p.Scopes[scope]; ok {
		return policy
	}
	return p.Default
}

// Enabled reports whether any scope is limited.
func (p RateLimitPolicies) Enabled() bool {
	if p.Default.enabled() {
		return true
	}
	for _, policy := range p.Scopes {
		if policy.enabled() {
			return true
		}
	}
	return false
}

// RateDecision is the outcome of one request against its scope's policy.
// Limit is zero when the scope is not limited.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one.
func (d RateDecision) RetryAfterSeconds() int {
	seconds := int((d.RetryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func unlimited() RateDecision {
	return RateDecision{Allowed: true}
}

// RateLimiter decides whether subject may make another request in scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string) (RateDecision, error)
}

// fixedWindowScript counts a hit, starts the window on the first one and
// answers {allowed, count, ttl_ms}. Rejected hits still count so a client
// that keeps hammering stays blocked until the window ends.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
local allowed = 0
if count <= tonumber(ARGV[2]) then
  allowed = 1
end
return {allowed, count, ttl}
`)

// RedisRateLimiter shares fixed-window counters across API replicas.
type RedisRateLimiter struct {
	client   redis.UniversalClient
	prefix   string
	policies RateLimitPolicies
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string, policies RateLimitPolicies) *RedisRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "paxify:rate_limit"
	}
	return &RedisRateLimiter{client: client, prefix: prefix, policies: policies}
}

func (r *RedisRateLimiter) key(scope, subject string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
}

func (r *RedisRateLimiter) Allow(ctx context.Context, scope, subject string) (RateDecision, error) {
	if r == nil || r.client == nil {
		return unlimited(), nil
	}
	policy := r.policies.For(scope)
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if !policy.enabled() || scope == "" || subject == "" {
		return unlimited(), nil
	}

	window := policy.Window
	if window < time.Second {
		window = time.Second
	}
	raw, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(scope, subject)}, window.Milliseconds(), policy.Limit).Int64Slice()
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	if len(raw) != 3 {
		return RateDecision{}, fmt.Errorf("rate limit %s: unexpected reply of %d values", scope, len(raw))
	}

	remaining := policy.Limit - int(raw[1])
	if remaining < 0 {
		remaining = 0
	}
	decision := RateDecision{Allowed: raw[0] == 1, Limit: policy.Limit, Remaining: remaining}
	if !decision.Allowed {
		decision.RetryAfter = time.Duration(raw[2]) * time.Millisecond
	}
	return decision, nil
}

// LocalRateLimiter limits a single process when Redis is not available. Each
// scope and subject gets a token bucket of Limit refilled over Window.
type LocalRateLimiter struct {
	policies RateLimitPolicies

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewLocalRateLimiter(policies RateLimitPolicies) *LocalRateLimiter {
	return &LocalRateLimiter{policies: policies, buckets: make(map[string]*rate.Limiter)}
}

func (l *LocalRateLimiter) bucket(key string, policy RateLimitPolicy) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Every(policy.Window/time.Duration(policy.Limit)), policy.Limit)
		l.buckets[key] = bucket
	}
	return bucket
}

func (l *LocalRateLimiter) Allow(_ context.Context, scope, subject string) (RateDecision, error) {
	policy := l.policies.For(scope)
	if !policy.enabled() {
		return unlimited(), nil
	}
	bucket := l.bucket(strings.TrimSpace(scope)+":"+strings.TrimSpace(subject), policy)

	now := time.Now()
	reservation := bucket.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return RateDecision{Limit: policy.Limit, RetryAfter: delay}, nil
	}
	remaining := int(bucket.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{Allowed: true, Limit: policy.Limit, Remaining: remaining}, nil
}
