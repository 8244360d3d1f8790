package rate

import "errors"

// ErrRateLimited reports an exhausted attempt budget.
var ErrRateLimited = errors.New("rate limited")

// ErrRedisUnavailable wraps counter backend failures.
var ErrRedisUnavailable = errors.New("redis unavailable")
