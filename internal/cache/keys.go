package cache

import "fmt"

func ServiceKeyHashKey() string {
	return "vince:service-key:hash"
}

// RateLimitKey buckets requests by limiter scope and caller identity.
func RateLimitKey(scope, caller string) string {
	return fmt.Sprintf("vince:ratelimit:%s:%s", scope, caller)
}
