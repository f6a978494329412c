package ratelimit

import "time"

// Tier names a predefined rate-limit policy
type Tier string

const (
	TierLogin  Tier = "login"
	TierAPI    Tier = "api"
	TierUpload Tier = "upload"
	TierStrict Tier = "strict" // sensitive mutations such as password change
)

// Policy is a request budget per fixed window
type Policy struct {
	Limit  int
	Window time.Duration
}

var tierPolicies = map[Tier]Policy{
	TierLogin:  {Limit: 5, Window: 15 * time.Minute},
	TierAPI:    {Limit: 100, Window: time.Minute},
	TierUpload: {Limit: 10, Window: time.Hour},
	TierStrict: {Limit: 10, Window: time.Minute},
}

// PolicyFor returns the policy of a predefined tier
func PolicyFor(tier Tier) (Policy, bool) {
	p, ok := tierPolicies[tier]
	return p, ok
}
