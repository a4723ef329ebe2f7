package ratelimit

import (
	"time"
)

// Limit is a bucket of Capacity tokens refilled continuously at Capacity per Interval
type Limit struct {
	Capacity int
	Interval time.Duration
}

// Per route class limits, classes not listed get the ClassDefault limit
type Policy map[RouteClass]Limit

func DefaultPolicy() Policy {
	return Policy{
		ClassLogin:    {Capacity: 5, Interval: time.Minute},
		ClassRegister: {Capacity: 3, Interval: time.Minute},
		ClassRefresh:  {Capacity: 10, Interval: time.Minute},
		ClassLogout:   {Capacity: 10, Interval: time.Minute},
		ClassDefault:  {Capacity: 100, Interval: time.Minute},
	}
}

func (p Policy) LimitFor(class RouteClass) Limit {
	if l, ok := p[class]; ok {
		return l
	}
	if l, ok := p[ClassDefault]; ok {
		return l
	}
	return DefaultPolicy()[ClassDefault]
}
