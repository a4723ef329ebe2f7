package ratelimit

import (
	"context"
	"net/http"
)

// Storage of token buckets
type BucketStore interface {
	// Take one token from the bucket named key, create the full bucket if it does not exist
	// Returns false if the bucket is empty
	Take(ctx context.Context, key string, limit Limit) (bool, error)
}

type Controller struct {
	policy Policy
	store  BucketStore
}

func NewController(policy Policy, store BucketStore) *Controller {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &Controller{
		policy: policy,
		store:  store,
	}
}

// Admit reports whether the request fits the quota of its client and route class
func (c *Controller) Admit(ctx context.Context, r *http.Request) (bool, error) {
	key := Classify(r)
	return c.store.Take(ctx, key.String(), c.policy.LimitFor(key.Class))
}
