package entitlement

import (
	"fmt"

	"github.com/zappanel/zappanel/internal/plan"
)

// LimitError is returned by provisioning paths when a tenant is at quota for
// a resource type. It is a typed result for the caller to render, never a
// redirect.
type LimitError struct {
	Resource plan.Resource
	Limit    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit of %d %s reached", e.Limit, resourceNoun(e.Resource, e.Limit))
}
