package services

import (
	"fmt"

	"masjid-khairat-system/models"
)

// claimTransitions is the fixed adjacency map of legal claim status
// changes. paid and cancelled are terminal.
var claimTransitions = map[string][]string{
	models.ClaimStatusPending: {
		models.ClaimStatusUnderReview,
		models.ClaimStatusApproved,
		models.ClaimStatusRejected,
		models.ClaimStatusCancelled,
	},
	models.ClaimStatusUnderReview: {
		models.ClaimStatusApproved,
		models.ClaimStatusRejected,
		models.ClaimStatusCancelled,
		models.ClaimStatusPending,
	},
	models.ClaimStatusApproved: {
		models.ClaimStatusPaid,
		models.ClaimStatusCancelled,
	},
	models.ClaimStatusRejected: {
		models.ClaimStatusUnderReview,
		models.ClaimStatusPending,
	},
	models.ClaimStatusPaid:      {},
	models.ClaimStatusCancelled: {},
}

// IllegalTransitionError reports a disallowed (from, to) status pair.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition claim from %q to %q", e.From, e.To)
}

// CanTransitionClaim checks the requested status change against the
// adjacency map. Pure check, no side effects.
func CanTransitionClaim(from, to string) error {
	allowed, ok := claimTransitions[from]
	if !ok {
		return &IllegalTransitionError{From: from, To: to}
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return &IllegalTransitionError{From: from, To: to}
}

// IsValidClaimStatus reports whether s is one of the known claim statuses.
func IsValidClaimStatus(s string) bool {
	_, ok := claimTransitions[s]
	return ok
}
