// Package access decides what a principal may do with claims. The guard is
// a stateless predicate: denial is a return value, never an error, so
// single-record checks and list filtering share one code path.
package access

import (
	"github.com/opensource-insurance/heron/internal/domain"
)

// CanAccess reports whether the principal may perform action on a claim
// owned by ownerID. Admins may do anything; insurers may read and update
// their own claims only. Deletion is admin-only: it is destructive and
// audit-sensitive, so insurers may not delete even their own claims.
// Unknown roles deny everything.
func CanAccess(p domain.Principal, ownerID string, action domain.Action) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleInsurer:
		switch action {
		case domain.ActionRead, domain.ActionUpdate:
			return p.ID != "" && p.ID == ownerID
		default:
			return false
		}
	default:
		return false
	}
}

// Scope returns the claim restriction a listing or report query must apply.
// The restriction belongs in the query itself; filtering already-fetched
// rows would leak row counts and pagination totals to unauthorized callers.
// Unknown roles get the zero scope, which matches nothing.
func Scope(p domain.Principal) domain.ClaimScope {
	switch p.Role {
	case domain.RoleAdmin:
		return domain.ClaimScope{All: true}
	case domain.RoleInsurer:
		if p.ID == "" {
			return domain.ClaimScope{}
		}
		return domain.ClaimScope{OwnerID: p.ID}
	default:
		return domain.ClaimScope{}
	}
}
