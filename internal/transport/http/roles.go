package httptransport

import (
	"net/http"

	dErrors "consular/pkg/domain-errors"
	"consular/pkg/requestcontext"
)

// Actor roles carried in the JWT. The identity layer assigns them; handlers
// only gate on them.
const (
	RoleApplicant = "applicant"
	RoleAgent     = "agent"
	RoleAdmin     = "admin"
)

// requireRole checks the authenticated actor's role against the allowed set.
func requireRole(r *http.Request, allowed ...string) error {
	role := requestcontext.ActorRole(r.Context())
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "insufficient role for this operation")
}
