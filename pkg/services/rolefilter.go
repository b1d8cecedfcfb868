package services

import "github.com/kcmh-data/sqlbot-engine/pkg/models"

// FilterForRole strips the privileged fields (sql, query_result,
// sanity_checks) from a response unless the caller is a super user. It is
// idempotent and the identity for super users, and is applied after
// formatting only; it never affects what was generated or executed.
func FilterForRole(resp *models.ChatResponse, role models.UserRole) *models.ChatResponse {
	if resp == nil || role == models.RoleSuperUser {
		return resp
	}
	filtered := *resp
	filtered.SQL = ""
	filtered.QueryResult = nil
	filtered.SanityChecks = nil
	return &filtered
}
