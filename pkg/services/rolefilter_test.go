package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

func sampleResponse() *models.ChatResponse {
	return &models.ChatResponse{
		SessionID:   "s1",
		Answer:      "42 visits",
		SQL:         "SELECT COUNT(*) FROM ovst",
		Confidence:  models.ConfidenceHigh,
		QueryResult: &models.QueryResult{Columns: []string{"count"}, RowCount: 1},
		SanityChecks: []models.SanityCheckResult{
			{CheckName: "non_empty", Passed: true},
		},
	}
}

func TestFilterForRoleStripsPrivilegedFields(t *testing.T) {
	filtered := FilterForRole(sampleResponse(), models.RoleStandardUser)

	assert.Empty(t, filtered.SQL)
	assert.Nil(t, filtered.QueryResult)
	assert.Nil(t, filtered.SanityChecks)
	// everything else survives
	assert.Equal(t, "42 visits", filtered.Answer)
	assert.Equal(t, models.ConfidenceHigh, filtered.Confidence)
	assert.Equal(t, "s1", filtered.SessionID)
}

func TestFilterForRoleIsIdentityForSuperUser(t *testing.T) {
	resp := sampleResponse()
	filtered := FilterForRole(resp, models.RoleSuperUser)
	assert.Same(t, resp, filtered)
}

func TestFilterForRoleIsIdempotent(t *testing.T) {
	once := FilterForRole(sampleResponse(), models.RoleStandardUser)
	twice := FilterForRole(once, models.RoleStandardUser)
	require.Equal(t, once, twice)
}

func TestFilterForRoleNil(t *testing.T) {
	assert.Nil(t, FilterForRole(nil, models.RoleStandardUser))
}
