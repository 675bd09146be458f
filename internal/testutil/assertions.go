package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/dom/wartracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	// Error responses are plain text in this API
	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertOutcome verifies the stored outcome and scores of a record
func AssertOutcome(t *testing.T, record *domain.MatchRecord, expected domain.Outcome, self, opponent *int) {
	t.Helper()
	assert.Equal(t, expected, record.Outcome, "unexpected outcome")
	assert.Equal(t, self, record.SelfScore, "unexpected self score")
	assert.Equal(t, opponent, record.OpponentScore, "unexpected opponent score")
}

// AssertNoRecords verifies the match_records table is empty
func AssertNoRecords(t *testing.T, tdb *TestDB) {
	t.Helper()

	var count int64
	require.NoError(t, tdb.DB.Model(&domain.MatchRecord{}).Count(&count).Error)
	assert.Zero(t, count, "expected no persisted records")
}

// AssertRecordCount checks how many records are persisted
func AssertRecordCount(t *testing.T, tdb *TestDB, expected int64) {
	t.Helper()

	var count int64
	require.NoError(t, tdb.DB.Model(&domain.MatchRecord{}).Count(&count).Error)
	assert.Equal(t, expected, count, "unexpected number of persisted records")
}

// SnapshotRecords reads every persisted record ordered by id
func SnapshotRecords(t *testing.T, tdb *TestDB) []domain.MatchRecord {
	t.Helper()

	var records []domain.MatchRecord
	require.NoError(t, tdb.DB.Order("id").Find(&records).Error)
	return records
}
