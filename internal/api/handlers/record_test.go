package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dom/wartracker/internal/domain"
	"github.com/dom/wartracker/internal/notescodec"
	"github.com/dom/wartracker/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHandler_Create(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "full submission",
			body: map[string]interface{}{
				"opponent":        "Mira",
				"playedAt":        "2024-05-01T18:30:00Z",
				"points":          2000,
				"selfFaction":     "Aeldari",
				"opponentFaction": "Orks",
				"selfScore":       40,
				"opponentScore":   55,
				"mediaLinks":      []string{"https://drive.google.com/a"},
				"t1Notes":         "went first",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result testutil.RecordResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.NotEqual(t, uuid.Nil, result.Record.ID)
				assert.Equal(t, domain.OutcomeLoss, result.Record.Outcome)
				assert.Equal(t, "Mira", result.Record.Opponent)
				assert.Equal(t, "40k", result.Record.GameKind)
				assert.Equal(t, testutil.Int(2000), result.Record.Points)
				assert.Equal(t, "went first", *result.Record.T1Notes)
				assert.Empty(t, result.Warning)
			},
		},
		{
			name:           "minimal submission",
			body:           map[string]interface{}{"opponent": "Jun"},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result testutil.RecordResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, domain.OutcomeUnknown, result.Record.Outcome)
				assert.Equal(t, []string{}, result.Record.Links())
			},
		},
		{
			name:           "missing opponent",
			body:           map[string]interface{}{"selfScore": 10},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp *http.Response) {
				testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "opponent is required")
			},
		},
		{
			name:           "invalid media link",
			body:           map[string]interface{}{"opponent": "Jun", "mediaLinks": []string{"https://notdrive.com/x"}},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp *http.Response) {
				testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "not a Google Drive link")
			},
		},
		{
			name:           "not an object",
			body:           []string{"opponent"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts.DB.Truncate(t)

			req := testutil.CreateJSONRequest(t, http.MethodPost, ts.APIURL("/records"), tt.body)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
			if tt.expectedStatus != http.StatusCreated {
				testutil.AssertNoRecords(t, ts.DB)
			}
		})
	}
}

func TestRecordHandler_Get(t *testing.T) {
	ts := testutil.NewTestServer(t)

	record := testutil.NewRecordBuilder().
		WithOpponent("Jun").
		WithNotes(notescodec.Embed("close game", notescodec.PhaseNotes{Turn3: "charge failed"})).
		Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name:           "stored as-is",
			path:           "/records/" + record.ID.String(),
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result domain.MatchRecord
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, record.ID, result.ID)
				assert.True(t, notescodec.HasPayload(*result.Notes))
			},
		},
		{
			name:           "decoded",
			path:           "/records/" + record.ID.String() + "?decode=true",
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result domain.MatchRecord
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, "close game", *result.Notes)
				assert.Equal(t, "charge failed", *result.T3Notes)
			},
		},
		{
			name:           "invalid id",
			path:           "/records/not-a-uuid",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid decode flag",
			path:           "/records/" + record.ID.String() + "?decode=maybe",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown id",
			path:           "/records/" + uuid.New().String(),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.APIURL(tt.path))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestRecordHandler_List(t *testing.T) {
	ts := testutil.NewTestServer(t)

	now := time.Now().UTC()
	testutil.NewRecordBuilder().WithOpponent("a").WithPlayedAt(now.Add(-48 * time.Hour)).Build(t, ts.DB.DB)
	testutil.NewRecordBuilder().WithOpponent("b").WithPlayedAt(now.Add(-1 * time.Hour)).Build(t, ts.DB.DB)
	testutil.NewRecordBuilder().WithOpponent("c").WithGameKind("killteam").WithPlayedAt(now.Add(-24 * time.Hour)).Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expected       []string
	}{
		{name: "all", query: "", expectedStatus: http.StatusOK, expected: []string{"b", "c", "a"}},
		{name: "by game kind", query: "?gameKind=40k", expectedStatus: http.StatusOK, expected: []string{"b", "a"}},
		{name: "paged", query: "?limit=1&offset=1", expectedStatus: http.StatusOK, expected: []string{"c"}},
		{name: "empty", query: "?gameKind=aos", expectedStatus: http.StatusOK, expected: []string{}},
		{name: "search", query: "?q=B", expectedStatus: http.StatusOK, expected: []string{"b"}},
		{name: "bad limit", query: "?limit=ten", expectedStatus: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.APIURL("/records" + tt.query))
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expected == nil {
				return
			}

			var records []domain.MatchRecord
			testutil.AssertJSONResponse(t, resp, &records)
			opponents := make([]string, 0, len(records))
			for _, r := range records {
				opponents = append(opponents, r.Opponent)
			}
			assert.Equal(t, tt.expected, opponents)
		})
	}
}

func TestRecordHandler_Stats(t *testing.T) {
	ts := testutil.NewTestServer(t)

	testutil.NewRecordBuilder().WithOpponent("Mira").WithFactions("Necrons", "Tyranids").WithScores(80, 60).Build(t, ts.DB.DB)
	testutil.NewRecordBuilder().WithOpponent("Mira").WithScores(40, 55).Build(t, ts.DB.DB)
	testutil.NewRecordBuilder().WithOpponent("Jun").WithScores(70, 20).Build(t, ts.DB.DB)
	testutil.NewRecordBuilder().WithOpponent("Jun").WithGameKind("killteam").WithScores(10, 10).Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expected       domain.RecordStats
	}{
		{
			name:           "all",
			expectedStatus: http.StatusOK,
			expected:       domain.RecordStats{Total: 4, Wins: 2, Losses: 1, Draws: 1, WinRate: 50},
		},
		{
			name:           "search and game kind",
			query:          "?q=mira&gameKind=40k",
			expectedStatus: http.StatusOK,
			expected:       domain.RecordStats{Total: 2, Wins: 1, Losses: 1, WinRate: 50},
		},
		{
			name:           "search by faction",
			query:          "?q=necron",
			expectedStatus: http.StatusOK,
			expected:       domain.RecordStats{Total: 1, Wins: 1, WinRate: 100},
		},
		{
			name:           "nothing matches",
			query:          "?q=aeldari",
			expectedStatus: http.StatusOK,
			expected:       domain.RecordStats{},
		},
		{
			name:           "bad limit",
			query:          "?limit=-2",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.APIURL("/records/stats" + tt.query))
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var stats domain.RecordStats
			testutil.AssertJSONResponse(t, resp, &stats)
			assert.Equal(t, tt.expected, stats)
		})
	}
}

func TestRecordHandler_UpdateScenario(t *testing.T) {
	ts := testutil.NewTestServer(t)

	createReq := testutil.CreateJSONRequest(t, http.MethodPost, ts.APIURL("/records"), map[string]interface{}{
		"opponent":      "Mira",
		"selfScore":     40,
		"opponentScore": 55,
		"missionPack":   "Pariah Nexus",
	})
	resp, err := http.DefaultClient.Do(createReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created testutil.RecordResponse
	testutil.AssertJSONResponse(t, resp, &created)

	patchReq := testutil.CreateJSONRequest(t, http.MethodPatch, ts.APIURL("/records/"+created.Record.ID.String()), map[string]interface{}{
		"notes": "rematch next week",
	})
	patchResp, err := http.DefaultClient.Do(patchReq)
	require.NoError(t, err)
	defer patchResp.Body.Close()
	require.Equal(t, http.StatusOK, patchResp.StatusCode)

	getResp, err := http.Get(ts.APIURL("/records/" + created.Record.ID.String()))
	require.NoError(t, err)
	defer getResp.Body.Close()

	var got domain.MatchRecord
	testutil.AssertJSONResponse(t, getResp, &got)
	assert.Equal(t, domain.OutcomeLoss, got.Outcome)
	assert.Equal(t, "rematch next week", *got.Notes)
	assert.Equal(t, "Mira", got.Opponent)
	assert.Equal(t, "Pariah Nexus", *got.MissionPack)
	testutil.AssertOutcome(t, &got, domain.OutcomeLoss, testutil.Int(40), testutil.Int(55))
}

func TestRecordHandler_Update(t *testing.T) {
	ts := testutil.NewTestServer(t)
	record := testutil.NewRecordBuilder().Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		id             string
		body           interface{}
		expectedStatus int
	}{
		{name: "phase notes", id: record.ID.String(), body: map[string]interface{}{"deploymentNotes": "refused flank"}, expectedStatus: http.StatusOK},
		{name: "invalid link", id: record.ID.String(), body: map[string]interface{}{"t2PhotoLink": "https://imgur.com/x"}, expectedStatus: http.StatusBadRequest},
		{name: "invalid id", id: "42", body: map[string]interface{}{}, expectedStatus: http.StatusBadRequest},
		{name: "unknown id", id: uuid.New().String(), body: map[string]interface{}{"notes": "x"}, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.CreateJSONRequest(t, http.MethodPatch, ts.APIURL("/records/"+tt.id), tt.body)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestRecordHandler_Delete(t *testing.T) {
	ts := testutil.NewTestServer(t)
	record := testutil.NewRecordBuilder().Build(t, ts.DB.DB)

	req := testutil.CreateJSONRequest(t, http.MethodDelete, ts.APIURL("/records/"+record.ID.String()), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = testutil.CreateJSONRequest(t, http.MethodDelete, ts.APIURL("/records/"+record.ID.String()), nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecordHandler_LaggingSchema(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.DB.DropColumns(t, "self_list_summary", "opponent_list_summary")

	req := testutil.CreateJSONRequest(t, http.MethodPost, ts.APIURL("/records"), map[string]interface{}{
		"opponent":        "Jun",
		"selfListSummary": "Wraithguard spam",
		"selfScore":       90,
		"opponentScore":   30,
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result testutil.RecordResponse
	testutil.AssertJSONResponse(t, resp, &result)
	assert.Contains(t, result.Warning, "self_list_summary")
	assert.Equal(t, domain.OutcomeWin, result.Record.Outcome)
	assert.Nil(t, result.Record.SelfListSummary)
}
