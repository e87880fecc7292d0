package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/sbilibin2017/gw-progress-store/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type staticTokens struct{}

func (staticTokens) Generate(ctx context.Context, userID string) (string, error) {
	return "token-" + userID, nil
}

// testRouter mounts the handlers the way main does, with the caller taken from X-User-ID.
func testRouter(store *services.ProgressStore) http.Handler {
	r := chi.NewRouter()
	r.Post("/register", NewRegisterHandler(store, staticTokens{}))
	r.Get("/usernames/{username}", NewUsernameHandler(store))

	r.Route("/me", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := middlewares.WithUserID(req.Context(), req.Header.Get("X-User-ID"))
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		r.Get("/", NewAccountHandler(store))
		r.Put("/username", NewChangeUsernameHandler(store))
		r.Get("/friends", NewListFriendsHandler(store))
		r.Post("/friends", NewAddFriendHandler(store))
		r.Delete("/friends/{friendID}", NewRemoveFriendHandler(store))
		r.Get("/runs", NewListRunsHandler(store))
		r.Put("/runs", NewUpsertRunHandler(store))
		r.Post("/runs/complete", NewCompleteRunHandler(store))
		r.Delete("/runs/{start}", NewRemoveRunHandler(store))
		r.Put("/goals/{kind}", NewSetGoalHandler(store))
		r.Post("/progress", NewRecordProgressHandler(store))
		r.Get("/goals/daily", NewDailyGoalsHandler(store))
		r.Get("/goals/today", NewTodayGoalHandler(store))
		r.Get("/stats", NewStatsHandler(store))
		r.Get("/milestones", NewMilestonesHandler(store))
	})
	return r
}

func newTestStore() *services.ProgressStore {
	return services.NewInMemoryProgressStore(nil, services.ClockFunc(func() time.Time { return fixedNow }))
}

func do(t *testing.T, h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/register", "", RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "First",
		LastName:  "Last",
		BirthDate: models.Date{Year: 1990, Month: time.May, Day: 17},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "token-"+resp.Account.UserID, resp.Token)
	return resp.Account.UserID
}

func TestRegisterHandler(t *testing.T) {
	h := testRouter(newTestStore())
	register(t, h, "alice")

	tests := []struct {
		name         string
		body         any
		expectedCode int
	}{
		{
			name:         "invalid json",
			body:         "{invalid json}",
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "username taken",
			body: RegisterRequest{
				Username: "alice", Email: "a@b.c", FirstName: "A", LastName: "B",
				BirthDate: models.Date{Year: 1990, Month: time.January, Day: 1},
			},
			expectedCode: http.StatusConflict,
		},
		{
			name: "too young",
			body: RegisterRequest{
				Username: "kid", Email: "k@b.c", FirstName: "K", LastName: "B",
				BirthDate: models.Date{Year: 2020, Month: time.January, Day: 1},
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "invalid goal",
			body: RegisterRequest{
				Username: "carol", Email: "c@b.c", FirstName: "C", LastName: "B",
				BirthDate: models.Date{Year: 1990, Month: time.January, Day: 1},
				Goals:     &models.Triple{Distance: -1, Time: 10, Paths: 1},
			},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/register", "", tt.body)
			assert.Equal(t, tt.expectedCode, rr.Code)

			var resp ErrorResponse
			assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestUsernameHandlers(t *testing.T) {
	h := testRouter(newTestStore())
	aliceID := register(t, h, "alice")

	var resp UsernameResponse
	rr := do(t, h, http.MethodGet, "/usernames/alice", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	assert.Equal(t, aliceID, resp.UserID)

	rr = do(t, h, http.MethodPut, "/me/username", aliceID, ChangeUsernameRequest{Username: "alice2"})
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(t, h, http.MethodGet, "/usernames/alice", "", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
	assert.Empty(t, resp.UserID)

	bobID := register(t, h, "bob")
	rr = do(t, h, http.MethodPut, "/me/username", bobID, ChangeUsernameRequest{Username: "alice2"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPut, "/me/username", bobID, ChangeUsernameRequest{Username: "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAccountHandler(t *testing.T) {
	h := testRouter(newTestStore())
	id := register(t, h, "alice")

	rr := do(t, h, http.MethodGet, "/me", id, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var account models.UserAccount
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &account))
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, models.DefaultGoals, account.Goals)

	rr = do(t, h, http.MethodGet, "/me", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFriendHandlers(t *testing.T) {
	h := testRouter(newTestStore())
	alice := register(t, h, "alice")
	bob := register(t, h, "bob")

	rr := do(t, h, http.MethodPost, "/me/friends", alice, AddFriendRequest{Username: "bob"})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var friends FriendsResponse
	rr = do(t, h, http.MethodGet, "/me/friends", bob, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &friends))
	assert.Equal(t, []string{alice}, friends.Friends)

	rr = do(t, h, http.MethodPost, "/me/friends", alice, AddFriendRequest{FriendID: alice})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/me/friends", alice, AddFriendRequest{FriendID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/me/friends", alice, AddFriendRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodDelete, "/me/friends/"+bob, alice, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(t, h, http.MethodGet, "/me/friends", alice, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &friends))
	assert.Empty(t, friends.Friends)
}

func TestRunHandlers(t *testing.T) {
	h := testRouter(newTestStore())
	id := register(t, h, "alice")

	start := time.Date(2025, time.March, 9, 7, 0, 0, 0, time.UTC)
	run := RunRequest{
		Path:      []models.Section{{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}}},
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	}

	rr := do(t, h, http.MethodPost, "/me/runs/complete", id, run)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var completed CompleteRunResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &completed))
	assert.Equal(t, models.DateOf(start), completed.Day.Date)
	assert.Equal(t, 1, completed.Day.Progress.Paths)
	assert.InDelta(t, 30, completed.Day.Progress.Time, 1e-9)

	later := run
	later.StartTime = start.Add(2 * time.Hour)
	later.EndTime = later.StartTime.Add(10 * time.Minute)
	rr = do(t, h, http.MethodPut, "/me/runs", id, later)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var runs RunsResponse
	rr = do(t, h, http.MethodGet, "/me/runs", id, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 2)
	assert.True(t, runs.Runs[0].StartTime.Equal(start))

	rr = do(t, h, http.MethodGet, "/me/runs?latest=1", id, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 1)
	assert.True(t, runs.Runs[0].StartTime.Equal(later.StartTime))

	rr = do(t, h, http.MethodGet, "/me/runs?latest=x", id, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodDelete, "/me/runs/"+start.Format(time.RFC3339), id, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(t, h, http.MethodGet, "/me/runs", id, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs.Runs, 1)

	rr = do(t, h, http.MethodDelete, "/me/runs/yesterday", id, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	bad := run
	bad.EndTime = bad.StartTime
	rr = do(t, h, http.MethodPut, "/me/runs", id, bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGoalHandlers(t *testing.T) {
	h := testRouter(newTestStore())
	id := register(t, h, "alice")

	var day DayResponse
	rr := do(t, h, http.MethodGet, "/me/goals/today", id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &day))
	assert.Equal(t, models.DefaultGoals, day.Day.Target)
	assert.False(t, day.Reached)

	rr = do(t, h, http.MethodPost, "/me/progress", id, ProgressRequest{Delta: models.Triple{Distance: 5, Time: 30, Paths: 1}})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &day))
	assert.True(t, day.Reached)
	assert.Equal(t, models.DateOf(fixedNow), day.Day.Date)

	rr = do(t, h, http.MethodPost, "/me/progress", id, ProgressRequest{Delta: models.Triple{Distance: -1}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPut, "/me/goals/distance", id, SetGoalRequest{Value: 10})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &day))
	assert.Equal(t, 10.0, day.Day.Target.Distance)
	assert.False(t, day.Reached)

	rr = do(t, h, http.MethodPut, "/me/goals/distance", id, SetGoalRequest{Value: 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPut, "/me/goals/speed", id, SetGoalRequest{Value: 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var history DailyGoalsResponse
	rr = do(t, h, http.MethodGet, "/me/goals/daily", id, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	assert.Len(t, history.Days, 1)
}

func TestStatsHandlers(t *testing.T) {
	h := testRouter(newTestStore())
	id := register(t, h, "alice")

	rr := do(t, h, http.MethodPost, "/me/progress", id, ProgressRequest{Delta: models.Triple{Distance: 10, Time: 60, Paths: 1}})
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(t, h, http.MethodGet, "/me/stats", id, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.InDelta(t, 10.0, summary["average_speed_kmh"], 1e-9)

	rr = do(t, h, http.MethodGet, "/me/milestones", id, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var milestones MilestonesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &milestones))
	achieved := map[string]bool{}
	for _, m := range milestones.Milestones {
		achieved[m.Name] = m.Achieved
	}
	assert.True(t, achieved["distance_10km"])
	assert.False(t, achieved["distance_100km"])
}
