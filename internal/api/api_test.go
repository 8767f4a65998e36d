package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/events"
	"alcyxob/fitness-coach/internal/repository/memory"
	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router *gin.Engine
	broker *events.Broker
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewStore()
	broker := events.NewBroker(0, log)
	diaries := service.NewDiaryService(store.Users, store.Diaries, store.Plans, log)
	svc := Services{
		Auth:        service.NewAuthService(store.Users, "api-test-secret", time.Hour, log),
		Exercises:   service.NewExerciseService(store.Exercises, log),
		Plans:       service.NewPlanService(store.Users, store.Plans, store.Routines, log),
		Routines:    service.NewRoutineService(store.Users, store.Plans, store.Routines, store.Exercises, log),
		Activation:  service.NewActivationService(store.Users, store.Plans, store.Routines, diaries, service.PolicyParallel, log),
		Execution:   service.NewExecutionService(store.Users, store.Plans, store.Routines, diaries, broker, log),
		Diaries:     diaries,
		Attachments: service.NewAttachmentService(store.Users, store.Diaries, nil, log),
		Broker:      broker,
	}
	return &testAPI{router: NewRouter(svc, log), broker: broker}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// signup registers a user over HTTP and returns a bearer token.
func (a *testAPI) signup(t *testing.T, email, dni, role string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": email, "email": email, "dni": dni, "password": "password123", "role": role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[LoginResponse](t, rec).Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// coached sets up a trainer managing client C-1 with an active plan holding
// two routines.
func (a *testAPI) coached(t *testing.T) (trainer, client string, routines [2]RoutineResponse) {
	t.Helper()
	trainer = a.signup(t, "coach@gym.io", "T-1", "trainer")
	client = a.signup(t, "ana@gym.io", "C-1", "client")

	rec := a.do(t, http.MethodPost, "/api/v1/trainer/clients", trainer, gin.H{"clientDni": "C-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/training-plans", trainer, gin.H{"clientDni": "C-1", "name": "Hypertrophy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for i, name := range []string{"Upper", "Lower"} {
		rec = a.do(t, http.MethodPost, "/api/v1/routines", trainer, gin.H{"clientDni": "C-1", "name": name})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		routines[i] = decode[RoutineResponse](t, rec)
	}
	return trainer, client, routines
}

func TestPing(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExecutionLifecycle(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t)
	trainer, client, routines := a.coached(t)
	upper, lower := routines[0], routines[1]

	rec := a.do(t, http.MethodPost, "/api/v1/routines/"+upper.ID+"/sessions", trainer, gin.H{
		"exerciseName": "Squat", "sets": 3, "reps": 8, "weight": 60, "restTime": "2:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[SessionMutationResponse](t, rec)
	require.Len(t, added.Routine.Sessions, 1)

	rec = a.do(t, http.MethodPatch, "/api/v1/routines/"+upper.ID+"/sessions/"+added.Session.ID, trainer, gin.H{"reps": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[SessionMutationResponse](t, rec)
	require.Len(t, patched.Routine.Sessions, 1)
	require.Equal(t, 10, patched.Session.Reps)

	rec = a.do(t, http.MethodPost, "/api/v1/routines/activate/C-1/"+upper.ID, client, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	diaryID := decode[ActivateRoutineResponse](t, rec).DiaryID

	body := gin.H{"exerciseName": "Squat", "reps": 10, "weight": 60, "idempotencyKey": "set-1"}
	rec = a.do(t, http.MethodPost, "/api/v1/training-diaries/"+diaryID+"/sessions", client, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[DiaryEntryResponse](t, rec)
	require.Equal(t, 1, first.Sets)

	rec = a.do(t, http.MethodPost, "/api/v1/training-diaries/"+diaryID+"/sessions", client, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, first.ID, decode[DiaryEntryResponse](t, rec).ID)

	rec = a.do(t, http.MethodPut, "/api/v1/routines/"+upper.ID+"/complete", client, gin.H{"observation": "felt good"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[CompleteRoutineResponse](t, rec)
	require.Equal(t, "RoutineComplete", string(done.Signal))
	require.Equal(t, diaryID, done.DiaryID)

	rec = a.do(t, http.MethodPut, "/api/v1/routines/"+lower.ID+"/complete", client, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done = decode[CompleteRoutineResponse](t, rec)
	require.Equal(t, "CycleComplete", string(done.Signal))
	require.True(t, done.Published)

	rec = a.do(t, http.MethodGet, "/api/v1/training-diaries/"+diaryID, trainer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	diary := decode[DiaryResponse](t, rec)
	require.Equal(t, "felt good", diary.Observation)
	require.Len(t, diary.Sessions, 1)

	rec = a.do(t, http.MethodGet, "/api/v1/training-diaries/client/C-1?from=2000-01-01", trainer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, decode[[]DiaryResponse](t, rec), 1)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t)
	trainer, client, routines := a.coached(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"missing token", http.MethodGet, "/api/v1/me", "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/me", "garbage", nil, http.StatusUnauthorized},
		{"role gate", http.MethodPost, "/api/v1/training-plans", client, gin.H{"clientDni": "C-1", "name": "x"}, http.StatusForbidden},
		{"bad object id", http.MethodGet, "/api/v1/routines/xyz", client, nil, http.StatusBadRequest},
		{"unknown routine", http.MethodGet, "/api/v1/routines/" + primitive.NewObjectID().Hex(), client, nil, http.StatusNotFound},
		{"bad rest time", http.MethodPost, "/api/v1/routines/" + routines[0].ID + "/sessions", trainer, gin.H{"exerciseName": "Row", "sets": 3, "reps": 8, "restTime": "1:99"}, http.StatusBadRequest},
		{"duplicate user", http.MethodPost, "/api/v1/auth/register", "", gin.H{"name": "x", "email": "ana@gym.io", "dni": "C-9", "password": "password123", "role": "client"}, http.StatusConflict},
		{"wrong password", http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ana@gym.io", "password": "nope"}, http.StatusUnauthorized},
		{"create diary", http.MethodPost, "/api/v1/training-diaries", client, gin.H{"clientDni": "C-1"}, http.StatusCreated},
		{"attachments disabled", http.MethodPost, "/api/v1/training-diaries/" + primitive.NewObjectID().Hex() + "/attachments/upload-url", client, gin.H{"contentType": "image/png", "fileName": "a.png"}, http.StatusServiceUnavailable},
		{"reversed range", http.MethodGet, "/api/v1/training-diaries/client/C-1?from=2026-10-02&to=2026-10-01", client, nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := a.do(t, tc.method, tc.path, tc.token, tc.body)
		require.Equal(t, tc.want, rec.Code, "%s: %s", tc.name, rec.Body.String())
	}

	rec := a.do(t, http.MethodPost, "/api/v1/routines/deactivate/"+routines[1].ID, trainer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, decode[RoutineResponse](t, rec).Active)

	rec = a.do(t, http.MethodPost, "/api/v1/routines/activate/C-1/"+routines[1].ID, client, nil)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	require.Contains(t, decode[map[string]string](t, rec)["error"], "deactivated")
}

func TestEventsStream(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t)
	_, client, routines := a.coached(t)

	srv := httptest.NewServer(a.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events/C-1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+client)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return a.broker.Subscribers("C-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	for _, r := range routines {
		rec := a.do(t, http.MethodPut, "/api/v1/routines/"+r.ID+"/complete", client, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	var got []string
	for len(got) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event:"); ok {
			got = append(got, strings.TrimSpace(name))
		}
	}
	require.Equal(t, []string{"RoutineComplete", "CycleComplete"}, got)
}

func TestEventsStream_Forbidden(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t)
	a.coached(t)
	stranger := a.signup(t, "bob@gym.io", "C-2", "client")

	rec := a.do(t, http.MethodGet, "/api/v1/events/C-1", stranger, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
