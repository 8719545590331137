package api

import (
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/metrics"
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/repository/memory"
	"alcyxob/personal-coach/internal/service"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *memory.Store
	logs   *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	dir, err := identity.NewDirectory(store, identity.Options{Secret: "test-secret"})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	logs := &bytes.Buffer{}

	router := gin.New()
	SetupRoutes(router, &Services{
		Deps: service.Deps{
			Store:   store,
			Metrics: metrics.New(reg),
			Logger:  slog.New(slog.NewTextHandler(logs, nil)),
		},
		Directory: dir,
	}, reg)
	return &testServer{t: t, router: router, store: store, logs: logs}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if strings.HasPrefix(w.Body.String(), "{") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	if strings.HasPrefix(w.Body.String(), "[") {
		var list []interface{}
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &list))
		out["items"] = list
	}
	return w.Code, out
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", body["message"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/v1/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCoachingFlow(t *testing.T) {
	s := newTestServer(t)

	// trainer signs up and gets a referral code
	code, body := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Carla", "email": "carla@example.com", "password": "secret1", "userType": "trainer",
	})
	require.Equal(t, http.StatusCreated, code, body)
	trainerToken := body["token"].(string)
	referral := body["referralCode"].(string)
	require.Len(t, referral, 6)

	code, body = s.do(http.MethodGet, "/api/v1/referral-codes/"+strings.ToLower(referral), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Carla", body["trainerName"])

	code, body = s.do(http.MethodGet, "/api/v1/referral-codes/NOPE00", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "code not found", body["reason"])

	// student signs up with it
	code, body = s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secret1", "userType": "student", "referralCode": referral,
	})
	require.Equal(t, http.StatusCreated, code, body)
	studentToken := body["token"].(string)
	studentID := body["uid"].(string)

	code, body = s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Bo", "email": "bo@example.com", "password": "secret1", "userType": "student", "referralCode": "XXXXXX",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "relationship", body["kind"])

	code, body = s.do(http.MethodGet, "/api/v1/me", studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "student", body["userType"])

	// roster
	code, body = s.do(http.MethodGet, "/api/v1/trainer/students", trainerToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["items"], 1)

	code, _ = s.do(http.MethodGet, "/api/v1/trainer/students", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	// workout assignment
	code, body = s.do(http.MethodPost, "/api/v1/trainer/workouts", trainerToken, map[string]interface{}{
		"name":      "Leg day",
		"studentId": studentID,
		"days": map[string]interface{}{
			"monday": []map[string]interface{}{{"exerciseName": "Squat", "sets": 3, "reps": "10"}},
		},
	})
	require.Equal(t, http.StatusCreated, code, body)
	workoutID := body["id"].(string)

	code, body = s.do(http.MethodPost, "/api/v1/trainer/workouts", trainerToken, map[string]interface{}{
		"name": "Not mine", "studentId": "someone-else",
	})
	assert.Equal(t, http.StatusBadRequest, code, body)

	code, body = s.do(http.MethodGet, "/api/v1/student/workouts", studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["items"], 1)

	code, _ = s.do(http.MethodGet, "/api/v1/workouts/"+workoutID, studentToken, nil)
	assert.Equal(t, http.StatusOK, code)

	// feedback, at most once per day and week
	feedback := map[string]interface{}{
		"workoutId": workoutID, "dayOfWeek": "monday", "effortLevel": 8, "sensation": "heavy", "hasPain": false,
		"studentId": "spoofed",
	}
	code, body = s.do(http.MethodPost, "/api/v1/student/feedbacks", studentToken, feedback)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, studentID, body["studentId"])
	feedbackID := body["id"].(string)

	code, body = s.do(http.MethodPost, "/api/v1/student/feedbacks", studentToken, feedback)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["kind"])

	code, body = s.do(http.MethodGet, "/api/v1/student/workouts/"+workoutID+"/feedback-status?day=monday", studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["submitted"])

	code, _ = s.do(http.MethodGet, "/api/v1/student/workouts/"+workoutID+"/feedback-status?day=funday", studentToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(http.MethodGet, "/api/v1/trainer/feedbacks", trainerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, _ = s.do(http.MethodGet, "/api/v1/feedbacks/"+feedbackID, trainerToken, nil)
	assert.Equal(t, http.StatusOK, code)

	// deleting the workout
	code, _ = s.do(http.MethodDelete, "/api/v1/trainer/workouts/"+workoutID, studentToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(http.MethodDelete, "/api/v1/trainer/workouts/"+workoutID, trainerToken, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodGet, "/api/v1/workouts/"+workoutID, studentToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// login issues a fresh token
	code, body = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "carla@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, body = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "carla@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, referral, body["user"].(map[string]interface{})["referralCode"])
}

func TestInternalErrorsAreNotExposed(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Carla", "email": "carla@example.com", "password": "secret1", "userType": "trainer",
	})
	trainerToken := body["token"].(string)
	referral := body["referralCode"].(string)
	_, body = s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secret1", "userType": "student", "referralCode": referral,
	})
	studentID := body["uid"].(string)

	const secret = "connection refused 10.0.3.7:27017"
	s.store.InjectFault(func(op memory.Op, coll, id string) error {
		if op == memory.OpSet && coll == repository.WorkoutsCollection {
			return errors.New(secret)
		}
		return nil
	})

	code, body := s.do(http.MethodPost, "/api/v1/trainer/workouts", trainerToken, map[string]interface{}{
		"name": "Leg day", "studentId": studentID,
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal error", body["error"])
	assert.Equal(t, "internal", body["kind"])
	assert.NotContains(t, body["error"], secret)
	assert.Contains(t, s.logs.String(), secret)
}

func TestAuthReportsInvalidEmail(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Carla", "email": "not-an-email", "password": "secret1", "userType": "trainer",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid email", body["error"])
	assert.Equal(t, "identity", body["kind"])

	code, body = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "not-an-email", "password": "secret1",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid email", body["error"])

	code, body = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["kind"])
}

func TestExerciseRoutes(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Carla", "email": "carla@example.com", "password": "secret1", "userType": "trainer",
	})
	token := body["token"].(string)

	code, body := s.do(http.MethodPost, "/api/v1/trainer/exercises", token, map[string]string{
		"name": "Squat", "videoUrl": "https://youtu.be/abc",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "https://www.youtube.com/embed/abc", body["videoUrl"])
	id := body["id"].(string)

	code, body = s.do(http.MethodPatch, "/api/v1/trainer/exercises/"+id, token, map[string]string{"description": "deep"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "deep", body["description"])

	code, _ = s.do(http.MethodPost, "/api/v1/trainer/exercises/"+id+"/video-upload", token, map[string]string{"contentType": "video/mp4"})
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, body = s.do(http.MethodGet, "/api/v1/trainer/exercises", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	code, _ = s.do(http.MethodDelete, "/api/v1/trainer/exercises/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodGet, "/api/v1/exercises/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Carla", "email": "carla@example.com", "password": "secret1", "userType": "trainer",
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `coach_signups_total{user_type="trainer"} 1`)
}

func TestStatusForKind(t *testing.T) {
	tests := map[service.Kind]int{
		service.KindValidation:      http.StatusBadRequest,
		service.KindRelationship:    http.StatusBadRequest,
		service.KindUnauthenticated: http.StatusUnauthorized,
		service.KindForbidden:       http.StatusForbidden,
		service.KindNotFound:        http.StatusNotFound,
		service.KindConflict:        http.StatusConflict,
		service.KindUnavailable:     http.StatusServiceUnavailable,
		service.KindOrphanedAccount: http.StatusInternalServerError,
		service.KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusForKind(kind), kind)
	}
}
