package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	adminHandler "github.com/jwalitptl/hospital-api/internal/handler/admin"
	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/hospital-api/internal/handler/auth"
	"github.com/jwalitptl/hospital-api/internal/handler/directory"
	doctorHandler "github.com/jwalitptl/hospital-api/internal/handler/doctor"
	"github.com/jwalitptl/hospital-api/internal/handler/health"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	authService "github.com/jwalitptl/hospital-api/internal/service/auth"
	"github.com/jwalitptl/hospital-api/internal/service/booking"
	"github.com/jwalitptl/hospital-api/internal/service/slot"
	"github.com/jwalitptl/hospital-api/internal/service/staff"
	"github.com/jwalitptl/hospital-api/internal/service/token"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/security"
)

const day = "2031-05-14"

// TestResponse wraps the API response for testing
type TestResponse struct {
	Code    int
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r TestResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r TestResponse) Object(t *testing.T) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(r.Data, &m), string(r.Data))
	return m
}

func (r TestResponse) List(t *testing.T) []map[string]interface{} {
	t.Helper()
	var l []map[string]interface{}
	require.NoError(t, json.Unmarshal(r.Data, &l), string(r.Data))
	return l
}

type testServer struct {
	t      *testing.T
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "api")
	store := memory.NewStore()

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	authSvc := authService.NewService(store, auth.NewJWTService("router-test", time.Hour), hasher, log)
	staffSvc := staff.NewService(store, hasher, log)
	slotSvc := slot.NewService(store, m, log, slot.Options{})
	bookingSvc := booking.NewService(store, token.NewAllocator(), m, log)
	appointmentSvc := appointment.NewService(store, m, log)

	_, err := staffSvc.SeedAdmin(ctx, "root", "administrator", "Root")
	require.NoError(t, err)

	r := NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		Handlers{
			Health:       health.NewHandler(store, reg),
			Auth:         authHandler.NewHandler(authSvc),
			Directory:    directory.NewHandler(staffSvc, slotSvc),
			Appointments: appointmentHandler.NewHandler(bookingSvc, appointmentSvc),
			Doctor:       doctorHandler.NewHandler(slotSvc, staffSvc),
			Admin:        adminHandler.NewHandler(staffSvc),
		},
		m,
		log,
		RouterConfig{
			Mode:       gin.TestMode,
			Timeout:    5 * time.Second,
			CORSConfig: middleware.DefaultCORSConfig(nil),
		},
	)
	r.Setup()

	srv := httptest.NewServer(r.Engine())
	t.Cleanup(srv.Close)
	return &testServer{t: t, server: srv}
}

func (s *testServer) makeRequest(method, path string, body interface{}, token string) TestResponse {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+"/api/v1"+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := TestResponse{Code: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	resp := s.makeRequest(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, "")
	require.True(s.t, resp.IsSuccess(), "login %s: %s", username, resp.Message)
	return resp.Object(s.t)["access_token"].(string)
}

func staffBody(name, username string, specializationID float64) map[string]interface{} {
	return map[string]interface{}{
		"name":              name,
		"email":             username + "@hospital.example",
		"gender":            "Female",
		"contact_no":        "555-0100",
		"address":           "Main Street",
		"specialization_id": specializationID,
		"username":          username,
		"password":          "s3cure-password",
	}
}

func TestFrontDeskFlow(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login("root", "administrator")

	// Admin sets up the directory.
	resp := s.makeRequest(http.MethodPost, "/admin/specializations", map[string]string{"title": "Cardiology"}, adminToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	specID := resp.Object(t)["id"].(float64)

	resp = s.makeRequest(http.MethodPost, "/admin/doctors", staffBody("Cristina Yang", "cyang", specID), adminToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	doctorID := resp.Object(t)["id"].(float64)

	resp = s.makeRequest(http.MethodPost, "/admin/receptionists", staffBody("Pam Beesly", "pam", 0), adminToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)

	resp = s.makeRequest(http.MethodPost, "/admin/doctors", staffBody("Dup", "cyang", specID), adminToken)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = s.makeRequest(http.MethodGet, "/admin/staff", nil, adminToken)
	require.True(t, resp.IsSuccess())
	assert.Len(t, resp.List(t), 2)

	// Doctor publishes slots.
	doctorToken := s.login("cyang", "s3cure-password")
	resp = s.makeRequest(http.MethodPost, "/doctor/slots/batch", map[string]interface{}{
		"date":  day,
		"times": []string{"09:00", "09:30", "10:00"},
	}, doctorToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	assert.Len(t, resp.Object(t)["created"], 3)

	resp = s.makeRequest(http.MethodPost, "/doctor/slots", map[string]string{"date": day, "time": "09:00"}, doctorToken)
	assert.Equal(t, http.StatusConflict, resp.Code)
	resp = s.makeRequest(http.MethodPost, "/doctor/slots", map[string]string{"date": "2001-01-01", "time": "09:00"}, doctorToken)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// The public books.
	resp = s.makeRequest(http.MethodGet, "/specializations", nil, "")
	require.True(t, resp.IsSuccess())
	assert.Len(t, resp.List(t), 1)

	resp = s.makeRequest(http.MethodGet, fmt.Sprintf("/specializations/%d/doctors", int(specID)), nil, "")
	require.True(t, resp.IsSuccess())
	assert.Equal(t, "Cristina Yang", resp.List(t)[0]["name"])

	resp = s.makeRequest(http.MethodGet, fmt.Sprintf("/doctors/%d/slots?date=%s", int(doctorID), day), nil, "")
	require.True(t, resp.IsSuccess())
	assert.Equal(t, []interface{}{"09:00", "09:30", "10:00"}, resp.Object(t)["times"])

	booking := map[string]interface{}{
		"name":          "Ada Lovelace",
		"email":         "ada@example.com",
		"contact_no":    "555-0199",
		"address":       "London",
		"date_of_birth": "1990-12-10",
		"gender":        "Female",
		"doctor_id":     doctorID,
		"date":          day,
		"time":          "09:30",
		"reason":        "palpitations",
	}
	resp = s.makeRequest(http.MethodPost, "/appointments", booking, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	booked := resp.Object(t)
	ref := booked["reference"].(string)
	assert.Equal(t, "REF-0001-0001-001-0002", ref)
	assert.Equal(t, float64(1), booked["token_no"])
	appointmentID := int(booked["appointment_id"].(float64))

	resp = s.makeRequest(http.MethodPost, "/appointments", booking, "")
	assert.Equal(t, http.StatusConflict, resp.Code)

	booking["email"] = "not-an-email"
	booking["time"] = "10:00"
	resp = s.makeRequest(http.MethodPost, "/appointments", booking, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// Status lookup.
	resp = s.makeRequest(http.MethodPost, "/appointments/lookup", map[string]string{"reference": ref}, "")
	require.True(t, resp.IsSuccess(), resp.Message)
	view := resp.Object(t)
	assert.Equal(t, false, view["confirmed"])
	assert.Equal(t, "Cardiology", view["specialization"])

	for _, bad := range []string{"REF-9999-0001-001-0002", "nonsense", "REF-0001"} {
		resp = s.makeRequest(http.MethodPost, "/appointments/lookup", map[string]string{"reference": bad}, "")
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "no appointment found", resp.Message)
	}

	// Doctors only see confirmed appointments.
	resp = s.makeRequest(http.MethodGet, "/doctor/appointments", nil, doctorToken)
	require.True(t, resp.IsSuccess())
	assert.Empty(t, resp.List(t))

	// Reception confirms.
	deskToken := s.login("pam", "s3cure-password")
	resp = s.makeRequest(http.MethodGet, "/reception/appointments?date="+day, nil, deskToken)
	require.True(t, resp.IsSuccess())
	assert.Len(t, resp.List(t), 1)

	resp = s.makeRequest(http.MethodPost, fmt.Sprintf("/reception/appointments/%d/confirm", appointmentID), nil, deskToken)
	require.True(t, resp.IsSuccess(), resp.Message)
	resp = s.makeRequest(http.MethodPost, fmt.Sprintf("/reception/appointments/%d/confirm", appointmentID), nil, deskToken)
	assert.True(t, resp.IsSuccess(), "confirming twice is fine")
	resp = s.makeRequest(http.MethodPost, fmt.Sprintf("/reception/appointments/%d/confirm", appointmentID), nil, doctorToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(http.MethodPost, "/appointments/lookup", map[string]string{"reference": ref}, "")
	view = resp.Object(t)
	assert.Equal(t, true, view["confirmed"])
	assert.Equal(t, "Pam Beesly", view["receptionist_name"])

	// Doctor completes the visit.
	resp = s.makeRequest(http.MethodGet, "/doctor/appointments?status=pending", nil, doctorToken)
	require.True(t, resp.IsSuccess())
	assert.Len(t, resp.List(t), 1)

	resp = s.makeRequest(http.MethodPatch, fmt.Sprintf("/doctor/appointments/%d/status", appointmentID), map[string]bool{"completed": true}, doctorToken)
	require.True(t, resp.IsSuccess(), resp.Message)
	resp = s.makeRequest(http.MethodPatch, fmt.Sprintf("/doctor/appointments/%d/status", appointmentID), map[string]string{}, doctorToken)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.makeRequest(http.MethodGet, "/doctor/appointments?status=completed", nil, doctorToken)
	require.True(t, resp.IsSuccess())
	assert.Len(t, resp.List(t), 1)

	// Booked slots stay put; free ones can go.
	resp = s.makeRequest(http.MethodGet, "/doctor/slots", nil, doctorToken)
	require.True(t, resp.IsSuccess())
	slots := resp.List(t)
	require.Len(t, slots, 3)
	for _, sl := range slots {
		id := int(sl["id"].(float64))
		resp = s.makeRequest(http.MethodDelete, fmt.Sprintf("/doctor/slots/%d", id), nil, doctorToken)
		if sl["time"] == "09:30" {
			assert.Equal(t, http.StatusConflict, resp.Code)
		} else {
			assert.Equal(t, http.StatusNoContent, resp.Code)
		}
	}

	// A doctor with appointments cannot be removed.
	resp = s.makeRequest(http.MethodDelete, fmt.Sprintf("/admin/doctors/%d", int(doctorID)), nil, adminToken)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = s.makeRequest(http.MethodGet, "/auth/me", nil, deskToken)
	require.True(t, resp.IsSuccess())
	assert.Equal(t, "receptionist", resp.Object(t)["actor"].(map[string]interface{})["role"])
}

func TestAuthGuards(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.makeRequest(http.MethodGet, "/auth/me", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.makeRequest(http.MethodGet, "/admin/staff", nil, "garbage").Code)

	resp := s.makeRequest(http.MethodPost, "/auth/login", map[string]string{"username": "root", "password": "wrong-one"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	adminToken := s.login("root", "administrator")
	assert.Equal(t, http.StatusForbidden, s.makeRequest(http.MethodGet, "/doctor/slots", nil, adminToken).Code)
	assert.Equal(t, http.StatusOK, s.makeRequest(http.MethodGet, "/reception/appointments", nil, adminToken).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.makeRequest(http.MethodGet, "/health/live", nil, "").Code)
	assert.Equal(t, http.StatusOK, s.makeRequest(http.MethodGet, "/health/ready", nil, "").Code)
	s.makeRequest(http.MethodGet, "/specializations", nil, "")

	res, err := s.server.Client().Get(s.server.URL + "/api/v1/health/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hospital_api_http_requests_total{method="GET",route="/api/v1/specializations",status="200"} 1`)
}
