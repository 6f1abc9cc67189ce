package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/handler"

	"github.com/DATA-DOG/go-sqlmock"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupServer(t *testing.T, pingErr error) (*Server, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(pingErr)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := &Server{DB: gormDB, Redis: rdb, Config: &config.Config{ServerPort: "0"}}
	s.Engine = s.routes(handler.NewTaskHandler(nil), auth.NewManager("secret", time.Hour))
	return s, mr
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	return resp
}

func TestHealth_OK(t *testing.T) {
	s, _ := setupServer(t, nil)

	resp := serve(s, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"database":"ok","cache":"ok"}`, resp.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	s, _ := setupServer(t, errors.New("connection refused"))

	resp := serve(s, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "connection refused")
}

func TestHealth_CacheDownIsNotFatal(t *testing.T) {
	s, mr := setupServer(t, nil)
	mr.Close()

	resp := serve(s, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), `"cache":"ok"`)
}

func TestTaskRoutesRequireToken(t *testing.T) {
	s, _ := setupServer(t, nil)
	board := "/boards/" + uuid.NewString()
	task := "/tasks/" + uuid.NewString()

	routes := []struct{ method, path string }{
		{http.MethodPost, board + "/tasks"},
		{http.MethodGet, board + "/tasks"},
		{http.MethodPut, board + "/tasks/reorder"},
		{http.MethodGet, task},
		{http.MethodPatch, task},
		{http.MethodPost, task + "/move"},
		{http.MethodDelete, task},
	}
	for _, r := range routes {
		resp := serve(s, r.method, r.path)
		assert.Equalf(t, http.StatusUnauthorized, resp.Code, "%s %s", r.method, r.path)
	}
}
