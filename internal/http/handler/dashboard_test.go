package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"userapi/internal/http/middleware"
	"userapi/internal/model"
	"userapi/internal/repository"
	repoMocks "userapi/internal/repository/mocks"
	"userapi/internal/repository/postgres"
	"userapi/internal/service"
)

func newScopedApp(repo repository.UserRepository) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	app.Use(middleware.Scope())
	RegisterRoutes(app, nil, service.NewUserService(nil, repo), nil)
	return app
}

func TestDashboard_OneCountQueryPerRequest(t *testing.T) {
	repo := new(repoMocks.MockUserRepository)
	repo.On("Count", mock.Anything, repository.EntityUser).Return(int64(1234), nil).Twice()

	app := newScopedApp(repo)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var d model.Dashboard
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
		assert.Equal(t, int64(1234), d.TotalUsers)
		assert.Equal(t, "1,234 users", d.TotalLabel)
		assert.Equal(t, int64(10000), d.NextMilestone)
		assert.Equal(t, int64(8766), d.ToMilestone)
		assert.True(t, d.IsCommunity)
	}

	// One query per request, none shared across requests.
	repo.AssertNumberOfCalls(t, "Count", 2)
}

func TestDashboard_StoreFailureSurfaces(t *testing.T) {
	storeErr := &repository.DataAccessError{Op: "count", Entity: repository.EntityUser, Err: errors.New("connection refused")}
	repo := new(repoMocks.MockUserRepository)
	repo.On("Count", mock.Anything, repository.EntityUser).Return(int64(0), storeErr).Once()

	app := newScopedApp(repo)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "DATA_ACCESS_ERROR", decodeError(t, resp).Error.Code)
	repo.AssertNumberOfCalls(t, "Count", 1)
}

func TestStoreOutage_ReportsDataAccessOnEveryRoute(t *testing.T) {
	refused := errors.New("connection refused")

	tests := []struct {
		name   string
		path   string
		expect func(mock sqlmock.Sqlmock)
	}{
		{
			name:   "list",
			path:   "/users",
			expect: func(mock sqlmock.Sqlmock) { mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").WillReturnError(refused) },
		},
		{
			name:   "count",
			path:   "/users/count",
			expect: func(mock sqlmock.Sqlmock) { mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).WillReturnError(refused) },
		},
		{
			name:   "get",
			path:   "/users/" + uuid.New().String(),
			expect: func(mock sqlmock.Sqlmock) { mock.ExpectQuery("SELECT (.+) FROM users WHERE id").WillReturnError(refused) },
		},
		{
			name:   "dashboard",
			path:   "/dashboard",
			expect: func(mock sqlmock.Sqlmock) { mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).WillReturnError(refused) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.expect(mock)

			app := newScopedApp(postgres.NewUserPostgres(db))
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)

			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			assert.Equal(t, "DATA_ACCESS_ERROR", decodeError(t, resp).Error.Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
