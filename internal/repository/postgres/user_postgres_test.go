package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"userapi/internal/model"
	"userapi/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "email", "name", "avatar_path", "created_at"}

func TestUserPostgres_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		n, err := repo.Count(ctx, repository.EntityUser)

		assert.NoError(t, err)
		assert.Equal(t, int64(42), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure is a data access error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
			WillReturnError(errors.New("connection refused"))

		n, err := repo.Count(ctx, repository.EntityUser)

		var dae *repository.DataAccessError
		require.ErrorAs(t, err, &dae)
		assert.Equal(t, "count", dae.Op)
		assert.Equal(t, repository.EntityUser, dae.Entity)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown entity never reaches the database", func(t *testing.T) {
		_, err := repo.Count(ctx, "users; DROP TABLE users")

		assert.ErrorIs(t, err, repository.ErrUnknownEntity)
		assert.True(t, repository.IsDataAccess(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	u := &model.User{
		ID:        "test-uuid",
		Email:     "ada@example.com",
		Name:      "Ada",
		CreatedAt: now,
	}

	t.Run("success", func(t *testing.T) {
		rows := sqlmock.NewRows(userColumns).
			AddRow(u.ID, u.Email, u.Name, "", u.CreatedAt)

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(u.ID, u.Email, u.Name, u.CreatedAt).
			WillReturnRows(rows)

		result, err := repo.Create(ctx, u)

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, u.ID, result.ID)
		assert.Equal(t, u.Email, result.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(u.ID, u.Email, u.Name, u.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		result, err := repo.Create(ctx, u)

		assert.ErrorIs(t, err, repository.ErrDuplicate)
		assert.Contains(t, err.Error(), "users_email_key")
		assert.Nil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(userColumns).
			AddRow("test-id", "ada@example.com", "Ada", "avatars/a.png", time.Now())

		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
			WithArgs("test-id").
			WillReturnRows(rows)

		u, err := repo.FindByID(ctx, "test-id")

		assert.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "test-id", u.ID)
		assert.True(t, u.HasAvatar())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		u, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.False(t, repository.IsDataAccess(err))
		assert.Nil(t, u)
	})
}

func TestUserPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		rows := sqlmock.NewRows(userColumns).
			AddRow("id-1", "a@example.com", "A", "", time.Now()).
			AddRow("id-2", "b@example.com", "B", "", time.Now())

		mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(rows)

		items, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

		assert.NoError(t, err)
		assert.Len(t, items, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").
			WithArgs(10, 20).
			WillReturnError(errors.New("boom"))

		items, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 20})

		assert.True(t, repository.IsDataAccess(err))
		assert.Nil(t, items)
	})
}

func TestUserPostgres_UpdateAvatar(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	t.Run("updated", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET avatar_path").
			WithArgs("id-1", "avatars/x.png").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateAvatar(ctx, "id-1", "avatars/x.png"))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET avatar_path").
			WithArgs("missing", "avatars/x.png").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateAvatar(ctx, "missing", "avatars/x.png"), sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM users WHERE id = ?").
		WithArgs("test-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Delete(ctx, "test-id")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_DriverFailuresAreDataAccessErrors(t *testing.T) {
	refused := errors.New("connection refused")
	u := &model.User{ID: "id-1", Email: "ada@example.com", Name: "Ada", CreatedAt: time.Now().UTC()}

	tests := []struct {
		name   string
		op     string
		expect func(mock sqlmock.Sqlmock)
		call   func(repo *UserPostgres) error
	}{
		{
			name:   "create",
			op:     "create",
			expect: func(mock sqlmock.Sqlmock) { mock.ExpectQuery("INSERT INTO users").WillReturnError(refused) },
			call: func(repo *UserPostgres) error {
				_, err := repo.Create(context.Background(), u)
				return err
			},
		},
		{
			name: "find by id",
			op:   "find",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").WillReturnError(refused)
			},
			call: func(repo *UserPostgres) error {
				_, err := repo.FindByID(context.Background(), "id-1")
				return err
			},
		},
		{
			name: "list query",
			op:   "list",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").WillReturnError(refused)
			},
			call: func(repo *UserPostgres) error {
				_, err := repo.List(context.Background(), repository.PageQuery{Limit: 10})
				return err
			},
		},
		{
			name: "list rows",
			op:   "list",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM users ORDER BY").
					WillReturnRows(sqlmock.NewRows(userColumns).
						AddRow("id-1", "a@example.com", "A", "", time.Now()).
						RowError(0, refused))
			},
			call: func(repo *UserPostgres) error {
				_, err := repo.List(context.Background(), repository.PageQuery{Limit: 10})
				return err
			},
		},
		{
			name: "update avatar",
			op:   "update_avatar",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE users SET avatar_path").WillReturnError(refused)
			},
			call: func(repo *UserPostgres) error {
				return repo.UpdateAvatar(context.Background(), "id-1", "avatars/x.png")
			},
		},
		{
			name: "update avatar rows affected",
			op:   "update_avatar",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE users SET avatar_path").WillReturnResult(sqlmock.NewErrorResult(refused))
			},
			call: func(repo *UserPostgres) error {
				return repo.UpdateAvatar(context.Background(), "id-1", "avatars/x.png")
			},
		},
		{
			name: "delete",
			op:   "delete",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM users WHERE id = ?").WillReturnError(refused)
			},
			call: func(repo *UserPostgres) error {
				return repo.Delete(context.Background(), "id-1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.expect(mock)
			err = tt.call(NewUserPostgres(db))

			var dae *repository.DataAccessError
			require.ErrorAs(t, err, &dae)
			assert.Equal(t, tt.op, dae.Op)
			assert.Equal(t, repository.EntityUser, dae.Entity)
			assert.ErrorIs(t, err, refused)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
