package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/storetest"
)

// These tests need a disposable database, e.g.
// HOSPITAL_TEST_DSN="host=localhost port=5432 user=postgres password=postgres dbname=hospital_test sslmode=disable"
func testDB(t *testing.T, driver string) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("HOSPITAL_TEST_DSN")
	if dsn == "" {
		t.Skip("HOSPITAL_TEST_DSN not set")
	}

	db, err := sqlx.Open(driver, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = Migrate(context.Background(), db)
	require.NoError(t, err)
	return db
}

func truncate(t *testing.T, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE outbox_events, confirmations, tokens, slots, appointments,
		patients, receptionists, doctors, admins, users, specializations RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func TestStore_LibPQ(t *testing.T) {
	db := testDB(t, "postgres")
	storetest.Run(t, func(t *testing.T) repository.Store {
		truncate(t, db)
		return NewStore(db)
	})
}

func TestStore_PGX(t *testing.T) {
	db := testDB(t, "pgx")
	storetest.Run(t, func(t *testing.T) repository.Store {
		truncate(t, db)
		return NewStore(db)
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testDB(t, "postgres")
	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_init.sql", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "UNIQUE (doctor_id, slot_date, slot_time)")
	assert.Equal(t, 2, migrations[1].Version)
}

func TestSQLState(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, isForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("plain")))
	assert.False(t, isUniqueViolation(nil))
}
