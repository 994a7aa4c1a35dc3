// internal/repository/sqlrepo/main_test.go
package sqlrepo

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/pkg/db"
)

// newTestDB opens a migrated in-memory SQLite database that lives for the test.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	database, err := db.NewSQLiteDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.Migrate(ctx, database))
	return database
}

func createAccount(t *testing.T, database *sqlx.DB, handle string, kind domain.AccountKind) *domain.Account {
	t.Helper()
	account := domain.NewAccount(handle, kind, 0)
	require.NoError(t, NewAccountRepository().CreateAccount(context.Background(), database, account))
	return account
}
