// internal/repository/sqlrepo/wallet_sql_test.go
package sqlrepo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

func TestWalletRepository(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	repo := NewWalletRepository()
	account := createAccount(t, database, "alice", domain.AccountKindUser)

	t.Run("MissingWallet", func(t *testing.T) {
		_, err := repo.GetWallet(ctx, database, account.ID, "PHP")
		assert.ErrorIs(t, err, util.ErrWalletNotFound)
	})

	t.Run("EnsureIsLazyAndIdempotent", func(t *testing.T) {
		w, err := repo.EnsureWallet(ctx, database, account.ID, "PHP", domain.WalletKindFiat)
		require.NoError(t, err)
		assert.True(t, w.Balance.IsZero())
		assert.Equal(t, int64(0), w.Version)

		again, err := repo.EnsureWallet(ctx, database, account.ID, "PHP", domain.WalletKindFiat)
		require.NoError(t, err)
		assert.Equal(t, w.Version, again.Version)
	})

	t.Run("ApplyDeltaBumpsVersion", func(t *testing.T) {
		w, err := repo.GetWallet(ctx, database, account.ID, "PHP")
		require.NoError(t, err)

		updated, err := repo.ApplyDelta(ctx, database, w, decimal.RequireFromString("1000.50"))
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.RequireFromString("1000.50")))
		assert.Equal(t, w.Version+1, updated.Version)

		stored, err := repo.GetWallet(ctx, database, account.ID, "PHP")
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(updated.Balance))
		assert.Equal(t, updated.Version, stored.Version)
	})

	t.Run("StaleReadIsConcurrentModification", func(t *testing.T) {
		stale, err := repo.GetWallet(ctx, database, account.ID, "PHP")
		require.NoError(t, err)
		_, err = repo.ApplyDelta(ctx, database, stale, decimal.NewFromInt(-100))
		require.NoError(t, err)

		_, err = repo.ApplyDelta(ctx, database, stale, decimal.NewFromInt(-100))
		assert.ErrorIs(t, err, util.ErrConcurrentModification)

		current, err := repo.GetWallet(ctx, database, account.ID, "PHP")
		require.NoError(t, err)
		assert.True(t, current.Balance.Equal(decimal.RequireFromString("900.50")))
	})

	t.Run("NegativeResultIsInsufficientFunds", func(t *testing.T) {
		w, err := repo.GetWallet(ctx, database, account.ID, "PHP")
		require.NoError(t, err)

		_, err = repo.ApplyDelta(ctx, database, w, decimal.NewFromInt(-1000))
		assert.ErrorIs(t, err, util.ErrInsufficientFunds)

		unchanged, err := repo.GetWallet(ctx, database, account.ID, "PHP")
		require.NoError(t, err)
		assert.True(t, unchanged.Balance.Equal(w.Balance))
		assert.Equal(t, w.Version, unchanged.Version)
	})

	t.Run("ListWallets", func(t *testing.T) {
		_, err := repo.EnsureWallet(ctx, database, account.ID, "BTC", domain.WalletKindCrypto)
		require.NoError(t, err)

		wallets, err := repo.ListWallets(ctx, database, account.ID)
		require.NoError(t, err)
		require.Len(t, wallets, 2)
		assert.Equal(t, "BTC", wallets[0].Currency)
		assert.Equal(t, domain.WalletKindCrypto, wallets[0].Kind)
		assert.Equal(t, "PHP", wallets[1].Currency)
	})
}
