// internal/challenge/notifier.go
package challenge

import (
	"context"
	"log/slog"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// Notifier delivers a freshly issued code to the account holder.
type Notifier interface {
	Deliver(ctx context.Context, intent *domain.ChallengeIntent, code string) error
}

// LogNotifier records that a code was issued. It never writes the code itself.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Deliver(ctx context.Context, intent *domain.ChallengeIntent, _ string) error {
	n.logger.InfoContext(ctx, "challenge code issued",
		"challenge_id", intent.ID,
		"account_id", intent.AccountID,
		"transaction_id", intent.TransactionID,
		"expires_at", intent.ExpiresAt,
	)
	return nil
}
