package repo

import (
	"context"
	"fmt"
	"strings"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
	"videojobs/internal/sqlinline"
)

// AccountRepositoryPG implements domain.AccountStore. Reservations are rows in
// account_reservations keyed by (account, job).
type AccountRepositoryPG struct {
	sql         infra.TxExecutor
	defaultTier domain.Tier
}

func NewAccountRepository(sql infra.TxExecutor, defaultTier domain.Tier) *AccountRepositoryPG {
	if defaultTier == "" {
		defaultTier = domain.TierFree
	}
	return &AccountRepositoryPG{sql: sql, defaultTier: defaultTier}
}

func (r *AccountRepositoryPG) GetQuota(ctx context.Context, accountID string) (*domain.Quota, error) {
	if err := r.ensure(ctx, r.sql, accountID); err != nil {
		return nil, err
	}
	return r.snapshot(ctx, r.sql, sqlinline.QSelectAccount, accountID)
}

// Reserve locks the account row, re-checks the limits against committed and
// pending usage, and records the reservation.
func (r *AccountRepositoryPG) Reserve(ctx context.Context, accountID, jobID string, bytes int64, limits domain.Limits) error {
	return r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		if err := r.ensure(ctx, tx, accountID); err != nil {
			return err
		}
		q, err := r.snapshot(ctx, tx, sqlinline.QLockAccount, accountID)
		if err != nil {
			return err
		}
		used := q.VideosThisMonth + q.PendingVideos
		if limits.MaxVideosPerMonth != domain.Unlimited && used >= limits.MaxVideosPerMonth {
			return fmt.Errorf("%w: %d of %d videos used this month", domain.ErrQuotaExceeded, used, limits.MaxVideosPerMonth)
		}
		projected := q.StorageUsedBytes + q.PendingBytes + bytes
		if limits.MaxStorageBytes != domain.Unlimited && projected > limits.MaxStorageBytes {
			return fmt.Errorf("%w: projected storage %d bytes exceeds limit %d", domain.ErrStorageExceeded, projected, limits.MaxStorageBytes)
		}
		_, err = tx.Exec(ctx, sqlinline.QInsertReservation, accountID, jobID, bytes)
		return err
	})
}

func (r *AccountRepositoryPG) IncrementUsage(ctx context.Context, accountID, jobID string, bytesAdded int64) error {
	return r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		if err := r.ensure(ctx, tx, accountID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, sqlinline.QCommitUsage, accountID, jobID, bytesAdded)
		return err
	})
}

func (r *AccountRepositoryPG) Release(ctx context.Context, accountID, jobID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QReleaseReservation, accountID, jobID)
	return err
}

// SetTier upserts an account with the given tier.
func (r *AccountRepositoryPG) SetTier(ctx context.Context, accountID string, tier domain.Tier) error {
	if strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("account id is required")
	}
	_, err := r.sql.Exec(ctx, sqlinline.QSetAccountTier, accountID, string(tier))
	return err
}

// ResetMonth clears the monthly video counter of one account, or of all
// accounts when accountID is empty. It returns the number of accounts touched.
func (r *AccountRepositoryPG) ResetMonth(ctx context.Context, accountID string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QResetMonthlyUsage, strings.TrimSpace(accountID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AccountRepositoryPG) ensure(ctx context.Context, sql infra.SQLExecutor, accountID string) error {
	if _, err := sql.Exec(ctx, sqlinline.QEnsureAccount, accountID, string(r.defaultTier)); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	if _, err := sql.Exec(ctx, sqlinline.QRollAccountPeriod, accountID); err != nil {
		return fmt.Errorf("roll account period: %w", err)
	}
	return nil
}

func (r *AccountRepositoryPG) snapshot(ctx context.Context, sql infra.SQLExecutor, query, accountID string) (*domain.Quota, error) {
	q := &domain.Quota{AccountID: accountID}
	var tier string
	if err := sql.QueryRow(ctx, query, accountID).Scan(&tier, &q.VideosThisMonth, &q.StorageUsedBytes); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	q.Tier = domain.Tier(tier)
	if err := sql.QueryRow(ctx, sqlinline.QSelectPendingReservations, accountID).Scan(&q.PendingVideos, &q.PendingBytes); err != nil {
		return nil, err
	}
	return q, nil
}

var _ domain.AccountStore = (*AccountRepositoryPG)(nil)
