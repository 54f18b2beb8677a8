package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"videojobs/internal/domain"
	"videojobs/internal/sqlinline"
)

var freeLimits = domain.Limits{MaxVideosPerMonth: 5, MaxStorageBytes: 1000, MaxVideoDurationSeconds: 60}

func TestAccountRepositoryGetQuota(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QSelectAccount, "pro", int64(3), int64(500))
	sql.onRow(sqlinline.QSelectPendingReservations, int64(2), int64(200))
	repo := NewAccountRepository(sql, domain.TierFree)

	q, err := repo.GetQuota(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("GetQuota: %v", err)
	}
	want := domain.Quota{AccountID: "acct-1", Tier: domain.TierPro, VideosThisMonth: 3, StorageUsedBytes: 500, PendingVideos: 2, PendingBytes: 200}
	if *q != want {
		t.Fatalf("quota = %+v", q)
	}
	ensure := sql.executed(sqlinline.QEnsureAccount)
	if len(ensure) != 1 || ensure[0].args[1] != "free" {
		t.Fatalf("ensure calls = %#v", ensure)
	}
	if len(sql.executed(sqlinline.QRollAccountPeriod)) != 1 {
		t.Fatalf("monthly period not rolled")
	}
}

func TestAccountRepositoryReserve(t *testing.T) {
	tests := []struct {
		name    string
		videos  int64
		storage int64
		pending int64
		pendB   int64
		bytes   int64
		want    error
	}{
		{name: "fits", videos: 2, storage: 100, pending: 1, pendB: 100, bytes: 100},
		{name: "pending fills quota", videos: 3, pending: 2, want: domain.ErrQuotaExceeded},
		{name: "storage", videos: 0, storage: 900, pendB: 50, bytes: 60, want: domain.ErrStorageExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := newStubSQL()
			sql.onRow(sqlinline.QLockAccount, "free", tt.videos, tt.storage)
			sql.onRow(sqlinline.QSelectPendingReservations, tt.pending, tt.pendB)
			repo := NewAccountRepository(sql, domain.TierFree)

			err := repo.Reserve(context.Background(), "acct-1", "job-1", tt.bytes, freeLimits)
			if sql.txs != 1 {
				t.Fatalf("reserve must run in a transaction")
			}
			inserted := sql.executed(sqlinline.QInsertReservation)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Reserve: %v", err)
				}
				if len(inserted) != 1 || inserted[0].args[2] != tt.bytes {
					t.Fatalf("reservation insert = %#v", inserted)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if len(inserted) != 0 {
				t.Fatalf("rejected reservation was inserted")
			}
		})
	}
}

func TestAccountRepositoryUnlimited(t *testing.T) {
	sql := newStubSQL()
	sql.onRow(sqlinline.QLockAccount, "premium", int64(1_000_000), int64(1<<40))
	sql.onRow(sqlinline.QSelectPendingReservations, int64(50), int64(1<<30))
	unlimited := domain.Limits{MaxVideosPerMonth: domain.Unlimited, MaxStorageBytes: domain.Unlimited, MaxVideoDurationSeconds: domain.Unlimited}
	if err := NewAccountRepository(sql, domain.TierFree).Reserve(context.Background(), "acct-1", "job-1", 1<<30, unlimited); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
}

func TestAccountRepositoryIncrementUsage(t *testing.T) {
	sql := newStubSQL()
	repo := NewAccountRepository(sql, domain.TierFree)
	if err := repo.IncrementUsage(context.Background(), "acct-1", "job-1", 4096); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	commits := sql.executed(sqlinline.QCommitUsage)
	if len(commits) != 1 || commits[0].args[2] != int64(4096) {
		t.Fatalf("commit calls = %#v", commits)
	}
}

func TestAccountRepositorySetTier(t *testing.T) {
	sql := newStubSQL()
	repo := NewAccountRepository(sql, domain.TierFree)

	if err := repo.SetTier(context.Background(), " ", domain.TierPro); err == nil {
		t.Fatalf("blank account id accepted")
	}
	if err := repo.SetTier(context.Background(), "acct-1", domain.TierPremium); err != nil {
		t.Fatalf("SetTier: %v", err)
	}
	calls := sql.executed(sqlinline.QSetAccountTier)
	if len(calls) != 1 || calls[0].args[0] != "acct-1" || calls[0].args[1] != "premium" {
		t.Fatalf("set tier calls = %#v", calls)
	}
}

func TestAccountRepositoryResetMonth(t *testing.T) {
	sql := newStubSQL()
	sql.execTag[sqlinline.QResetMonthlyUsage] = pgconn.NewCommandTag("UPDATE 3")
	repo := NewAccountRepository(sql, domain.TierFree)

	n, err := repo.ResetMonth(context.Background(), "")
	if err != nil {
		t.Fatalf("ResetMonth: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
	calls := sql.executed(sqlinline.QResetMonthlyUsage)
	if len(calls) != 1 || calls[0].args[0] != "" {
		t.Fatalf("reset calls = %#v", calls)
	}
}
