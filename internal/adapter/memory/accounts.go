package memory

import (
	"context"
	"fmt"
	"sync"

	"videojobs/internal/domain"
)

type account struct {
	tier         domain.Tier
	videos       int64
	storageBytes int64
	reserved     map[string]int64
	committed    map[string]bool
}

// AccountStore tracks usage counters and admission reservations in memory.
type AccountStore struct {
	mu          sync.Mutex
	defaultTier domain.Tier
	accounts    map[string]*account
}

// NewAccountStore creates accounts lazily on the given tier.
func NewAccountStore(defaultTier domain.Tier) *AccountStore {
	if defaultTier == "" {
		defaultTier = domain.TierFree
	}
	return &AccountStore{defaultTier: defaultTier, accounts: make(map[string]*account)}
}

// SetTier changes an account's subscription tier.
func (s *AccountStore) SetTier(accountID string, tier domain.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(accountID).tier = tier
}

// SetUsage overwrites the committed counters.
func (s *AccountStore) SetUsage(accountID string, videos, storageBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.get(accountID)
	a.videos = videos
	a.storageBytes = storageBytes
}

// ResetMonth clears the monthly video counter of every account.
func (s *AccountStore) ResetMonth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		a.videos = 0
	}
}

func (s *AccountStore) GetQuota(_ context.Context, accountID string) (*domain.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.get(accountID)
	pendingVideos, pendingBytes := a.pending()
	return &domain.Quota{
		AccountID:        accountID,
		Tier:             a.tier,
		VideosThisMonth:  a.videos,
		StorageUsedBytes: a.storageBytes,
		PendingVideos:    pendingVideos,
		PendingBytes:     pendingBytes,
	}, nil
}

func (s *AccountStore) Reserve(_ context.Context, accountID, jobID string, bytes int64, limits domain.Limits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.get(accountID)
	if _, ok := a.reserved[jobID]; ok || a.committed[jobID] {
		return nil
	}
	pendingVideos, pendingBytes := a.pending()
	if limits.MaxVideosPerMonth != domain.Unlimited && a.videos+pendingVideos >= limits.MaxVideosPerMonth {
		return fmt.Errorf("%w: %d of %d videos used this month", domain.ErrQuotaExceeded, a.videos+pendingVideos, limits.MaxVideosPerMonth)
	}
	if limits.MaxStorageBytes != domain.Unlimited && a.storageBytes+pendingBytes+bytes > limits.MaxStorageBytes {
		return fmt.Errorf("%w: projected storage %d bytes exceeds limit %d", domain.ErrStorageExceeded, a.storageBytes+pendingBytes+bytes, limits.MaxStorageBytes)
	}
	a.reserved[jobID] = bytes
	return nil
}

func (s *AccountStore) IncrementUsage(_ context.Context, accountID, jobID string, bytesAdded int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.get(accountID)
	if a.committed[jobID] {
		return nil
	}
	delete(a.reserved, jobID)
	a.committed[jobID] = true
	a.videos++
	a.storageBytes += bytesAdded
	return nil
}

func (s *AccountStore) Release(_ context.Context, accountID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.get(accountID).reserved, jobID)
	return nil
}

func (s *AccountStore) get(accountID string) *account {
	a, ok := s.accounts[accountID]
	if !ok {
		a = &account{
			tier:      s.defaultTier,
			reserved:  make(map[string]int64),
			committed: make(map[string]bool),
		}
		s.accounts[accountID] = a
	}
	return a
}

func (a *account) pending() (int64, int64) {
	var bytes int64
	for _, b := range a.reserved {
		bytes += b
	}
	return int64(len(a.reserved)), bytes
}
