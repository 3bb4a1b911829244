package services

import (
	"context"

	"spsc-cashround/internal/core/domain"
)

// MemberDirectory is the external member registry (read only)
type MemberDirectory interface {
	GetByMembNo(ctx context.Context, membNo string) (*domain.Member, error)
	Exists(ctx context.Context, membNo string) (bool, error)
}

// SectionService is the external ledger section service (read only)
type SectionService interface {
	GetSection(ctx context.Context, id uint) (*domain.Section, error)
}

// CollectionRecorder receives the deductions of every finalized cycle.
// batch.Reference is stable per cycle so implementations can deduplicate.
type CollectionRecorder interface {
	RecordDeductions(ctx context.Context, batch *domain.CollectionBatch) error
}

// RoundLocker serialises mutations of one cash round
type RoundLocker interface {
	WithRoundLock(ctx context.Context, roundID uint, fn func(ctx context.Context) error) error
}
