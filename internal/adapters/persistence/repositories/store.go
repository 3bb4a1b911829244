package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repos groups every repository bound to the same *gorm.DB handle, so a
// service can run several of them inside one transaction.
type Repos struct {
	Rounds      *RoundRepository
	Events      *RoundEventRepository
	Schedules   *ScheduleRepository
	Memberships *MembershipRepository
	Rules       *DeductionRuleRepository
	Cycles      *CycleRepository
	Collections *CollectionRepository
}

func newRepos(db *gorm.DB) *Repos {
	return &Repos{
		Rounds:      NewRoundRepository(db),
		Events:      NewRoundEventRepository(db),
		Schedules:   NewScheduleRepository(db),
		Memberships: NewMembershipRepository(db),
		Rules:       NewDeductionRuleRepository(db),
		Cycles:      NewCycleRepository(db),
		Collections: NewCollectionRepository(db),
	}
}

// Store is the unit of work over the engine tables
type Store struct {
	db    *gorm.DB
	repos *Repos
}

// NewStore creates a new store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, repos: newRepos(db)}
}

// Repos returns repositories outside of any transaction (reads)
func (s *Store) Repos() *Repos {
	return s.repos
}

// Transaction runs fn inside a database transaction. Returning an error
// rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(r *Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepos(tx))
	})
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
// SQLite serialises writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
