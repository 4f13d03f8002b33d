package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the forum repositories over one connection or transaction
type Store struct {
	db *gorm.DB

	Boards   *BoardRepository
	Topics   *TopicRepository
	Messages *MessageRepository
	Polls    *PollRepository
	Markers  *ReadMarkerRepository
	Reports  *ReportRepository
}

// NewStore creates a Store over db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Boards:   NewBoardRepository(db),
		Topics:   NewTopicRepository(db),
		Messages: NewMessageRepository(db),
		Polls:    NewPollRepository(db),
		Markers:  NewReadMarkerRepository(db),
		Reports:  NewReportRepository(db),
	}
}

// DB returns the underlying database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithContext returns a Store whose queries carry ctx
func (s *Store) WithContext(ctx context.Context) *Store {
	return NewStore(s.db.WithContext(ctx))
}

// Transact runs fn with a Store bound to one transaction
func (s *Store) Transact(ctx context.Context, fn func(tx *Store) error) error {
	return Transact(ctx, s.db, func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
