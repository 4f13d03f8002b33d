package repository

import (
	"github.com/damoang/angple-forum/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PollRepository handles poll, choice and vote data operations
type PollRepository struct {
	db *gorm.DB
}

// NewPollRepository creates a new PollRepository
func NewPollRepository(db *gorm.DB) *PollRepository {
	return &PollRepository{db: db}
}

// WithTx returns a new PollRepository with the given transaction
func (r *PollRepository) WithTx(tx *gorm.DB) *PollRepository {
	return &PollRepository{db: tx}
}

// Create creates a poll and its choices
func (r *PollRepository) Create(poll *domain.Poll, choices []domain.PollChoice) error {
	if err := r.db.Create(poll).Error; err != nil {
		return err
	}
	for i := range choices {
		choices[i].PollID = poll.ID
	}
	return r.db.Create(&choices).Error
}

// FindByID retrieves a poll by ID
func (r *PollRepository) FindByID(id uint64) (*domain.Poll, error) {
	var poll domain.Poll
	if err := r.db.Where("id = ?", id).First(&poll).Error; err != nil {
		return nil, err
	}
	return &poll, nil
}

// FindByIDForUpdate retrieves a poll and locks its row for the rest of the
// transaction, serializing concurrent voters
func (r *PollRepository) FindByIDForUpdate(id uint64) (*domain.Poll, error) {
	var poll domain.Poll
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&poll).Error; err != nil {
		return nil, err
	}
	return &poll, nil
}

// FindIDByTopic returns the topic's poll id, or nil when it has no poll
func (r *PollRepository) FindIDByTopic(topicID uint64) (*uint64, error) {
	var ids []uint64
	if err := r.db.Model(&domain.Poll{}).
		Where("topic_id = ?", topicID).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

// Choices retrieves a poll's choices in display order
func (r *PollRepository) Choices(pollID uint64) ([]domain.PollChoice, error) {
	var choices []domain.PollChoice
	err := r.db.Where("poll_id = ?", pollID).Order("order_num ASC, id ASC").Find(&choices).Error
	return choices, err
}

// VotesOf retrieves one voter's vote set
func (r *PollRepository) VotesOf(pollID uint64, voterKey string) ([]domain.PollVote, error) {
	var votes []domain.PollVote
	err := r.db.Where("poll_id = ? AND voter_key = ?", pollID, voterKey).Find(&votes).Error
	return votes, err
}

// InsertVotes inserts a vote set
func (r *PollRepository) InsertVotes(votes []domain.PollVote) error {
	if len(votes) == 0 {
		return nil
	}
	return r.db.Create(&votes).Error
}

// DeleteVotes removes one voter's vote set
func (r *PollRepository) DeleteVotes(pollID uint64, voterKey string) error {
	return r.db.Where("poll_id = ? AND voter_key = ?", pollID, voterKey).Delete(&domain.PollVote{}).Error
}

// AddChoiceCount applies a server-side delta to a choice's vote_count
func (r *PollRepository) AddChoiceCount(choiceID uint64, delta int64) error {
	return r.db.Model(&domain.PollChoice{}).
		Where("id = ?", choiceID).
		Update("vote_count", gorm.Expr("vote_count + ?", delta)).Error
}

// CountVoters counts the distinct voters of a poll
func (r *PollRepository) CountVoters(pollID uint64) (int64, error) {
	var n int64
	err := r.db.Model(&domain.PollVote{}).
		Where("poll_id = ?", pollID).
		Distinct("voter_key").
		Count(&n).Error
	return n, err
}

// SetVotingLocked sets the voting lock flag
func (r *PollRepository) SetVotingLocked(id uint64, locked bool) error {
	return r.db.Model(&domain.Poll{}).Where("id = ?", id).Update("voting_locked", locked).Error
}

// DeleteByTopic removes a topic's poll together with its choices and votes
func (r *PollRepository) DeleteByTopic(topicID uint64) error {
	pollID, err := r.FindIDByTopic(topicID)
	if err != nil || pollID == nil {
		return err
	}
	if err := r.db.Where("poll_id = ?", *pollID).Delete(&domain.PollVote{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("poll_id = ?", *pollID).Delete(&domain.PollChoice{}).Error; err != nil {
		return err
	}
	return r.db.Where("id = ?", *pollID).Delete(&domain.Poll{}).Error
}

// ChoiceDrift is a choice whose stored vote_count disagrees with its votes
type ChoiceDrift struct {
	ID        uint64
	VoteCount int64
	Actual    int64
}

// DriftedChoices lists choices whose vote_count differs from the vote rows
func (r *PollRepository) DriftedChoices() ([]ChoiceDrift, error) {
	var drift []ChoiceDrift
	err := r.db.Table("forum_poll_choices AS c").
		Select("c.id AS id, c.vote_count AS vote_count, COUNT(v.id) AS actual").
		Joins("LEFT JOIN forum_poll_votes v ON v.choice_id = c.id").
		Group("c.id, c.vote_count").
		Having("c.vote_count <> COUNT(v.id)").
		Scan(&drift).Error
	return drift, err
}

// SetChoiceCount overwrites a choice's vote_count when it still holds the
// expected stale value
func (r *PollRepository) SetChoiceCount(choiceID uint64, stale, actual int64) (bool, error) {
	result := r.db.Model(&domain.PollChoice{}).
		Where("id = ? AND vote_count = ?", choiceID, stale).
		Update("vote_count", actual)
	return result.RowsAffected > 0, result.Error
}
