package domain

import "time"

// Result visibility modes
const (
	HideResultsNever      = 0 // always visible
	HideResultsUntilVoted = 1 // visible after the viewer voted
	HideResultsUntilEnd   = 2 // visible after expiry
)

// Poll is attached 1:1 to a topic's first message
type Poll struct {
	ID           uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TopicID      uint64     `gorm:"column:topic_id;uniqueIndex" json:"topic_id"`
	Question     string     `gorm:"column:question;type:varchar(255)" json:"question"`
	MaxVotes     int        `gorm:"column:max_votes;default:1" json:"max_votes"`
	ExpireTime   *time.Time `gorm:"column:expire_time" json:"expire_time,omitempty"`
	HideResults  int        `gorm:"column:hide_results;default:0" json:"hide_results"`
	ChangeVote   bool       `gorm:"column:change_vote;default:false" json:"change_vote"`
	GuestVote    bool       `gorm:"column:guest_vote;default:false" json:"guest_vote"`
	VotingLocked bool       `gorm:"column:voting_locked;default:false" json:"voting_locked"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (Poll) TableName() string { return "forum_polls" }

// IsExpired reports whether the poll has an expiry at or before now
func (p *Poll) IsExpired(now time.Time) bool {
	return p.ExpireTime != nil && !now.Before(*p.ExpireTime)
}

// PollChoice is one answer. VoteCount is denormalized from PollVote rows.
type PollChoice struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PollID    uint64 `gorm:"column:poll_id;index" json:"poll_id"`
	Label     string `gorm:"column:label;type:varchar(255)" json:"label"`
	VoteCount int64  `gorm:"column:vote_count;default:0" json:"vote_count"`
	OrderNum  int    `gorm:"column:order_num;default:0" json:"order_num"`
}

func (PollChoice) TableName() string { return "forum_poll_choices" }

// PollVote is one chosen choice of one voter. VoterKey is "m:<id>" for members
// and "g:<token>" for guests; guest identity is weaker than member identity.
type PollVote struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	PollID    uint64    `gorm:"column:poll_id;uniqueIndex:uq_poll_voter_choice,priority:1" json:"poll_id"`
	VoterKey  string    `gorm:"column:voter_key;type:varchar(100);uniqueIndex:uq_poll_voter_choice,priority:2" json:"-"`
	ChoiceID  uint64    `gorm:"column:choice_id;uniqueIndex:uq_poll_voter_choice,priority:3" json:"choice_id"`
	MemberID  uint64    `gorm:"column:member_id;default:0" json:"member_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PollVote) TableName() string { return "forum_poll_votes" }

// CreatePollRequest is the optional poll payload of a new topic
type CreatePollRequest struct {
	Question     string   `json:"question" validate:"required"`
	Choices      []string `json:"choices" validate:"required,min=2"`
	MaxVotes     int      `json:"max_votes" validate:"min=0"`
	ExpireInDays int      `json:"expire_in_days" validate:"min=0,max=3650"`
	HideResults  int      `json:"hide_results" validate:"min=0,max=2"`
	ChangeVote   bool     `json:"change_vote"`
	GuestVote    bool     `json:"guest_vote"`
}

// VoteRequest carries the chosen choice ids
type VoteRequest struct {
	ChoiceIDs []uint64 `json:"choice_ids" binding:"required"`
}

// LockVotingRequest toggles poll voting
type LockVotingRequest struct {
	Locked bool `json:"locked"`
}

// PollChoiceView is a choice as shown to a viewer
type PollChoiceView struct {
	ID        uint64   `json:"id"`
	Label     string   `json:"label"`
	VoteCount *int64   `json:"vote_count,omitempty"`
	Percent   *float64 `json:"percent,omitempty"`
	Chosen    bool     `json:"chosen"`
}

// PollView is the poll as shown to a viewer
type PollView struct {
	ID            uint64           `json:"id"`
	TopicID       uint64           `json:"topic_id"`
	Question      string           `json:"question"`
	MaxVotes      int              `json:"max_votes"`
	ExpireTime    *time.Time       `json:"expire_time,omitempty"`
	HideResults   int              `json:"hide_results"`
	ChangeVote    bool             `json:"change_vote"`
	GuestVote     bool             `json:"guest_vote"`
	VotingLocked  bool             `json:"voting_locked"`
	Choices       []PollChoiceView `json:"choices"`
	TotalVotes    *int64           `json:"total_votes,omitempty"`
	TotalVoters   *int64           `json:"total_voters,omitempty"`
	ResultsHidden bool             `json:"results_hidden"`
	HasVoted      bool             `json:"has_voted"`
	CanVote       bool             `json:"can_vote"`
	IsExpired     bool             `json:"is_expired"`
}
