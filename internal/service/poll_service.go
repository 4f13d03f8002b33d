package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/metrics"
	"github.com/damoang/angple-forum/internal/permission"
	"github.com/damoang/angple-forum/internal/repository"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var pollValidator = validator.New()

// PollService handles poll voting and result visibility
type PollService struct {
	store *repository.Store
	perm  permission.Checker
	now   func() time.Time
}

// NewPollService creates a new PollService
func NewPollService(store *repository.Store, perm permission.Checker) *PollService {
	return &PollService{
		store: store,
		perm:  perm,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (s *PollService) SetClock(now func() time.Time) {
	s.now = now
}

// buildPoll validates a poll payload and returns the rows to insert
func buildPoll(input *sanitizer, req *domain.CreatePollRequest, maxChoices int, now time.Time) (*domain.Poll, []domain.PollChoice, error) {
	if err := pollValidator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Question":
				return nil, nil, common.ErrPollQuestion
			case "Choices":
				return nil, nil, common.ErrPollChoiceCount
			}
		}
		return nil, nil, common.NewError(common.ErrValidation, "invalid poll: "+err.Error())
	}

	question := input.Plain(req.Question)
	if question == "" {
		return nil, nil, common.ErrPollQuestion
	}

	labels := make([]string, 0, len(req.Choices))
	for _, c := range req.Choices {
		if label := input.Plain(c); label != "" {
			labels = append(labels, truncateRunes(label, MaxSubjectRunes))
		}
	}
	if len(labels) < 2 || len(labels) > maxChoices {
		return nil, nil, common.ErrPollChoiceCount
	}

	maxVotes := req.MaxVotes
	if maxVotes == 0 {
		maxVotes = 1
	}
	if maxVotes < 1 || maxVotes > len(labels) {
		return nil, nil, common.ErrPollMaxVotes
	}
	poll := &domain.Poll{
		Question:    truncateRunes(question, MaxSubjectRunes),
		MaxVotes:    maxVotes,
		HideResults: req.HideResults,
		ChangeVote:  req.ChangeVote,
		GuestVote:   req.GuestVote,
		CreatedAt:   now,
	}
	if req.ExpireInDays > 0 {
		expire := now.AddDate(0, 0, req.ExpireInDays)
		poll.ExpireTime = &expire
	}

	choices := make([]domain.PollChoice, len(labels))
	for i, label := range labels {
		choices[i] = domain.PollChoice{Label: label, OrderNum: i + 1}
	}
	return poll, choices, nil
}

// voterKey identifies a voter for uniqueness. Guests are keyed by their
// session token, which is weaker than a member id.
func voterKey(actor domain.Actor) string {
	if !actor.IsGuest() {
		return "m:" + strconv.FormatUint(actor.ID, 10)
	}
	if actor.GuestKey == "" {
		return ""
	}
	return "g:" + actor.GuestKey
}

// VotePoll records a vote set. The poll row is locked for the whole
// check-and-write so one voter cannot slip two vote sets in concurrently.
func (s *PollService) VotePoll(ctx context.Context, pollID uint64, actor domain.Actor, choiceIDs []uint64) (*domain.PollView, error) {
	key := voterKey(actor)
	now := s.now()
	outcome := "new"

	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		poll, err := tx.Polls.FindByIDForUpdate(pollID)
		if err != nil {
			return notFound(err, common.ErrPollNotFound)
		}
		if poll.VotingLocked || poll.IsExpired(now) {
			return common.ErrVotingClosed
		}
		if actor.IsGuest() && (!poll.GuestVote || key == "") {
			return common.ErrGuestVote
		}

		choices, err := tx.Polls.Choices(poll.ID)
		if err != nil {
			return err
		}
		if err := validateChoiceSet(choiceIDs, choices, poll.MaxVotes); err != nil {
			return err
		}

		existing, err := tx.Polls.VotesOf(poll.ID, key)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if !poll.ChangeVote {
				return common.ErrAlreadyVoted
			}
			if err := tx.Polls.DeleteVotes(poll.ID, key); err != nil {
				return err
			}
			for _, v := range existing {
				if err := tx.Polls.AddChoiceCount(v.ChoiceID, -1); err != nil {
					return err
				}
			}
			outcome = "changed"
		}

		votes := make([]domain.PollVote, len(choiceIDs))
		for i, id := range choiceIDs {
			votes[i] = domain.PollVote{PollID: poll.ID, VoterKey: key, ChoiceID: id, MemberID: actor.ID, CreatedAt: now}
		}
		if err := tx.Polls.InsertVotes(votes); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.ErrAlreadyVoted
			}
			return err
		}
		for _, id := range choiceIDs {
			if err := tx.Polls.AddChoiceCount(id, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.VotesCast.WithLabelValues(outcome).Inc()
	return s.GetPoll(ctx, pollID, actor)
}

// RemoveVote withdraws the actor's vote set when the poll allows changing votes
func (s *PollService) RemoveVote(ctx context.Context, pollID uint64, actor domain.Actor) (*domain.PollView, error) {
	key := voterKey(actor)
	if key == "" {
		return nil, common.ErrNoVote
	}
	now := s.now()

	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		poll, err := tx.Polls.FindByIDForUpdate(pollID)
		if err != nil {
			return notFound(err, common.ErrPollNotFound)
		}
		if poll.VotingLocked || poll.IsExpired(now) {
			return common.ErrVotingClosed
		}
		if !poll.ChangeVote {
			return common.ErrVoteChangeDisabled
		}

		existing, err := tx.Polls.VotesOf(poll.ID, key)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return common.ErrNoVote
		}
		if err := tx.Polls.DeleteVotes(poll.ID, key); err != nil {
			return err
		}
		for _, v := range existing {
			if err := tx.Polls.AddChoiceCount(v.ChoiceID, -1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.VotesCast.WithLabelValues("removed").Inc()
	return s.GetPoll(ctx, pollID, actor)
}

// LockVoting opens or closes voting. Allowed for moderators and the topic author.
func (s *PollService) LockVoting(ctx context.Context, pollID uint64, actor domain.Actor, locked bool) (*domain.PollView, error) {
	if actor.IsGuest() {
		return nil, common.ErrLoginRequired
	}

	store := s.store.WithContext(ctx)
	poll, err := store.Polls.FindByID(pollID)
	if err != nil {
		return nil, notFound(err, common.ErrPollNotFound)
	}
	topic, err := store.Topics.FindByID(poll.TopicID)
	if err != nil {
		return nil, notFound(err, common.ErrTopicNotFound)
	}
	if topic.AuthorID != actor.ID && !isModerator(ctx, s.perm, actor.ID) {
		return nil, common.ErrNotAuthor
	}

	if err := store.Polls.SetVotingLocked(poll.ID, locked); err != nil {
		return nil, err
	}
	return s.GetPoll(ctx, pollID, actor)
}

// GetPoll returns the poll as the viewer may see it. Counts are shown always
// (mode 0), after voting or to moderators (mode 1), or after expiry (mode 2).
func (s *PollService) GetPoll(ctx context.Context, pollID uint64, viewer domain.Actor) (*domain.PollView, error) {
	store := s.store.WithContext(ctx)
	poll, err := store.Polls.FindByID(pollID)
	if err != nil {
		return nil, notFound(err, common.ErrPollNotFound)
	}
	choices, err := store.Polls.Choices(poll.ID)
	if err != nil {
		return nil, err
	}
	voters, err := store.Polls.CountVoters(poll.ID)
	if err != nil {
		return nil, err
	}

	chosen := make(map[uint64]bool)
	key := voterKey(viewer)
	if key != "" {
		mine, err := store.Polls.VotesOf(poll.ID, key)
		if err != nil {
			return nil, err
		}
		for _, v := range mine {
			chosen[v.ChoiceID] = true
		}
	}
	hasVoted := len(chosen) > 0
	expired := poll.IsExpired(s.now())

	visible := true
	switch poll.HideResults {
	case domain.HideResultsUntilVoted:
		visible = hasVoted || isModerator(ctx, s.perm, viewer.ID)
	case domain.HideResultsUntilEnd:
		visible = expired
	}

	identified := !viewer.IsGuest() || (poll.GuestVote && key != "")
	view := &domain.PollView{
		ID:            poll.ID,
		TopicID:       poll.TopicID,
		Question:      poll.Question,
		MaxVotes:      poll.MaxVotes,
		ExpireTime:    poll.ExpireTime,
		HideResults:   poll.HideResults,
		ChangeVote:    poll.ChangeVote,
		GuestVote:     poll.GuestVote,
		VotingLocked:  poll.VotingLocked,
		Choices:       make([]domain.PollChoiceView, len(choices)),
		TotalVoters:   &voters,
		ResultsHidden: !visible,
		HasVoted:      hasVoted,
		CanVote:       identified && !poll.VotingLocked && !expired && (!hasVoted || poll.ChangeVote),
		IsExpired:     expired,
	}

	var total int64
	for _, c := range choices {
		total += c.VoteCount
	}
	for i, c := range choices {
		cv := domain.PollChoiceView{ID: c.ID, Label: c.Label, Chosen: chosen[c.ID]}
		if visible {
			count := c.VoteCount
			pct := percent(count, total)
			cv.VoteCount = &count
			cv.Percent = &pct
		}
		view.Choices[i] = cv
	}
	if visible {
		view.TotalVotes = &total
	}
	return view, nil
}

// validateChoiceSet checks 1 <= len <= maxVotes, no repeats, all ids in the poll
func validateChoiceSet(ids []uint64, choices []domain.PollChoice, maxVotes int) error {
	if len(ids) < 1 || len(ids) > maxVotes {
		return common.ErrInvalidChoices
	}
	valid := make(map[uint64]struct{}, len(choices))
	for _, c := range choices {
		valid[c.ID] = struct{}{}
	}
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := valid[id]; !ok {
			return common.ErrInvalidChoices
		}
		if _, dup := seen[id]; dup {
			return common.ErrInvalidChoices
		}
		seen[id] = struct{}{}
	}
	return nil
}

// percent rounds count/total to one decimal place
func percent(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(total)) / 10
}
