package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"election-system/internal/database"
	"election-system/pkg/logger"
)

// ResultsCache is an optional read-through cache for aggregated results.
type ResultsCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// ResultsAggregator tallies confirmed votes into per-question results.
// Pending and rejected votes never count.
type ResultsAggregator struct {
	elections  ElectionStore
	voters     VoterStore
	ballots    BallotStore
	votes      VoteStore
	cache      ResultsCache
	sampleSize int
	log        *logger.Logger
	now        func() time.Time
}

// NewResultsAggregator creates an aggregator. cache may be nil.
func NewResultsAggregator(elections ElectionStore, voters VoterStore, ballots BallotStore, votes VoteStore, cache ResultsCache, sampleSize int, log *logger.Logger) *ResultsAggregator {
	if sampleSize <= 0 {
		sampleSize = 10
	}
	return &ResultsAggregator{
		elections:  elections,
		voters:     voters,
		ballots:    ballots,
		votes:      votes,
		cache:      cache,
		sampleSize: sampleSize,
		log:        log.WithComponent("results"),
		now:        time.Now,
	}
}

// OptionTally is the count for one option of a single or multiple choice
// question. Percentage is the option's raw-count share of the question's
// respondents, rounded to two decimals; Weighted carries the
// weight-adjusted count alongside and never feeds the percentage.
type OptionTally struct {
	Option     string  `json:"option"`
	Count      int     `json:"count"`
	Weighted   int     `json:"weighted"`
	Percentage float64 `json:"percentage"`
}

// TextSummary reports free-text answers as a count plus a bounded sample.
type TextSummary struct {
	Responses int      `json:"responses"`
	Samples   []string `json:"samples"`
}

// RankTally is the aggregate position of one option in a ranking question.
// AverageRank is 1-indexed; lower means preferred. An option nobody ranked
// reports zero for both fields.
type RankTally struct {
	Option      string      `json:"option"`
	AverageRank float64     `json:"average_rank"`
	Positions   map[int]int `json:"positions"`
	TotalVotes  int         `json:"total_votes"`
}

// QuestionResults is the tally for one ballot question. Exactly one of
// Options, Text and Ranking is populated, matching the question type.
type QuestionResults struct {
	QuestionID string                `json:"question_id"`
	Title      string                `json:"title"`
	Type       database.QuestionType `json:"type"`
	Responses  int                   `json:"responses"`
	Options    []OptionTally         `json:"options,omitempty"`
	Text       *TextSummary          `json:"text,omitempty"`
	Ranking    []RankTally           `json:"ranking,omitempty"`
}

// ElectionResults is the full aggregation snapshot for one election.
type ElectionResults struct {
	ElectionID     string            `json:"election_id"`
	Status         string            `json:"status"`
	BallotVersion  int               `json:"ballot_version"`
	TotalVotes     int               `json:"total_votes"`
	TotalWeight    int               `json:"total_weight"`
	EligibleVoters int               `json:"eligible_voters"`
	Turnout        float64           `json:"turnout"`
	Questions      []QuestionResults `json:"questions"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Results returns the tally for an election, enforcing release rules unless
// the caller is an administrator.
func (a *ResultsAggregator) Results(ctx context.Context, electionID string, admin bool) (*ElectionResults, error) {
	election, err := a.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, err
	}

	if err := a.completeIfExpired(ctx, election); err != nil {
		return nil, err
	}

	if !admin {
		if err := a.checkRelease(election); err != nil {
			return nil, err
		}
	}

	return a.aggregate(ctx, election)
}

// PublicResults is the unauthenticated view; the election must be public on
// top of the usual release rules.
func (a *ResultsAggregator) PublicResults(ctx context.Context, electionID string) (*ElectionResults, error) {
	election, err := a.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "election", ID: electionID}
		}
		return nil, err
	}

	if !election.IsPublic {
		return nil, &AuthorizationError{Message: "election results are not public"}
	}
	if err := a.completeIfExpired(ctx, election); err != nil {
		return nil, err
	}
	if err := a.checkRelease(election); err != nil {
		return nil, err
	}

	return a.aggregate(ctx, election)
}

// completeIfExpired mirrors the lazy completion done on election reads, so
// a finished election is gated by its release time rather than by a stale
// ACTIVE status that nothing else has refreshed yet.
func (a *ResultsAggregator) completeIfExpired(ctx context.Context, e *database.Election) error {
	if e.Status != database.ElectionStatusActive || a.now().Before(e.EndTime) {
		return nil
	}
	e.Status = database.ElectionStatusCompleted
	e.UpdatedAt = a.now()
	return a.elections.Update(ctx, e)
}

// checkRelease decides whether non-admin callers may see results yet.
func (a *ResultsAggregator) checkRelease(e *database.Election) error {
	switch e.Status {
	case database.ElectionStatusActive:
		if !e.RealTimeResults {
			return &AuthorizationError{Message: "results are withheld until the election ends"}
		}
		return nil
	case database.ElectionStatusCompleted:
		if e.ResultsReleaseTime != nil && a.now().Before(*e.ResultsReleaseTime) {
			return &AuthorizationError{Message: fmt.Sprintf("results are released at %s", e.ResultsReleaseTime.Format(time.RFC3339))}
		}
		return nil
	default:
		return &ConflictError{Message: fmt.Sprintf("election in status %s has no results", e.Status)}
	}
}

func (a *ResultsAggregator) cacheKey(e *database.Election) string {
	return fmt.Sprintf("results:%s", e.ID)
}

func (a *ResultsAggregator) cacheTTL(e *database.Election) time.Duration {
	// completed tallies are immutable, live ones go stale quickly
	if e.Status == database.ElectionStatusCompleted {
		return 10 * time.Minute
	}
	return 15 * time.Second
}

func (a *ResultsAggregator) aggregate(ctx context.Context, election *database.Election) (*ElectionResults, error) {
	if a.cache != nil {
		var cached ElectionResults
		if a.cache.Get(ctx, a.cacheKey(election), &cached) {
			return &cached, nil
		}
	}

	ballot, err := a.ballots.GetActive(ctx, election.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &ConflictError{Message: "election has no active ballot"}
		}
		return nil, err
	}

	votes, err := a.votes.ListConfirmedWithWeight(ctx, election.ID)
	if err != nil {
		return nil, err
	}

	eligible, err := a.voters.ListByStatus(ctx, election.ID, database.VoterStatusActive)
	if err != nil {
		return nil, err
	}
	verified, err := a.voters.ListByStatus(ctx, election.ID, database.VoterStatusVerified)
	if err != nil {
		return nil, err
	}
	eligibleCount := len(eligible) + len(verified)

	results := &ElectionResults{
		ElectionID:     election.ID,
		Status:         string(election.Status),
		BallotVersion:  ballot.Version,
		TotalVotes:     len(votes),
		EligibleVoters: eligibleCount,
		GeneratedAt:    a.now(),
	}
	for _, v := range votes {
		results.TotalWeight += v.VoteWeight
	}
	if eligibleCount > 0 {
		results.Turnout = round2(float64(len(votes)) / float64(eligibleCount) * 100)
	}

	for _, q := range ballot.Questions {
		results.Questions = append(results.Questions, a.tallyQuestion(q, votes))
	}

	if a.cache != nil {
		a.cache.Set(ctx, a.cacheKey(election), results, a.cacheTTL(election))
	}

	return results, nil
}

func (a *ResultsAggregator) tallyQuestion(q database.Question, votes []database.VoteWithWeight) QuestionResults {
	qr := QuestionResults{QuestionID: q.ID, Title: q.Title, Type: q.Type}

	switch q.Type {
	case database.QuestionTypeSingle, database.QuestionTypeMultiple:
		qr.Options = tallyOptions(q, votes, &qr.Responses)
	case database.QuestionTypeText:
		qr.Text = a.tallyText(q, votes, &qr.Responses)
	case database.QuestionTypeRanking:
		qr.Ranking = tallyRanking(q, votes, &qr.Responses)
	}
	return qr
}

func tallyOptions(q database.Question, votes []database.VoteWithWeight, responses *int) []OptionTally {
	counts := make(map[string]int, len(q.Options))
	weighted := make(map[string]int, len(q.Options))
	respondents := 0

	for _, v := range votes {
		choice, ok := answerFor(v, q.ID)
		if !ok || len(choice.SelectedOptions) == 0 {
			continue
		}
		*responses++
		respondents++
		for _, opt := range choice.SelectedOptions {
			counts[opt]++
			weighted[opt] += v.VoteWeight
		}
	}

	tallies := make([]OptionTally, 0, len(q.Options))
	for _, opt := range q.Options {
		t := OptionTally{Option: opt, Count: counts[opt], Weighted: weighted[opt]}
		if respondents > 0 {
			t.Percentage = round2(float64(counts[opt]) / float64(respondents) * 100)
		}
		tallies = append(tallies, t)
	}
	sort.SliceStable(tallies, func(i, j int) bool { return tallies[i].Count > tallies[j].Count })
	return tallies
}

func (a *ResultsAggregator) tallyText(q database.Question, votes []database.VoteWithWeight, responses *int) *TextSummary {
	summary := &TextSummary{Samples: []string{}}
	for _, v := range votes {
		choice, ok := answerFor(v, q.ID)
		if !ok || choice.TextAnswer == "" {
			continue
		}
		*responses++
		summary.Responses++
		if len(summary.Samples) < a.sampleSize {
			summary.Samples = append(summary.Samples, choice.TextAnswer)
		}
	}
	return summary
}

func tallyRanking(q database.Question, votes []database.VoteWithWeight, responses *int) []RankTally {
	// positions and averages count raw ballots; voter weight plays no part
	// in a ranking tally
	positions := make(map[string]map[int]int, len(q.Options))
	rankCounts := make(map[string]int, len(q.Options))
	posSums := make(map[string]int, len(q.Options))
	for _, opt := range q.Options {
		positions[opt] = make(map[int]int)
	}

	for _, v := range votes {
		choice, ok := answerFor(v, q.ID)
		if !ok || len(choice.RankingOrder) == 0 {
			continue
		}
		*responses++
		for idx, opt := range choice.RankingOrder {
			pos := idx + 1
			if _, known := positions[opt]; !known {
				continue
			}
			positions[opt][pos]++
			rankCounts[opt]++
			posSums[opt] += pos
		}
	}

	tallies := make([]RankTally, 0, len(q.Options))
	for _, opt := range q.Options {
		t := RankTally{Option: opt, Positions: positions[opt], TotalVotes: rankCounts[opt]}
		if rankCounts[opt] > 0 {
			t.AverageRank = round2(float64(posSums[opt]) / float64(rankCounts[opt]))
		}
		tallies = append(tallies, t)
	}

	// preferred options first; options nobody ranked sink to the bottom
	sort.SliceStable(tallies, func(i, j int) bool {
		if (tallies[i].TotalVotes > 0) != (tallies[j].TotalVotes > 0) {
			return tallies[i].TotalVotes > 0
		}
		return tallies[i].AverageRank < tallies[j].AverageRank
	})
	return tallies
}

func answerFor(v database.VoteWithWeight, questionID string) (database.Choice, bool) {
	for _, c := range v.Choices {
		if c.QuestionID == questionID {
			return c, true
		}
	}
	return database.Choice{}, false
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
