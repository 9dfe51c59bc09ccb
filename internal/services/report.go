package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vaultbot/internal/aggregate"
	"vaultbot/internal/core"
	"vaultbot/internal/poll"
	"vaultbot/internal/sheets"
)

var (
	// ErrNoVaults is returned when an owner without active vaults starts a
	// report.
	ErrNoVaults = errors.New("no active vaults")
	// ErrRunInProgress is returned by StartRun in reject mode.
	ErrRunInProgress = errors.New("a report is already in progress")
	// ErrNoData is returned when no period has any submission yet.
	ErrNoData = errors.New("no reported periods yet")
)

// StartMode decides what /start does while a run is active.
type StartMode string

const (
	StartResume StartMode = "resume"
	StartReject StartMode = "reject"
)

// ParseStartMode accepts the POLL_START_MODE values; empty means resume.
func ParseStartMode(s string) (StartMode, error) {
	switch m := StartMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", StartResume:
		return StartResume, nil
	case StartReject:
		return m, nil
	}
	return "", fmt.Errorf("unknown poll start mode: %s", s)
}

type ReportConfig struct {
	Equivalence     string
	Mode            aggregate.Mode
	Labels          aggregate.Labels
	PeriodKeyLayout string
	StartMode       StartMode
}

// FinalizeResult tells the caller what to do after a run completed.
type FinalizeResult struct {
	Period   core.Period
	Complete bool
	// Message and Recipients are set when the period became complete.
	Message    string
	Recipients []int64
}

// ReportService owns the running polls and turns completed ones into
// stored submissions and summaries.
type ReportService struct {
	store  sheets.Store
	engine *aggregate.Engine
	runs   *poll.Registry
	cfg    ReportConfig
	now    func() time.Time
}

func NewReportService(store sheets.Store, engine *aggregate.Engine, runs *poll.Registry, cfg ReportConfig) *ReportService {
	if cfg.PeriodKeyLayout == "" {
		cfg.PeriodKeyLayout = "2006-01"
	}
	if cfg.Labels == (aggregate.Labels{}) {
		cfg.Labels = aggregate.DefaultLabels
	}
	if cfg.Mode == "" {
		cfg.Mode = aggregate.ModeAbsolute
	}
	if cfg.StartMode == "" {
		cfg.StartMode = StartResume
	}
	return &ReportService{store: store, engine: engine, runs: runs, cfg: cfg, now: time.Now}
}

// SetClock replaces the time source used for period keys.
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ReportService) Equivalence() string {
	return s.cfg.Equivalence
}

// StartRun begins a report for owner with one question per active vault.
// An active run is resumed or rejected according to the start mode.
func (s *ReportService) StartRun(ctx context.Context, owner int64, name string) (run *poll.Run, resumed bool, err error) {
	if existing, ok := s.runs.FindActive(owner); ok {
		if s.cfg.StartMode == StartReject {
			return nil, false, ErrRunInProgress
		}
		return existing, true, nil
	}

	vaults, err := s.store.ActiveVaults(ctx, owner)
	if err != nil {
		return nil, false, fmt.Errorf("load vaults: %w", err)
	}
	if len(vaults) == 0 {
		return nil, false, ErrNoVaults
	}
	// Only vault owners are kept as users; a chat without vaults leaves no trace.
	if err := s.store.EnsureUser(ctx, core.User{TelegramID: owner, Name: name}); err != nil {
		return nil, false, fmt.Errorf("register user: %w", err)
	}

	questions := make([]poll.Question, 0, len(vaults))
	for _, v := range vaults {
		questions = append(questions, poll.Question{
			ID:            v.ID,
			Text:          QuestionText(v),
			PreviousValue: v.LastAmount,
		})
	}

	run, err = poll.New(owner, s.now().Format(s.cfg.PeriodKeyLayout), questions)
	if err != nil {
		return nil, false, err
	}
	s.runs.Append(run)
	slog.InfoContext(ctx, "Poll run started",
		"chat_id", owner,
		"period", run.PeriodKey,
		"questions", run.Len())
	return run, false, nil
}

// QuestionText renders "Title CUR (previous)", or "Title CUR" for a vault
// that was never reported.
func QuestionText(v core.Vault) string {
	if v.LastAmount == nil {
		return fmt.Sprintf("%s %s", v.Title, v.Currency)
	}
	return fmt.Sprintf("%s %s (%s)", v.Title, v.Currency, aggregate.FormatAmount(*v.LastAmount))
}

// ActiveRun returns the run owner is answering, if any.
func (s *ReportService) ActiveRun(owner int64) (*poll.Run, bool) {
	return s.runs.FindActive(owner)
}

// UnsavedRun returns the completed run of owner whose answers could not be
// stored yet.
func (s *ReportService) UnsavedRun(owner int64) (*poll.Run, bool) {
	run, ok := s.runs.Find(owner)
	if !ok || run.IsActive() {
		return nil, false
	}
	return run, true
}

// Cancel drops the run of owner without storing anything.
func (s *ReportService) Cancel(owner int64) {
	s.runs.Remove(owner)
}

// EvictStale drops idle runs, including completed ones never stored.
func (s *ReportService) EvictStale(now time.Time) int {
	return s.runs.Evict(now)
}

// Finalize stores the answers of a completed run in its period and, when
// every active vault has reported, prepares the summary broadcast. The run
// leaves the registry only once every answer is stored, so a failed
// attempt can be repeated; submissions are upserts.
func (s *ReportService) Finalize(ctx context.Context, run *poll.Run) (FinalizeResult, error) {
	if run.IsActive() {
		return FinalizeResult{}, fmt.Errorf("finalize: run %s is still active", run.ID)
	}

	period, err := s.store.OpenPeriod(ctx, run.PeriodKey)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("open period %s: %w", run.PeriodKey, err)
	}
	for _, a := range run.Answers() {
		if err := s.store.RecordSubmission(ctx, period.ID, a.QuestionID, a.Value); err != nil {
			return FinalizeResult{}, fmt.Errorf("record vault %s: %w", a.QuestionID, err)
		}
	}
	s.runs.Remove(run.OwnerID)

	complete, err := s.engine.IsPeriodComplete(ctx, period.ID)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("check completion: %w", err)
	}
	res := FinalizeResult{Period: period, Complete: complete}
	slog.InfoContext(ctx, "Poll run finalized",
		"chat_id", run.OwnerID,
		"period", period.Key,
		"answers", len(run.Answers()),
		"complete", complete)
	if !complete {
		return res, nil
	}

	text, err := s.SummaryText(ctx)
	if err != nil {
		return res, err
	}
	res.Message = "Report complete 👏 " + text
	res.Recipients, err = s.store.Recipients(ctx)
	if err != nil {
		return res, fmt.Errorf("list recipients: %w", err)
	}
	return res, nil
}

// Summaries returns the latest summary and the one before it (nil when
// there is only one period).
func (s *ReportService) Summaries(ctx context.Context) (latest, previous *core.Summary, err error) {
	latest, err = s.engine.LatestSummary(ctx, s.cfg.Equivalence)
	if err != nil {
		return nil, nil, err
	}
	if latest == nil {
		return nil, nil, ErrNoData
	}
	previous, err = s.engine.PreviousSummary(ctx, s.cfg.Equivalence)
	if err != nil {
		return nil, nil, err
	}
	return latest, previous, nil
}

// SummaryText renders the latest summary compared with the previous period.
func (s *ReportService) SummaryText(ctx context.Context) (string, error) {
	latest, previous, err := s.Summaries(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Summary as of %s:\n\n%s",
		latest.Date.Format("2006-01-02"),
		aggregate.FormatDiff(*latest, previous, s.cfg.Mode, s.cfg.Labels)), nil
}

// ChartData returns the time series of every period in the equivalence
// currency.
func (s *ReportService) ChartData(ctx context.Context) (core.TimeSeries, error) {
	ts, err := s.engine.TimeSeries(ctx, s.cfg.Equivalence)
	if err != nil {
		return core.TimeSeries{}, err
	}
	if len(ts.Dates) == 0 {
		return ts, ErrNoData
	}
	return ts, nil
}
