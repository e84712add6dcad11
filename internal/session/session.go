// Package session orchestrates one study cycle: build the prompt,
// call the vision model, parse the reply, grade the quiz, and persist
// the result to the profile's history. All per-user state lives in an
// explicit Session struct instead of ad-hoc globals.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/studyboost/booster/internal/grader"
	"github.com/studyboost/booster/internal/model"
	"github.com/studyboost/booster/internal/parser"
	"github.com/studyboost/booster/internal/prompt"
	"github.com/studyboost/booster/internal/speech"
)

// Analyzer is the generative AI collaborator: text plus image in, raw
// text out.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, image []byte, mime string) (string, error)
	Configured() bool
}

// HistoryStore persists per-profile history documents.
type HistoryStore interface {
	Load(profile model.Profile) (model.HistoryDocument, error)
	Save(profile model.Profile, doc model.HistoryDocument) error
}

// ErrMissingCredential is returned when analysis is requested without
// an API key configured. History browsing still works without one.
var ErrMissingCredential = errors.New("analysis requires an API key")

// ErrNoAnalysis is returned when an operation needs a current analysis
// result and none exists.
var ErrNoAnalysis = errors.New("no analysis result in this session")

// ErrReviewMode is returned for operations unavailable while retrying
// a past quiz set.
var ErrReviewMode = errors.New("not available in review mode")

// ErrNoQuizzesSaved is returned when a history entry has no stored
// quiz set to retry.
var ErrNoQuizzesSaved = errors.New("history entry has no saved quizzes")

// Session holds the state of one user's study cycle. Methods are safe
// for concurrent use; each user action is one synchronous pass.
type Session struct {
	id      string
	profile model.Profile
	config  model.SessionConfig

	analyzer  Analyzer
	store     HistoryStore
	builder   *prompt.Builder
	sanitizer *speech.Sanitizer
	now       func() time.Time

	mu      sync.Mutex
	history model.HistoryDocument
	current *model.AnalysisResult
	review  bool
}

// New creates a session for a profile and loads its history document
// into the working copy.
func New(id string, profile model.Profile, config model.SessionConfig, analyzer Analyzer, store HistoryStore) (*Session, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	history, err := store.Load(profile)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return &Session{
		id:        id,
		profile:   profile,
		config:    config,
		analyzer:  analyzer,
		store:     store,
		builder:   prompt.NewBuilder(profile, config),
		sanitizer: speech.NewSanitizer(speech.DialectLatest),
		now:       time.Now,
		history:   history,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Profile returns the session's profile.
func (s *Session) Profile() model.Profile { return s.profile }

// Config returns the session's study settings.
func (s *Session) Config() model.SessionConfig { return s.config }

// InReview reports whether the session is retrying a past quiz set.
func (s *Session) InReview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.review
}

// Current returns the active analysis result, or nil.
func (s *Session) Current() *model.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// History returns a snapshot of the history document. Callers may read
// or encode it freely while RecordResult keeps appending to the live
// copy.
func (s *Session) History() model.HistoryDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// Analyze runs the full pipeline for one page submission and replaces
// the session's current result wholesale. A failed model call or a
// malformed reply aborts the submission; the user retries by
// resubmitting, never by resuming mid-pipeline.
func (s *Session) Analyze(ctx context.Context, subject model.Subject, style prompt.Style, directive string, image []byte, mime string) (*model.AnalysisResult, error) {
	if s.InReview() {
		return nil, ErrReviewMode
	}
	if !s.analyzer.Configured() {
		return nil, ErrMissingCredential
	}

	instruction, err := s.builder.Build(subject, style, directive)
	if err != nil {
		return nil, err
	}

	raw, err := s.analyzer.Analyze(ctx, instruction, image, mime)
	if err != nil {
		return nil, err
	}

	result, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	for i, q := range result.Quizzes {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("quiz %d from model: %w", i+1, err)
		}
	}

	result.UsedSubject = subject

	s.mu.Lock()
	s.current = result
	s.mu.Unlock()

	return result, nil
}

// SubmitAnswers grades the current quiz set against the selected
// option indices. Grading only finalizes once every question is
// answered; an incomplete set returns an IncompleteError from the
// grader.
func (s *Session) SubmitAnswers(selections []int) (grader.Result, model.FeedbackComment, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return grader.Result{}, model.FeedbackComment{}, ErrNoAnalysis
	}

	result, err := grader.Grade(current.Quizzes, selections)
	if err != nil {
		return grader.Result{}, model.FeedbackComment{}, err
	}

	feedback := grader.FeedbackFor(current.BoostComments, result.Tier)
	return result, feedback, nil
}

// RecordResult appends a history entry for a graded quiz and persists
// the document. The quiz set is stored with the entry so it can be
// retried later. Recording is skipped in review mode.
func (s *Session) RecordResult(page string, result grader.Result) (model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.review {
		return model.HistoryEntry{}, ErrReviewMode
	}
	if s.current == nil {
		return model.HistoryEntry{}, ErrNoAnalysis
	}

	entry := model.NewHistoryEntry(s.now(), page, result.DisplayScore(), s.current.Quizzes)
	s.history.Append(s.current.UsedSubject, entry)

	if err := s.store.Save(s.profile, s.history); err != nil {
		return model.HistoryEntry{}, fmt.Errorf("save history: %w", err)
	}
	return entry, nil
}

// StartReview loads a past quiz set from history for retrying. The
// retried round is graded but never recorded.
func (s *Session) StartReview(subject model.Subject, index int) (*model.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.history[string(subject)]
	if !ok || index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("no history entry %d for subject %q", index, subject)
	}
	entry := entries[index]
	if len(entry.Quizzes) == 0 {
		return nil, ErrNoQuizzesSaved
	}

	s.current = &model.AnalysisResult{
		Page:        entry.Page,
		Quizzes:     entry.Quizzes,
		UsedSubject: subject,
	}
	s.review = true
	return s.current, nil
}

// ExitReview leaves review mode and clears the current result.
func (s *Session) ExitReview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.review = false
	s.current = nil
}

// SpeechBlock prepares the playback request for one explanation
// block. The model's audio target is preferred; display text is
// sanitized as a fallback.
func (s *Session) SpeechBlock(index int, rate float64) (speech.Utterance, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return speech.Utterance{}, ErrNoAnalysis
	}
	if index < 0 || index >= len(current.ExplanationBlocks) {
		return speech.Utterance{}, fmt.Errorf("no explanation block %d", index)
	}

	block := current.ExplanationBlocks[index]
	text := block.AudioTarget
	if text == "" {
		text = s.sanitizer.Clean(block.Text)
	}
	return s.utterance(text, rate, speech.LangForSubject(current.UsedSubject)), nil
}

// SpeechFull prepares playback of the whole-page reading script.
func (s *Session) SpeechFull(rate float64) (speech.Utterance, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return speech.Utterance{}, ErrNoAnalysis
	}
	text := current.AudioScript
	if text == "" {
		return speech.Utterance{}, errors.New("no audio script in this result")
	}
	return s.utterance(text, rate, speech.LangJapanese), nil
}

// SpeechEnglish prepares playback of the English-only transcript,
// available when the English mission requested one.
func (s *Session) SpeechEnglish(rate float64) (speech.Utterance, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return speech.Utterance{}, ErrNoAnalysis
	}
	if current.EnglishOnlyScript == "" {
		return speech.Utterance{}, errors.New("no english transcript in this result")
	}
	return s.utterance(current.EnglishOnlyScript, rate, speech.LangEnglish), nil
}

// SpeechFeedback prepares playback of a boost comment's speech script.
func (s *Session) SpeechFeedback(tier grader.Tier, rate float64) (speech.Utterance, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return speech.Utterance{}, ErrNoAnalysis
	}
	comment := grader.FeedbackFor(current.BoostComments, tier)
	if comment.Script == "" {
		return speech.Utterance{}, errors.New("no speech script for this tier")
	}
	return s.utterance(comment.Script, rate, speech.LangJapanese), nil
}

func (s *Session) utterance(text string, rate float64, lang string) speech.Utterance {
	if rate <= 0 {
		rate = speech.DefaultRate
	}
	return speech.Utterance{Text: text, Rate: rate, Lang: lang}
}
