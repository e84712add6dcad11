package model

import (
	"fmt"
	"time"
)

// SchoolType represents the school level of a study profile.
type SchoolType string

const (
	// SchoolElementary covers grades 1-6.
	SchoolElementary SchoolType = "elementary"
	// SchoolMiddle covers grades 1-3.
	SchoolMiddle SchoolType = "middle"
	// SchoolHigh covers grades 1-3.
	SchoolHigh SchoolType = "high"
)

var validSchoolTypes = map[SchoolType]bool{
	SchoolElementary: true,
	SchoolMiddle:     true,
	SchoolHigh:       true,
}

// Profile identifies whose history document we read and write.
// It is fixed for the lifetime of a session; switching profiles
// means loading a different history document.
type Profile struct {
	SchoolType SchoolType `json:"school_type"`
	Grade      int        `json:"grade"`
}

// Validate checks school type and grade range.
func (p Profile) Validate() error {
	if !validSchoolTypes[p.SchoolType] {
		return fmt.Errorf("invalid school type %q", p.SchoolType)
	}
	if p.Grade < 1 || p.Grade > 6 {
		return fmt.Errorf("invalid grade %d: must be 1-6", p.Grade)
	}
	return nil
}

// HistoryFile returns the history file name for this profile.
// The naming convention is a compatibility contract with existing
// saved histories; do not change it.
func (p Profile) HistoryFile() string {
	return fmt.Sprintf("history_%s_%d.json", p.SchoolType, p.Grade)
}

// Subject is one of the fixed study subjects the prompt knows about.
type Subject string

const (
	SubjectEnglish  Subject = "英語"
	SubjectMath     Subject = "数学"
	SubjectJapanese Subject = "国語"
	SubjectScience  Subject = "理科"
	SubjectSocial   Subject = "社会"
	SubjectOther    Subject = "その他"
)

// Subjects lists all subjects in display order.
func Subjects() []Subject {
	return []Subject{
		SubjectEnglish,
		SubjectMath,
		SubjectJapanese,
		SubjectScience,
		SubjectSocial,
		SubjectOther,
	}
}

// Valid reports whether s is one of the known subjects.
func (s Subject) Valid() bool {
	for _, known := range Subjects() {
		if s == known {
			return true
		}
	}
	return false
}

// ExplanationBlock is one unit of explanation text. AudioTarget, when
// present, is the reading the model prepared for speech synthesis.
type ExplanationBlock struct {
	Text        string `json:"text"`
	AudioTarget string `json:"audio_target,omitempty"`
}

// FeedbackComment is a display message paired with its speech script.
type FeedbackComment struct {
	Text   string `json:"text"`
	Script string `json:"script"`
}

// FeedbackSet holds the tiered boost comments returned by the model.
type FeedbackSet struct {
	High FeedbackComment `json:"high"`
	Mid  FeedbackComment `json:"mid"`
	Low  FeedbackComment `json:"low"`
}

// Quiz is one multiple-choice question. Answer is an index into
// Options. Location, when present, points at the page region the
// question came from.
type Quiz struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
	Location string   `json:"location,omitempty"`
}

// Validate checks the answer index invariant.
func (q Quiz) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("quiz needs at least 2 options, got %d", len(q.Options))
	}
	if q.Answer < 0 || q.Answer >= len(q.Options) {
		return fmt.Errorf("answer index %d out of range for %d options", q.Answer, len(q.Options))
	}
	return nil
}

// AnalysisResult is the typed form of the model's JSON reply for one
// page submission. The JSON field names are the wire contract shared
// with the prompt template; both sides must stay in sync.
type AnalysisResult struct {
	IsMatch           bool               `json:"is_match"`
	DetectedSubject   string             `json:"detected_subject"`
	Page              string             `json:"page"`
	ExplanationBlocks []ExplanationBlock `json:"explanation_blocks"`
	EnglishOnlyScript string             `json:"english_only_script,omitempty"`
	AudioScript       string             `json:"audio_script,omitempty"`
	BoostComments     FeedbackSet        `json:"boost_comments"`
	Quizzes           []Quiz             `json:"quizzes"`

	// UsedSubject is the subject the user actually selected for this
	// submission, recorded locally and never sent to the model.
	UsedSubject Subject `json:"used_subject,omitempty"`
}

// HistoryEntryTimeFormat is the timestamp layout used inside history
// files. Kept short (month/day hour:minute) for display.
const HistoryEntryTimeFormat = "01/02 15:04"

// HistoryEntry is one recorded quiz result. Entries are appended and
// never mutated. Quizzes is optional; when present it enables retrying
// the same quiz set later.
type HistoryEntry struct {
	Date    string `json:"date"`
	Page    string `json:"page"`
	Score   string `json:"score"`
	Quizzes []Quiz `json:"quizzes,omitempty"`
}

// NewHistoryEntry builds an entry stamped with the given time.
func NewHistoryEntry(now time.Time, page, score string, quizzes []Quiz) HistoryEntry {
	return HistoryEntry{
		Date:    now.Format(HistoryEntryTimeFormat),
		Page:    page,
		Score:   score,
		Quizzes: quizzes,
	}
}

// HistoryDocument maps a subject name to its chronologically ordered
// result entries. This is the on-disk schema of a profile's history
// file.
type HistoryDocument map[string][]HistoryEntry

// Append adds an entry under the given subject, creating the subject's
// sequence if absent. The caller is responsible for persisting the
// document afterwards; there is no auto-save.
func (d HistoryDocument) Append(subject Subject, entry HistoryEntry) {
	key := string(subject)
	d[key] = append(d[key], entry)
}

// Clone returns an independent copy of the document. Later appends to
// either copy do not show up in the other.
func (d HistoryDocument) Clone() HistoryDocument {
	out := make(HistoryDocument, len(d))
	for subject, entries := range d {
		out[subject] = append([]HistoryEntry(nil), entries...)
	}
	return out
}

// SessionConfig holds the per-session study settings chosen at setup.
type SessionConfig struct {
	AgeTarget int // explanation target age, 7-20
	QuizCount int // requested number of quiz questions, 10-25
}

// Validate checks the setup form ranges.
func (c SessionConfig) Validate() error {
	if c.AgeTarget < 7 || c.AgeTarget > 20 {
		return fmt.Errorf("age target %d out of range 7-20", c.AgeTarget)
	}
	if c.QuizCount < 10 || c.QuizCount > 25 {
		return fmt.Errorf("quiz count %d out of range 10-25", c.QuizCount)
	}
	return nil
}
