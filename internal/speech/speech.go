package speech

import "github.com/studyboost/booster/internal/model"

// Default playback rate multiplier.
const DefaultRate = 1.0

// Language tags handed to the synthesis engine.
const (
	LangJapanese = "ja-JP"
	LangEnglish  = "en-US"
)

// Utterance is one playback request for the external text-to-speech
// engine. The engine is fire-and-forget: a new utterance cancels any
// in-flight one (last request wins), and no result comes back.
type Utterance struct {
	Text string  `json:"text"`
	Rate float64 `json:"rate"`
	Lang string  `json:"lang"`
}

// LangForSubject picks the language tag for reading a subject's
// material aloud. English material uses an English voice.
func LangForSubject(subject model.Subject) string {
	if subject == model.SubjectEnglish {
		return LangEnglish
	}
	return LangJapanese
}
