package parser

import (
	"errors"
	"testing"
)

const sampleReply = `ご依頼の解析結果です。
{ "is_match": true, "detected_subject": "数学", "page": "42",
  "explanation_blocks": [{ "text": "二次方程式の解説", "audio_target": "にじほうていしきのかいせつ" }],
  "audio_script": "ぜんぶんのよみあげ",
  "boost_comments": { "high": {"text":"満点！","script":"まんてん"},
                      "mid": {"text":"もう少し","script":"もうすこし"},
                      "low": {"text":"復習しよう","script":"ふくしゅうしよう"} },
  "quizzes": [{ "question":"解の公式は？", "options":["A","B","C"], "answer":1, "location":"P.42" }] }
以上です。`

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, nil},
		{"prose around object", `reply: {"a":1} done`, `{"a":1}`, nil},
		{"greedy across nested braces", `x {"a":{"b":1}} y`, `{"a":{"b":1}}`, nil},
		{"no opening brace", `no json here`, "", ErrNoJSONFound},
		{"empty input", ``, "", ErrNoJSONFound},
		{"close before open", `} then {`, "", ErrNoJSONFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Extract() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFullReply(t *testing.T) {
	result, err := Parse(sampleReply)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !result.IsMatch {
		t.Error("expected is_match true")
	}
	if result.DetectedSubject != "数学" {
		t.Errorf("detected_subject = %q", result.DetectedSubject)
	}
	if result.Page != "42" {
		t.Errorf("page = %q", result.Page)
	}
	if len(result.ExplanationBlocks) != 1 {
		t.Fatalf("expected 1 explanation block, got %d", len(result.ExplanationBlocks))
	}
	if result.ExplanationBlocks[0].AudioTarget != "にじほうていしきのかいせつ" {
		t.Errorf("audio_target = %q", result.ExplanationBlocks[0].AudioTarget)
	}
	if result.BoostComments.High.Text != "満点！" {
		t.Errorf("high comment = %q", result.BoostComments.High.Text)
	}
	if len(result.Quizzes) != 1 {
		t.Fatalf("expected 1 quiz, got %d", len(result.Quizzes))
	}
	if result.Quizzes[0].Answer != 1 {
		t.Errorf("quiz answer index = %d, want 1", result.Quizzes[0].Answer)
	}
	if result.Quizzes[0].Location != "P.42" {
		t.Errorf("quiz location = %q", result.Quizzes[0].Location)
	}
}

func TestParseOptionalFieldsAbsent(t *testing.T) {
	// A non-English subject reply carries no english_only_script and
	// quizzes may omit location. Absence is not an error.
	raw := `{"is_match":true,"detected_subject":"理科","page":"7",
		"explanation_blocks":[{"text":"光合成"}],
		"boost_comments":{"high":{"text":"a","script":"b"},"mid":{"text":"c","script":"d"},"low":{"text":"e","script":"f"}},
		"quizzes":[{"question":"q","options":["x","y"],"answer":0}]}`

	result, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.EnglishOnlyScript != "" {
		t.Errorf("english_only_script should be empty, got %q", result.EnglishOnlyScript)
	}
	if result.ExplanationBlocks[0].AudioTarget != "" {
		t.Errorf("audio_target should be empty, got %q", result.ExplanationBlocks[0].AudioTarget)
	}
	if result.Quizzes[0].Location != "" {
		t.Errorf("location should be empty, got %q", result.Quizzes[0].Location)
	}
}

func TestParseNoJSON(t *testing.T) {
	_, err := Parse("すみません、画像を解析できませんでした。")
	if !errors.Is(err, ErrNoJSONFound) {
		t.Errorf("expected ErrNoJSONFound, got %v", err)
	}
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse(`result: {"is_match": true, "page": }`)
	var malformed *MalformedJSONError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedJSONError, got %v", err)
	}
	if malformed.Span == "" {
		t.Error("error should carry the offending span")
	}
	if malformed.Unwrap() == nil {
		t.Error("error should wrap the decode error")
	}
}

func TestParseTruncatedReply(t *testing.T) {
	// A truncated reply still has braces but does not decode; this is
	// a hard failure for the submission, never a partial result.
	truncated := sampleReply[:len(sampleReply)/2] + "}"
	if _, err := Parse(truncated); err == nil {
		t.Error("expected error for truncated reply")
	}
}
