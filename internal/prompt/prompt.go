// Package prompt assembles the instruction string sent to the vision
// model together with a textbook page image. The wording, the numbered
// rule list, and the embedded JSON shape example are a contract with
// the response parser: the model is told to mimic the example exactly,
// and the parser decodes exactly those field names.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/studyboost/booster/internal/model"
)

// Style selects where the per-submission mission text comes from.
type Style string

const (
	// StyleSubject uses the fixed mission template for the chosen subject.
	StyleSubject Style = "subject"
	// StyleCustom substitutes a caller-supplied directive for the mission.
	StyleCustom Style = "custom"
)

// subjectMissions holds the per-subject mission templates. The wording
// is part of the production prompt and must be embedded verbatim.
var subjectMissions = map[model.Subject]string{
	model.SubjectEnglish:  "英文を意味の塊（/）で区切るスラッシュリーディング形式（英文 / 訳）を徹底してください。重要な文法構造や熟語についても触れてください。",
	model.SubjectMath:     "公式の根拠を重視し、計算過程を一行ずつ省略せず論理的に解説してください。単なる手順ではなく『なぜこの解法を選ぶのか』という思考の起点を言語化してください。",
	model.SubjectJapanese: "論理構造（序破急など）を分解し、筆者の主張を明確にしてください。なぜその結論に至ったか、本文の接続詞などを根拠に論理的に説明してください。",
	model.SubjectScience:  "現象のメカニズムを原理・法則から説明してください。図表がある場合は、軸の意味や数値の変化が示す本質を読み解き、日常の具体例を添えてください。",
	model.SubjectSocial:   "歴史的背景と現代の繋がりをストーリー化してください。単なる事実の羅列ではなく『なぜこの出来事が起きたのか』という因果関係を重視して解説してください。",
	model.SubjectOther:    "画像内容を客観的に観察し、中立的かつ平易な言葉で要点を3つのポイントに整理して解説してください。",
}

var schoolLabels = map[model.SchoolType]string{
	model.SchoolElementary: "小学生",
	model.SchoolMiddle:     "中学生",
	model.SchoolHigh:       "高校生",
}

// SubjectMission returns the fixed mission template for a subject.
func SubjectMission(s model.Subject) string {
	return subjectMissions[s]
}

// Builder produces deterministic analysis prompts. It performs no I/O.
type Builder struct {
	profile model.Profile
	config  model.SessionConfig
}

// NewBuilder creates a Builder for one profile and session config.
func NewBuilder(profile model.Profile, config model.SessionConfig) *Builder {
	return &Builder{profile: profile, config: config}
}

// Build assembles the full instruction string for one page submission.
// With StyleCustom the directive replaces the subject mission after
// sanitization; with StyleSubject the directive is ignored.
func (b *Builder) Build(subject model.Subject, style Style, directive string) (string, error) {
	if !subject.Valid() {
		return "", fmt.Errorf("unknown subject %q", subject)
	}

	mission := subjectMissions[subject]
	if style == StyleCustom {
		mission = sanitizeDirective(directive)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("あなたは%s%d年生担当の天才教育者です。\n",
		schoolLabels[b.profile.SchoolType], b.profile.Grade))
	sb.WriteString(fmt.Sprintf("【教科別個別ミッション: %s】%s\n", subject, mission))
	sb.WriteString(fmt.Sprintf(
		"【共通厳守ルール】1.is_match 2.根拠[P.〇/〇行目] 3.audio_script(ひらがな化) 4.ランク別メッセージ 5.ターゲット年齢%d歳 6.100文字ブロック 7.難読語ルビ（ターゲット年齢%d歳が読めない専門用語や難読語のみに絞ること） 8.問題数%d問\n",
		b.config.AgeTarget, b.config.AgeTarget, b.config.QuizCount))
	sb.WriteString("###JSON形式で出力せよ###\n")
	sb.WriteString(fmt.Sprintf(jsonShapeExample, subject))

	return sb.String(), nil
}

// jsonShapeExample is the literal reply shape the model must mimic.
// Field names here are the wire contract with the parser.
const jsonShapeExample = `{ "is_match": true, "detected_subject": "%s", "page": "数字", "explanation_blocks": [{ "text": "..", "audio_target": ".." }], "english_only_script": "..", "audio_script": "..", "boost_comments": { "high": {"text":"..","script":".."}, "mid": {"text":"..","script":".."}, "low": {"text":"..","script":".."} }, "quizzes": [{ "question":"..", "options":[".."], "answer":0, "location":"P.〇" }] }`

const maxDirectiveRunes = 2000

var directiveTagRegex = regexp.MustCompile(`(?i)</?\s*[a-z][a-z0-9-]*\b[^>]*>`)

// sanitizeDirective guards custom mission text against prompt
// injection: markup-like tags are stripped and the length is capped.
func sanitizeDirective(directive string) string {
	directive = directiveTagRegex.ReplaceAllString(directive, "")
	directive = strings.TrimSpace(directive)

	if directive == "" {
		return subjectMissions[model.SubjectOther]
	}

	if utf8.RuneCountInString(directive) > maxDirectiveRunes {
		runes := []rune(directive)
		directive = string(runes[:maxDirectiveRunes])
	}

	return directive
}
