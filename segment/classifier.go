package segment

import (
	"strings"
	"unicode"

	"github.com/brunobiangulo/docsect/parser"
)

// Config selects which header heuristics are active. It is a plain value:
// build it once and hand it to NewClassifier.
type Config struct {
	UseHeadings          bool `json:"use_headings" yaml:"use_headings" mapstructure:"use_headings"`
	UseCapitalization    bool `json:"use_capitalization" yaml:"use_capitalization" mapstructure:"use_capitalization"`
	UseBold              bool `json:"use_bold" yaml:"use_bold" mapstructure:"use_bold"`
	UseUnderline         bool `json:"use_underline" yaml:"use_underline" mapstructure:"use_underline"`
	UseBoldUntilColon    bool `json:"use_bold_until_colon" yaml:"use_bold_until_colon" mapstructure:"use_bold_until_colon"`
	UseCapitalLetterList bool `json:"use_capital_letter_list" yaml:"use_capital_letter_list" mapstructure:"use_capital_letter_list"`
	UseRomanNumeralList  bool `json:"use_roman_numeral_list" yaml:"use_roman_numeral_list" mapstructure:"use_roman_numeral_list"`
	IgnoreBullets        bool `json:"ignore_bullets" yaml:"ignore_bullets" mapstructure:"ignore_bullets"`
}

// DefaultConfig enables every heuristic.
func DefaultConfig() Config {
	return Config{
		UseHeadings:          true,
		UseCapitalization:    true,
		UseBold:              true,
		UseUnderline:         true,
		UseBoldUntilColon:    true,
		UseCapitalLetterList: true,
		UseRomanNumeralList:  true,
		IgnoreBullets:        true,
	}
}

// Rule is one named header heuristic.
type Rule struct {
	Name  string
	Match func(parser.Paragraph) bool
}

// Rule names, as reported by Explain.
const (
	RuleHeadingStyle      = "heading-style"
	RuleAllCaps           = "all-caps"
	RuleAllBold           = "all-bold"
	RuleAllUnderlined     = "all-underlined"
	RuleBoldUntilColon    = "bold-until-colon"
	RuleCapitalLetterList = "capital-letter-list"
	RuleRomanNumeralList  = "roman-numeral-list"
	RuleBullet            = "bullet"
)

// Classifier decides whether a paragraph starts a new section. Enabled rules
// are OR-combined; the bullet override runs last and wins over all of them.
type Classifier struct {
	rules    []Rule
	override *Rule
}

// NewClassifier builds the rule pipeline for cfg.
func NewClassifier(cfg Config) *Classifier {
	c := &Classifier{}
	add := func(on bool, name string, fn func(parser.Paragraph) bool) {
		if on {
			c.rules = append(c.rules, Rule{Name: name, Match: fn})
		}
	}
	add(cfg.UseHeadings, RuleHeadingStyle, HeadingStyle)
	add(cfg.UseCapitalization, RuleAllCaps, AllCaps)
	add(cfg.UseBold, RuleAllBold, AllBold)
	add(cfg.UseUnderline, RuleAllUnderlined, AllUnderlined)
	add(cfg.UseBoldUntilColon, RuleBoldUntilColon, BoldUntilColon)
	add(cfg.UseCapitalLetterList, RuleCapitalLetterList, CapitalLetterList)
	add(cfg.UseRomanNumeralList, RuleRomanNumeralList, RomanNumeralList)
	if cfg.IgnoreBullets {
		c.override = &Rule{Name: RuleBullet, Match: BulletMarker}
	}
	return c
}

// Rules returns the enabled rules in evaluation order, without the override.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// IsHeader reports whether p is a section header.
func (c *Classifier) IsHeader(p parser.Paragraph) bool {
	header := false
	for _, r := range c.rules {
		if r.Match(p) {
			header = true
			break
		}
	}
	if header && c.override != nil && c.override.Match(p) {
		return false
	}
	return header
}

// Verdict records how a paragraph was classified.
type Verdict struct {
	Header     bool     `json:"header" yaml:"header"`
	Fired      []string `json:"fired,omitempty" yaml:"fired,omitempty"`
	Overridden bool     `json:"overridden,omitempty" yaml:"overridden,omitempty"`
}

// Explain evaluates every rule, not just up to the first match, so the
// result lists all signals present in p.
func (c *Classifier) Explain(p parser.Paragraph) Verdict {
	var v Verdict
	for _, r := range c.rules {
		if r.Match(p) {
			v.Fired = append(v.Fired, r.Name)
		}
	}
	v.Header = len(v.Fired) > 0
	if v.Header && c.override != nil && c.override.Match(p) {
		v.Header = false
		v.Overridden = true
	}
	return v
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

// HeadingStyle matches any style whose name contains "heading", ignoring case.
func HeadingStyle(p parser.Paragraph) bool {
	return strings.Contains(strings.ToUpper(p.StyleName), "HEADING")
}

// AllCaps matches text without lowercase letters. Text without any letter
// matches too, so callers filter such paragraphs out first.
func AllCaps(p parser.Paragraph) bool {
	return !strings.ContainsFunc(strings.TrimSpace(p.Text), unicode.IsLower)
}

// formattedRuns drops runs that hold only whitespace, usually trailing
// spaces formatted differently from the rest of the line.
func formattedRuns(p parser.Paragraph) []parser.Run {
	runs := make([]parser.Run, 0, len(p.Runs))
	for _, r := range p.Runs {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		runs = append(runs, r)
	}
	return runs
}

// allOn is false for an empty list.
func allOn(flags []parser.TriState) bool {
	if len(flags) == 0 {
		return false
	}
	for _, f := range flags {
		if !f.IsOn() {
			return false
		}
	}
	return true
}

// AllBold matches paragraphs whose every non-blank run is bold.
func AllBold(p parser.Paragraph) bool {
	runs := formattedRuns(p)
	flags := make([]parser.TriState, len(runs))
	for i, r := range runs {
		flags[i] = r.Bold
	}
	return allOn(flags)
}

// AllUnderlined matches paragraphs whose every non-blank run is underlined.
func AllUnderlined(p parser.Paragraph) bool {
	runs := formattedRuns(p)
	flags := make([]parser.TriState, len(runs))
	for i, r := range runs {
		flags[i] = r.Underline
	}
	return allOn(flags)
}

// BoldUntilColon matches "LABEL: rest of line" where every run up to and
// including the one holding the first colon is bold.
func BoldUntilColon(p parser.Paragraph) bool {
	var flags []parser.TriState
	for _, r := range formattedRuns(p) {
		flags = append(flags, r.Bold)
		if strings.Contains(r.Text, ":") {
			break
		}
	}
	return allOn(flags)
}

// CapitalLetterList matches list items such as "A. Scope".
func CapitalLetterList(p parser.Paragraph) bool {
	t := strings.TrimSpace(p.Text)
	return len(t) >= 3 && t[0] >= 'A' && t[0] <= 'Z' && t[1:3] == ". "
}

// romanPrefixes stops at XII.
var romanPrefixes = []string{
	"I. ", "V. ", "X. ",
	"II. ", "IV. ", "VI. ", "IX. ", "XI. ",
	"III. ", "VII. ", "XII. ",
	"VIII. ",
}

// RomanNumeralList matches list items such as "II. Background".
func RomanNumeralList(p parser.Paragraph) bool {
	t := strings.TrimSpace(p.Text)
	for _, prefix := range romanPrefixes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// BulletMarker matches bullets that conversion turned into a leading "o ".
func BulletMarker(p parser.Paragraph) bool {
	t := strings.TrimSpace(p.Text)
	return strings.HasPrefix(t, "o ") || strings.HasPrefix(t, "O ")
}
