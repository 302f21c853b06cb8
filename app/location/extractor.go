package location

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Kind int

const (
	NotFound Kind = iota
	PerfectMatch
	Address
)

func (k Kind) String() string {
	switch k {
	case PerfectMatch:
		return "perfect"
	case Address:
		return "address"
	default:
		return "not_found"
	}
}

// Result is what Extract found in a listing text. Text is set only for Address.
type Result struct {
	Kind Kind
	Text string
}

// maxSegments bounds an address fragment: the marker word plus three more.
const maxSegments = 4

func DefaultPerfectPhrases() []string {
	return []string{
		"obok metra",
		"blisko stacji metra",
		"dobry dojazd",
		"przy samej stacji metra",
		"w centrum Warszawy",
	}
}

func DefaultMarkers() []string {
	return []string{
		"ul", "ulica", "ulicy",
		"os", "osiedle", "osiedlu",
		"al", "aleja", "alei",
		"plac", "placu", "pl",
		"galeria", "galerii",
	}
}

// Extractor finds either a phrase signalling a good location or a street-like
// address fragment in free listing text. It holds no mutable state and may be
// shared between goroutines.
type Extractor struct {
	phrases [][]rune
	markers [][]rune
}

// NewExtractor folds the configured sets once. Nil sets fall back to the defaults.
func NewExtractor(perfectPhrases, markers []string) *Extractor {
	if perfectPhrases == nil {
		perfectPhrases = DefaultPerfectPhrases()
	}
	if markers == nil {
		markers = DefaultMarkers()
	}

	e := &Extractor{}
	for _, p := range perfectPhrases {
		if folded := fold(p).runes; len(folded) > 0 {
			e.phrases = append(e.phrases, folded)
		}
	}
	for _, m := range markers {
		if folded := fold(m).runes; len(folded) > 0 {
			e.markers = append(e.markers, folded)
		}
	}
	return e
}

func (e *Extractor) Extract(text string) Result {
	text = norm.NFC.String(text)
	folded := fold(text)

	if e.isPerfect(folded) {
		return Result{Kind: PerfectMatch}
	}
	if fragment, ok := e.findAddress(text, folded); ok {
		return Result{Kind: Address, Text: fragment}
	}
	return Result{Kind: NotFound}
}

func (e *Extractor) IsPerfectLocation(text string) bool {
	return e.isPerfect(fold(norm.NFC.String(text)))
}

func (e *Extractor) FindAddress(text string) (string, bool) {
	text = norm.NFC.String(text)
	return e.findAddress(text, fold(text))
}

func (e *Extractor) isPerfect(folded foldedText) bool {
	for _, phrase := range e.phrases {
		for i := 0; i+len(phrase) <= len(folded.runes); i++ {
			if hasPrefixAt(folded.runes, i, phrase) {
				return true
			}
		}
	}
	return false
}

func (e *Extractor) findAddress(text string, folded foldedText) (string, bool) {
	for i := range folded.runes {
		if i > 0 && isWordRune(folded.runes[i-1]) {
			continue
		}
		for _, marker := range e.markers {
			end := i + len(marker)
			if end >= len(folded.runes) || !hasPrefixAt(folded.runes, i, marker) {
				continue
			}
			if !isMarkerTerminator(folded.runes[end]) {
				continue
			}
			if fragment := scanFragment(text[folded.offsets[i]:]); fragment != "" {
				return fragment, true
			}
		}
	}
	return "", false
}

// scanFragment walks from the marker onwards and keeps what looks like a
// proper-noun address: capitalised words and numbers joined by separators.
func scanFragment(s string) string {
	segments := 0
	wordLen := 0
	inSeparator := false
	runStart := 0
	end := 0

	for i, r := range s {
		switch {
		case isSeparator(r):
			if r == '.' && wordLen > 2 {
				// sentence end
				return trimRun(s, end, runStart, inSeparator)
			}
			if !inSeparator {
				segments++
				if segments == maxSegments {
					return s[:end]
				}
				inSeparator = true
				runStart = i
			}
		case inSeparator:
			if !isUpperOrDigit(r) {
				return trimRun(s, end, runStart, inSeparator)
			}
			inSeparator = false
			wordLen = 1
		case isWordRune(r):
			wordLen++
		default:
			return s[:end]
		}
		end = i + len(string(r))
	}

	return trimRun(s, end, runStart, inSeparator)
}

func trimRun(s string, end, runStart int, inSeparator bool) string {
	if inSeparator {
		return s[:runStart]
	}
	return s[:end]
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '.', '"', '„', '“', '”':
		return true
	}
	return false
}

func isMarkerTerminator(r rune) bool {
	return unicode.IsSpace(r) || isSeparator(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isUpperOrDigit(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

// foldedText is a case-folded copy of a string with, for every folded rune,
// the byte offset of the source rune it came from.
type foldedText struct {
	runes   []rune
	offsets []int
}

func fold(s string) foldedText {
	caser := cases.Fold()
	ft := foldedText{
		runes:   make([]rune, 0, len(s)),
		offsets: make([]int, 0, len(s)),
	}
	var sb strings.Builder
	for offset, r := range s {
		sb.Reset()
		sb.WriteRune(r)
		for _, fr := range caser.String(sb.String()) {
			ft.runes = append(ft.runes, fr)
			ft.offsets = append(ft.offsets, offset)
		}
	}
	return ft
}

func hasPrefixAt(runes []rune, at int, prefix []rune) bool {
	if at+len(prefix) > len(runes) {
		return false
	}
	for j, r := range prefix {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}
