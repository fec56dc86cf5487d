package automation

import (
	"sort"
	"strings"
)

// Domain selects which engine keywords are recognised in a piece of text.
// Each domain encodes independently: a worksheet keyword inside a window
// name property is ordinary text.
type Domain string

const (
	// DomainText recognises only the variable delimiters.
	DomainText Domain = "text"
	// DomainWindow recognises window-name keywords such as "Current Window".
	DomainWindow Domain = "window"
	// DomainWindowPosition recognises window-position keywords.
	DomainWindowPosition Domain = "window_position"
	// DomainWorksheet recognises worksheet keywords such as "Next Sheet".
	DomainWorksheet Domain = "worksheet"
)

// Private code points used in the storage form.
const (
	SentinelVariableStart = "\u2983"
	SentinelVariableEnd   = "\u2984"
	SentinelKeywordStart  = "\U0001D542"
	SentinelKeywordEnd    = "\U0001D54E"
)

// Internal keyword names.
const (
	KeywordCurrentWindow    = "%kwd_current_window%"
	KeywordDesktop          = "%kwd_desktop%"
	KeywordAllWindows       = "%kwd_all_windows%"
	KeywordCurrentPosition  = "%kwd_current_position%"
	KeywordCurrentXPosition = "%kwd_current_xposition%"
	KeywordCurrentYPosition = "%kwd_current_yposition%"
	KeywordCurrentSheet     = "%kwd_current_worksheet%"
	KeywordNextSheet        = "%kwd_next_worksheet%"
	KeywordPreviousSheet    = "%kwd_previous_worksheet%"
)

// Legacy markup used in stored help text and older documents for the
// configured variable markers.
const (
	legacyVariableStart = "{{{"
	legacyVariableEnd   = "}}}"
)

// Keyword is a named engine constant with a user-visible display string.
type Keyword struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Domain  Domain `json:"domain"`
}

// DefaultKeywords returns the stock keyword set.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{Name: KeywordCurrentWindow, Display: "Current Window", Domain: DomainWindow},
		{Name: KeywordDesktop, Display: "Desktop", Domain: DomainWindow},
		{Name: KeywordAllWindows, Display: "All Windows", Domain: DomainWindow},
		{Name: KeywordCurrentPosition, Display: "Current Position", Domain: DomainWindowPosition},
		{Name: KeywordCurrentXPosition, Display: "Current XPosition", Domain: DomainWindowPosition},
		{Name: KeywordCurrentYPosition, Display: "Current YPosition", Domain: DomainWindowPosition},
		{Name: KeywordCurrentSheet, Display: "Current Sheet", Domain: DomainWorksheet},
		{Name: KeywordNextSheet, Display: "Next Sheet", Domain: DomainWorksheet},
		{Name: KeywordPreviousSheet, Display: "Previous Sheet", Domain: DomainWorksheet},
	}
}

// Domains lists every domain understood by the codec.
func Domains() []Domain {
	return []Domain{DomainText, DomainWindow, DomainWindowPosition, DomainWorksheet}
}

// Codec converts command text between its display form (what a user types)
// and its storage form (what is persisted). The two directions are exact
// inverses for any text that contains no sentinel code points.
//
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	storage map[Domain]*strings.Replacer
	display map[Domain]*strings.Replacer
	expand  *strings.Replacer
}

type tokenPair struct {
	display string
	storage string
}

// NewCodec builds a codec for the given variable markers and keyword set.
// Keywords with an empty display string are ignored.
func NewCodec(start, end string, keywords []Keyword) *Codec {
	c := &Codec{
		storage: make(map[Domain]*strings.Replacer, 4),
		display: make(map[Domain]*strings.Replacer, 4),
	}

	for _, d := range Domains() {
		pairs := []tokenPair{
			{display: start, storage: SentinelVariableStart},
			{display: end, storage: SentinelVariableEnd},
		}
		for _, kw := range keywords {
			if kw.Domain == d && d != DomainText && kw.Display != "" {
				pairs = append(pairs, tokenPair{display: kw.Display, storage: wrapKeyword(kw.Name)})
			}
		}
		c.storage[d] = buildReplacer(pairs, false)
		c.display[d] = buildReplacer(pairs, true)
	}

	expand := []string{legacyVariableStart, start, legacyVariableEnd, end}
	for _, kw := range keywords {
		if kw.Display != "" {
			expand = append(expand, kw.Name, kw.Display)
		}
	}
	c.expand = strings.NewReplacer(expand...)

	return c
}

// buildReplacer creates a single-pass replacer. strings.Replacer tries
// patterns in argument order at each position, so patterns are sorted
// longest first to make the longest token win.
func buildReplacer(pairs []tokenPair, reverse bool) *strings.Replacer {
	sorted := make([]tokenPair, 0, len(pairs))
	for _, p := range pairs {
		if p.display != "" {
			sorted = append(sorted, p)
		}
	}

	from := func(p tokenPair) string {
		if reverse {
			return p.storage
		}
		return p.display
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(from(sorted[i])) > len(from(sorted[j]))
	})

	args := make([]string, 0, len(sorted)*2)
	for _, p := range sorted {
		if reverse {
			args = append(args, p.storage, p.display)
		} else {
			args = append(args, p.display, p.storage)
		}
	}
	return strings.NewReplacer(args...)
}

func wrapKeyword(name string) string {
	return SentinelKeywordStart + name + SentinelKeywordEnd
}

// ToStorageForm encodes display text for persistence. Unknown domains are
// treated as DomainText.
func (c *Codec) ToStorageForm(text string, d Domain) string {
	r, ok := c.storage[d]
	if !ok {
		r = c.storage[DomainText]
	}
	return r.Replace(text)
}

// ToDisplayForm decodes persisted text back to what the user typed.
func (c *Codec) ToDisplayForm(text string, d Domain) string {
	r, ok := c.display[d]
	if !ok {
		r = c.display[DomainText]
	}
	return r.Replace(text)
}

// ExpandEngineKeywords replaces legacy markup ("{{{", "}}}" and bare
// internal keyword names) with the configured display forms.
func (c *Codec) ExpandEngineKeywords(text string) string {
	return c.expand.Replace(text)
}

// ContainsSentinel reports whether s contains any storage-form code point.
func ContainsSentinel(s string) bool {
	return strings.Contains(s, SentinelVariableStart) ||
		strings.Contains(s, SentinelVariableEnd) ||
		strings.Contains(s, SentinelKeywordStart) ||
		strings.Contains(s, SentinelKeywordEnd)
}
