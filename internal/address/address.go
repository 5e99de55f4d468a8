package address

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Field names returned by the directory search.
const (
	FieldDisplayName = "DisplayName"
	FieldName        = "Name"
	FieldUniqueID    = "UniqueId"
)

// Candidate is one address returned by the directory search. Unknown fields
// are carried through untouched.
type Candidate map[string]any

// DisplayName returns the human-readable address, or "" when missing.
func (c Candidate) DisplayName() string {
	return c.stringField(FieldDisplayName)
}

// Name returns the short name field, or "" when missing.
func (c Candidate) Name() string {
	return c.stringField(FieldName)
}

// UniqueID returns the identifier used to request a schedule (the UPRN).
func (c Candidate) UniqueID() string {
	return c.stringField(FieldUniqueID)
}

func (c Candidate) stringField(name string) string {
	v, ok := c[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers; UPRNs must not come back in exponent form.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// FromColumns zips a columnar search payload into candidates. Cells beyond
// the column list are ignored; short rows simply omit the missing fields.
// Display fields are cleaned with StripTags.
func FromColumns(columns []string, rows [][]any) []Candidate {
	out := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		c := make(Candidate, len(columns))
		for i, col := range columns {
			if i >= len(row) {
				break
			}
			c[col] = row[i]
		}
		for _, key := range []string{FieldDisplayName, FieldName} {
			if s, ok := c[key].(string); ok {
				c[key] = StripTags(s)
			}
		}
		out = append(out, c)
	}
	return out
}

// SelectAddress picks the candidate whose display name contains the house
// number as a whole word. Without a hint, or when nothing matches, the first
// candidate is returned since upstream ranks results by relevance. It
// returns nil only for an empty list.
func SelectAddress(candidates []Candidate, houseNumber string) Candidate {
	i := SelectIndex(len(candidates), func(i int) string {
		return candidates[i].DisplayName()
	}, houseNumber)
	if i < 0 {
		return nil
	}
	return candidates[i]
}

// SelectIndex is SelectAddress over any indexed list of display names. It
// returns -1 when n is 0.
func SelectIndex(n int, displayName func(int) string, houseNumber string) int {
	if n == 0 {
		return -1
	}
	if houseNumber == "" {
		return 0
	}
	pattern := hintPattern(houseNumber)
	for i := 0; i < n; i++ {
		if pattern.MatchString(displayName(i)) {
			return i
		}
	}
	return 0
}

// MatchesHint reports whether hint appears in displayName as a whole word,
// ignoring case.
func MatchesHint(displayName, hint string) bool {
	return hint != "" && hintPattern(hint).MatchString(displayName)
}

// wordClass is the set of word characters for boundary checks. Go's \b only
// knows ASCII, so "12" would otherwise match inside "12é".
const wordClass = `\p{L}\p{N}_`

// hintPattern builds a case-insensitive whole-word matcher for a literal,
// user-supplied hint.
func hintPattern(hint string) *regexp.Regexp {
	first, _ := utf8.DecodeRuneInString(hint)
	last, _ := utf8.DecodeLastRuneInString(hint)
	return regexp.MustCompile(`(?i)` + boundary(isWordRune(first), "^") +
		`(?:` + regexp.QuoteMeta(hint) + `)` + boundary(isWordRune(last), "$"))
}

// boundary emits the context a word boundary needs next to a hint edge:
// a non-word character or the text edge beside a word character, and a
// word character beside a non-word one.
func boundary(word bool, edge string) string {
	if word {
		return `(?:` + edge + `|[^` + wordClass + `])`
	}
	return `[` + wordClass + `]`
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// StripTags removes markup such as "<b>SN1 2JG</b>" from a directory string,
// unescapes entities and collapses whitespace.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}
