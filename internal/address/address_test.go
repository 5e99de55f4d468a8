package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(names ...string) []Candidate {
	out := make([]Candidate, 0, len(names))
	for i, n := range names {
		out = append(out, Candidate{FieldDisplayName: n, FieldUniqueID: string(rune('a' + i))})
	}
	return out
}

func TestSelectAddress(t *testing.T) {
	tests := []struct {
		name    string
		list    []Candidate
		hint    string
		wantIdx int
	}{
		{name: "word boundary avoids 120", list: candidates("120 High St", "12 High St"), hint: "12", wantIdx: 1},
		{name: "first of two exact", list: candidates("12 High St", "120 High St"), hint: "12", wantIdx: 0},
		{name: "no hint picks first", list: candidates("1 Elm Rd", "2 Elm Rd"), hint: "", wantIdx: 0},
		{name: "unmatched hint falls back to first", list: candidates("1 Elm Rd", "2 Elm Rd"), hint: "99", wantIdx: 0},
		{name: "case insensitive", list: candidates("Flat 3, 10 Mill Lane", "Flat 3B, 10 Mill Lane"), hint: "3b", wantIdx: 1},
		{name: "flat name hint", list: candidates("The Barn, Church Rd", "Rose Cottage, Church Rd"), hint: "rose cottage", wantIdx: 1},
		{name: "regex characters are literal", list: candidates("14 Park Rd", "1+4 Park Rd"), hint: "1+4", wantIdx: 1},
		{name: "accented letter is part of the word", list: candidates("12é High St", "12 High St"), hint: "12", wantIdx: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectAddress(tt.list, tt.hint)
			require.NotNil(t, got)
			assert.Equal(t, tt.list[tt.wantIdx].UniqueID(), got.UniqueID())
		})
	}
}

func TestSelectAddressExactNumberFirst(t *testing.T) {
	list := candidates("12 High St", "120 High St")

	got := SelectAddress(list, "12")

	assert.Equal(t, "12 High St", got.DisplayName())
}

func TestSelectAddressEmpty(t *testing.T) {
	assert.Nil(t, SelectAddress(nil, "12"))
	assert.Nil(t, SelectAddress([]Candidate{}, ""))
}

func TestSelectAddressMissingDisplayName(t *testing.T) {
	list := []Candidate{{FieldUniqueID: "x"}, {FieldDisplayName: "7 Oak Way", FieldUniqueID: "y"}}

	assert.Equal(t, "y", SelectAddress(list, "7").UniqueID())
}

func TestSelectIndex(t *testing.T) {
	names := []string{"5 Bridge St", "15 Bridge St"}
	idx := SelectIndex(len(names), func(i int) string { return names[i] }, "15")
	assert.Equal(t, 1, idx)
	assert.Equal(t, -1, SelectIndex(0, nil, "15"))
}

func TestMatchesHint(t *testing.T) {
	assert.True(t, MatchesHint("Flat 2, 12 High St", "12"))
	assert.True(t, MatchesHint("Rose Cottage", "rose cottage"))
	assert.False(t, MatchesHint("120 High St", "12"))
	assert.False(t, MatchesHint("12 High St", ""))
	assert.False(t, MatchesHint("12é High St", "12"))
	assert.False(t, MatchesHint("Ä12 High St", "12"))
	assert.True(t, MatchesHint("Flat 12, Café Row", "café"))
	assert.True(t, MatchesHint("Unit 3-B, Dock Rd", "3-"))
	assert.False(t, MatchesHint("Unit 3- Dock Rd", "3-"))
}

func TestCandidateFields(t *testing.T) {
	c := Candidate{FieldUniqueID: float64(100121234567), FieldDisplayName: nil}

	assert.Equal(t, "100121234567", c.UniqueID())
	assert.Equal(t, "", c.DisplayName())
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "12 High Street, SN1 2JG", StripTags("12 High Street, <b>SN1 2JG</b>"))
	assert.Equal(t, "Smith & Sons, 4 Mill Rd", StripTags("Smith &amp; Sons,  4 <i>Mill</i> Rd"))
	assert.Equal(t, "plain text", StripTags("  plain   text "))
	assert.Equal(t, "", StripTags(""))
}

func TestFromColumns(t *testing.T) {
	columns := []string{"UniqueId", "DisplayName", "Name", "X"}
	rows := [][]any{
		{"100121", "1 <b>High</b> St", "<b>SN1</b>", 1.5, "extra"},
		{"100122", "2 High St"},
	}

	got := FromColumns(columns, rows)

	require.Len(t, got, 2)
	assert.Equal(t, "100121", got[0].UniqueID())
	assert.Equal(t, "1 High St", got[0].DisplayName())
	assert.Equal(t, "SN1", got[0][FieldName])
	assert.Equal(t, 1.5, got[0]["X"])
	assert.Len(t, got[0], 4)

	assert.Equal(t, "2 High St", got[1].DisplayName())
	_, hasName := got[1][FieldName]
	assert.False(t, hasName)
}
