package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTags(t *testing.T) {
	assert.Equal(t, []string{"Europe"}, ExtractTags("Super Game (Europe).zip"))
	assert.Equal(t, []string{"USA", "Rev 1", "Beta"}, ExtractTags("Game (USA) (Rev 1) (Beta).zip"))
	assert.Empty(t, ExtractTags("Game.zip"))
}

func TestExtractTags_Quirks(t *testing.T) {
	// An inner "(" restarts the buffer, dropping the outer content.
	assert.Equal(t, []string{"inner"}, ExtractTags("Game (outer (inner) tail).zip"))
	// Stray ")" is ignored and an unclosed group yields nothing.
	assert.Equal(t, []string{"USA"}, ExtractTags("Game) (USA) (Unclosed"))
	// Duplicates are kept in order.
	assert.Equal(t, []string{"USA", "USA"}, ExtractTags("Game (USA) (USA).zip"))
	assert.Equal(t, []string{""}, ExtractTags("Game ().zip"))
}

func TestSplitTitleAndRevision(t *testing.T) {
	cases := []struct {
		input string
		title string
		rev   int
		ok    bool
	}{
		{"Game.zip", "Game", 0, false},
		{"Super Game (USA).zip", "Super Game", 0, false},
		{"Super Game (Rev 2) (USA).zip", "Super Game", 2, true},
		{"Super Game (Rev 1).zip", "Super Game", 1, true},
		{"Game (Rev 12) (USA).zip", "Game", 12, true},
		{"Game (USA) (Rev 2).zip", "Game", 2, true},
		{"Game (Rev2) (USA).zip", "Game", 2, true},
		{"Game (USA) (Rev A).zip", "Game", 0, false},
		{"Title (Japan) (En,Ja).7z", "Title", 0, false},
		{"  Spaced (USA).zip", "Spaced", 0, false},
	}

	for _, tc := range cases {
		title, rev, ok := SplitTitleAndRevision(tc.input)
		assert.Equal(t, tc.title, title, "title for %q", tc.input)
		assert.Equal(t, tc.rev, rev, "revision for %q", tc.input)
		assert.Equal(t, tc.ok, ok, "revision presence for %q", tc.input)
	}
}

func TestSplitTitleAndRevision_Complex(t *testing.T) {
	cases := []struct {
		input string
		title string
		rev   int
		ok    bool
	}{
		{"Game (World) (Legacy Game Collection).zip", "Game", 0, false},
		{"Game (Legacy Collection) (US) (Rev 1).zip", "Game", 1, true},
		{"Game (Rev 2) (Legacy Collection) (World).zip", "Game", 2, true},
		{"Game (World) (Rev 1) (Legacy Collection).zip", "Game", 1, true},
		{"Game with (Parentheses) in Name (World) (Rev 3).zip", "Game with (Parentheses) in Name", 3, true},
		{"Game (Collection Edition) (Rev 1) (US) (Reprint).zip", "Game", 1, true},
		// Both groups land in the metadata run; the first revision in the name wins.
		{"Game (Rev 3) (Rev 5).zip", "Game", 3, true},
	}

	for _, tc := range cases {
		title, rev, ok := SplitTitleAndRevision(tc.input)
		assert.Equal(t, tc.title, title, "title for %q", tc.input)
		assert.Equal(t, tc.rev, rev, "revision for %q", tc.input)
		assert.Equal(t, tc.ok, ok, "revision presence for %q", tc.input)
	}
}

func TestSplitTitleAndRevision_UnicodeSpace(t *testing.T) {
	for _, name := range []string{
		"Super Game (Rev 2)\u00a0(USA).zip",
		"Super Game (Rev\u00a02) (USA).zip",
		"Super Game\u3000(USA) (Rev 2).zip",
		"Super Game\u2028(Rev 2)\u0085(USA).zip",
	} {
		title, rev, ok := SplitTitleAndRevision(name)
		assert.Equal(t, "Super Game", title, name)
		assert.Equal(t, 2, rev, name)
		assert.True(t, ok, name)
	}
}

func TestSplitTitleAndRevision_Quirks(t *testing.T) {
	// A dot inside the title starts the extension.
	title, _, _ := SplitTitleAndRevision("Dr. Mario (USA).zip")
	assert.Equal(t, "Dr", title)

	// Unbalanced parentheses are absorbed into the title.
	title, _, ok := SplitTitleAndRevision("Game (USA")
	assert.Equal(t, "Game (USA", title)
	assert.False(t, ok)

	// No match at all returns the input verbatim.
	title, _, ok = SplitTitleAndRevision("Game\nPart Two")
	assert.Equal(t, "Game\nPart Two", title)
	assert.False(t, ok)

	// Revisions beyond 32 bits are treated as absent.
	title, _, ok = SplitTitleAndRevision("Game (Rev 99999999999).zip")
	assert.Equal(t, "Game", title)
	assert.False(t, ok)

	// Non-ASCII digits match the revision group but do not parse.
	title, _, ok = SplitTitleAndRevision("Game (Rev \u0662) (USA).zip")
	assert.Equal(t, "Game", title)
	assert.False(t, ok)

	title, _, ok = SplitTitleAndRevision("")
	assert.Equal(t, "", title)
	assert.False(t, ok)
}
