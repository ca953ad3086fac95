// internal/locator/locator_test.go
package locator

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestFindTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "heading wins",
			html: `<div><span class="title">Class Title</span><h3>Heading Title</h3></div>`,
			want: "Heading Title",
		},
		{
			name: "lower heading level checked first",
			html: `<div><h2>Second</h2><h1>First</h1></div>`,
			want: "First",
		},
		{
			name: "empty heading skipped",
			html: `<div><h1>  </h1><div class="film-title">Aftersun</div></div>`,
			want: "Aftersun",
		},
		{
			name: "link fallback",
			html: `<div><a href="/f">Go</a><a href="/film/1">Anatomy of a Fall</a></div>`,
			want: "Anatomy of a Fall",
		},
		{
			name: "capitalized block fallback",
			html: `<section><p>NOW PLAYING</p><p>lowercase text</p><p>The Holdovers</p></section>`,
			want: "The Holdovers",
		},
		{
			name: "nothing usable",
			html: `<section><p>x</p></section>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.html)
			assert.Equal(t, tt.want, TextOf(FindTitle(doc.Selection)))
		})
	}

	assert.Equal(t, "", TextOf(FindTitle(nil)))
}

func TestFindDescription(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "description class",
			html: `<div><p class="synopsis">A cook returns to his hometown kitchen.</p></div>`,
			want: "A cook returns to his hometown kitchen.",
		},
		{
			name: "short class falls through to paragraph",
			html: `<div><div class="desc">Short</div><p>A quiet family drama set in Tokyo.</p></div>`,
			want: "A quiet family drama set in Tokyo.",
		},
		{
			name: "paragraph with showtime skipped",
			html: `<div><p>Playing tonight at 7:30 PM and 9pm only</p><p>An epic about a physicist and a bomb.</p></div>`,
			want: "An epic about a physicist and a bomb.",
		},
		{
			name: "none",
			html: `<div><p>Too short</p></div>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.html)
			assert.Equal(t, tt.want, TextOf(FindDescription(doc.Selection)))
		})
	}
}

func TestExtractTabs(t *testing.T) {
	html := `<div class="tab-content" role="tabpanel">
PAST LIVES
Friday 1:00 4:15
Saturday 7:30
short
THE ZONE OF INTEREST
Sunday 2:00
</div>
<div id="tab-2">
PAST LIVES
Monday 6:00
</div>`

	// div[id*='tab'] is scanned before div[class*='tab']
	sections := ExtractTabs(parse(t, html))
	require.Len(t, sections, 2)
	assert.Equal(t, TabSection{Header: "PAST LIVES", Times: []string{"6:00", "1:00", "4:15", "7:30"}}, sections[0])
	assert.Equal(t, TabSection{Header: "THE ZONE OF INTEREST", Times: []string{"2:00"}}, sections[1])

	assert.Nil(t, ExtractTabs(nil))
}

func TestLooksLikeMovieContent(t *testing.T) {
	assert.True(t, LooksLikeMovieContent("new documentary screening"))
	assert.True(t, LooksLikeMovieContent("Killers of the Flower Moon"))
	assert.True(t, LooksLikeMovieContent("Up and Away"), "spaces count toward the title shape")
	assert.False(t, LooksLikeMovieContent("TICKETS & MEMBERSHIP"))
	assert.False(t, LooksLikeMovieContent("short"))
	assert.False(t, LooksLikeMovieContent("contact us | faq"))
}

func TestFindContainersByContent(t *testing.T) {
	doc := parse(t, `<ul><li>Director: Wim Wenders</li><li>faq page</li></ul><article>Starring nobody</article>`)

	got := FindContainersByContent(doc, LooksLikeMovieContent)
	require.Len(t, got, 2)
	assert.Equal(t, "Starring nobody", TextOf(got[0]))
	assert.Equal(t, "Director: Wim Wenders", TextOf(got[1]))

	onlyLi := FindContainersByContent(doc, LooksLikeMovieContent, "li")
	require.Len(t, onlyLi, 1)
}
