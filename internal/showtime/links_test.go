// internal/showtime/links_test.go
package showtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

func TestExtractLinks(t *testing.T) {
	html := `<div class="showings">
		<a href="/tickets/123">7:30 PM</a>
		<span>Starts 9:45 pm <a href="book?id=9">Book now</a></span>
		<p><a href="https://other.example.com/purchase">Buy</a></p>
		<a href="/about">About us</a>
		<a href="select/42">4pm</a>
	</div>`

	got := ExtractLinks(mustSelection(t, html), "https://cinema.example.com/showtimes/")

	want := []types.ShowtimeLink{
		{Time: "7:30pm", URL: "https://cinema.example.com/tickets/123"},
		{Time: "9:45pm", URL: "https://cinema.example.com/showtimes/book?id=9"},
		{Time: "4:00pm", URL: "https://cinema.example.com/showtimes/select/42"},
	}
	assert.Equal(t, want, got)
}

func TestExtractLinksWithoutTimeAreDropped(t *testing.T) {
	html := `<div><p><a href="/tickets">Get tickets</a></p></div>`
	assert.Empty(t, ExtractLinks(mustSelection(t, html), "https://cinema.example.com"))
	assert.Nil(t, ExtractLinks(nil, ""))
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		name, href, base, want string
	}{
		{"absolute", "https://a.com/x", "https://b.com", "https://a.com/x"},
		{"root relative", "/x", "http://b.com/y/z", "http://b.com/x"},
		{"relative", "x", "https://b.com/y/", "https://b.com/y/x"},
		{"bare host base", "/x", "b.com", "https://b.com/x"},
		{"no base", "x", "", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AbsoluteURL(tt.href, tt.base))
		})
	}
}
