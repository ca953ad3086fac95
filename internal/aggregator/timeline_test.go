// internal/aggregator/timeline_test.go
package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/valpere/ShowtimeScrapexter/internal/showtime"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

func TestBuildTimeline_GroupsAcrossTheaters(t *testing.T) {
	movies := []types.MovieRecord{
		{
			Title: "Past Lives", Theater: "Film Forum", Showtimes: []string{"1:00pm", "7:30pm"},
			ShowtimeLinks: []types.ShowtimeLink{
				{Time: "1:00pm", URL: "https://ff/1"},
				{Time: "7:30pm", URL: "https://ff/730"},
			},
		},
		{Title: "Perfect Days", Theater: "IFC Center", Showtimes: []string{"7:30PM", "11:00am"}},
		{Title: "Alien", Theater: "Metrograph", Showtimes: []string{"12:15am"}},
	}

	timeline := BuildTimeline(movies)

	var times []string
	for _, e := range timeline {
		times = append(times, e.Time)
	}
	assert.Equal(t, []string{"12:15am", "11:00am", "1:00pm", "7:30pm"}, times)

	evening := timeline[3]
	require.Len(t, evening.Movies, 2)
	assert.Equal(t, "Past Lives", evening.Movies[0].Title)
	assert.Equal(t, "Perfect Days", evening.Movies[1].Title)
	assert.Equal(t, []string{"https://ff/730", ""}, evening.URLs)
}

func TestBuildTimeline_Empty(t *testing.T) {
	timeline := BuildTimeline(nil)
	assert.NotNil(t, timeline)
	assert.Empty(t, timeline)
}

func TestBuildTimeline_MovieListedOncePerTime(t *testing.T) {
	movies := []types.MovieRecord{
		{Title: "Heat", Theater: "Angelika", Showtimes: []string{"8:00pm", "8:00 PM"}},
	}

	timeline := BuildTimeline(movies)
	require.Len(t, timeline, 1)
	assert.Len(t, timeline[0].Movies, 1)
	assert.Equal(t, "8:00pm", timeline[0].Time)
}

func TestBuildTimeline_UnparseableTimesSortLast(t *testing.T) {
	movies := []types.MovieRecord{
		{Title: "Mystery", Theater: "A", Showtimes: []string{"TBA"}},
		{Title: "Heat", Theater: "A", Showtimes: []string{"11:30pm"}},
	}

	timeline := BuildTimeline(movies)
	require.Len(t, timeline, 2)
	assert.Equal(t, "11:30pm", timeline[0].Time)
	assert.Equal(t, "TBA", timeline[1].Time)
}

func TestBuildTimeline_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		times := rapid.SliceOf(rapid.SampledFrom([]string{
			"10:00am", "11:30am", "1:00pm", "4:15pm", "7:30pm", "9:45pm", "12:00am",
		})).Draw(t, "times")
		n := rapid.IntRange(0, 5).Draw(t, "movies")

		movies := make([]types.MovieRecord, n)
		total := 0
		for i := range movies {
			movies[i] = types.MovieRecord{
				Title:     rapid.StringMatching(`[A-Z][a-z]{2,8}`).Draw(t, "title"),
				Theater:   "T",
				Showtimes: showtime.CleanAndDedupe(times),
			}
			total += len(movies[i].Showtimes)
		}

		timeline := BuildTimeline(movies)

		placed := 0
		for i, e := range timeline {
			assert.Len(t, e.URLs, len(e.Movies))
			placed += len(e.Movies)
			if i > 0 {
				assert.LessOrEqual(t, showtime.SortKey(timeline[i-1].Time), showtime.SortKey(e.Time))
			}
		}
		assert.Equal(t, total, placed)
	})
}
