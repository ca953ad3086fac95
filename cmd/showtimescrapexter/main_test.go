// cmd/showtimescrapexter/main_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/ShowtimeScrapexter/internal/config"
	"github.com/valpere/ShowtimeScrapexter/internal/locator"
	"github.com/valpere/ShowtimeScrapexter/internal/output"
	"github.com/valpere/ShowtimeScrapexter/internal/scraper"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := "output:\n  directory: " + filepath.Join(dir, "data") + "\n  snapshot_file: showtimes.json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func seedSnapshot(t *testing.T, dir string) {
	t.Helper()
	store := output.NewStore(nil, filepath.Join(dir, "data"), "showtimes.json")
	require.NoError(t, store.Save(&types.TheaterCatalog{
		ScrapedAt:   time.Date(2025, 7, 26, 9, 0, 0, 0, time.UTC),
		TotalMovies: 2,
		Theaters:    []string{"Film Forum", "IFC Center"},
		Movies: []types.MovieRecord{
			{Title: "Past Lives", Theater: "Film Forum", Showtimes: []string{"1:00pm", "7:30pm"}},
			{Title: "Perfect Days", Theater: "IFC Center", Showtimes: []string{"7:30pm"}},
		},
	}))
}

func TestCLIVersion(t *testing.T) {
	version = "test-version"
	buildTime = "2025-06-23"
	gitCommit = "abc123"

	code, out, _ := runCLI("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "test-version")
	assert.Contains(t, out, "2025-06-23")
	assert.Contains(t, out, "abc123")
}

func TestCLIHelp(t *testing.T) {
	code, out, _ := runCLI("help")
	assert.Equal(t, 0, code)

	for _, cmd := range []string{"run", "validate", "theaters", "timeline", "inspect", "export", "serve", "template", "version", "help"} {
		assert.Contains(t, out, "showtimescrapexter "+cmd)
	}
}

func TestCLIUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI("bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown command 'bogus'")

	code, out, _ := runCLI()
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Usage:")
}

func TestCLITemplate(t *testing.T) {
	t.Setenv("SHOWTIMES_ENRICHMENT_URL", "")

	code, out, _ := runCLI("template")
	require.Equal(t, 0, code)

	cfg, err := config.LoadFromBytes([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"json", "csv"}, cfg.Output.Formats)
}

func TestCLIValidate(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	code, out, errOut := runCLI("validate", path, "-v")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "Theaters: 8 (8 enabled)")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("concurrency: 64\n"), 0o644))
	code, _, errOut = runCLI("validate", bad)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Configuration Error")

	code, _, errOut = runCLI("validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "config file required")
}

func TestCLITheaters(t *testing.T) {
	code, out, errOut := runCLI("theaters")
	require.Equal(t, 0, code, errOut)

	assert.Equal(t, 8, strings.Count(out, "[enabled]"))
	assert.Contains(t, out, "Film Forum (film_forum) [enabled]")
	assert.Contains(t, out, "Address:  209 W Houston St, New York, NY, 10014")
}

func TestCLITimeline(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)
	seedSnapshot(t, dir)

	code, out, errOut := runCLI("timeline", "-c", path)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "1:00pm\n  Past Lives (Film Forum)\n7:30pm\n  Past Lives (Film Forum)\n  Perfect Days (IFC Center)\n", out)
}

func TestCLIMissingSnapshot(t *testing.T) {
	path := writeConfig(t, t.TempDir())

	code, _, errOut := runCLI("timeline", "--config="+path)
	assert.Equal(t, 5, code)
	assert.Contains(t, errOut, "Snapshot Storage Error")
}

func TestCLIExport(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)
	seedSnapshot(t, dir)

	code, out, errOut := runCLI("export", "-c", path, "csv", "xlsx")
	require.Equal(t, 0, code, errOut)

	for _, name := range []string{"showtimes.csv", "showtimes.xlsx"} {
		full := filepath.Join(dir, "data", exportDir, name)
		assert.FileExists(t, full)
		assert.Contains(t, out, full)
	}

	code, _, _ = runCLI("export", "-c", path, "pdf")
	assert.Equal(t, 6, code)
}

func TestCLIInspectArguments(t *testing.T) {
	code, _, errOut := runCLI("inspect")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "theater id required")

	code, _, errOut = runCLI("inspect", "nowhere")
	assert.Equal(t, 6, code)
	assert.Contains(t, errOut, "Validation Error")
}

func TestPrintInspection(t *testing.T) {
	report := scraper.PageReport{
		URL:        "https://filmforum.org/now_playing",
		Structured: true,
		Events:     3,
		Candidates: []scraper.Candidate{{
			Tag:         "article",
			Class:       "film",
			Title:       "Past Lives",
			Description: "Two childhood friends reunite.",
			Showtimes:   []string{"1:00pm", "7:30pm"},
			Links:       []types.ShowtimeLink{{Time: "1:00pm", URL: "https://filmforum.org/t/1"}},
		}},
		Tabs: []locator.TabSection{{Header: "NOW PLAYING", Times: []string{"7:30", "9:45"}}},
	}

	var out bytes.Buffer
	printInspection(&out, config.Theater{Name: "Film Forum"}, report)
	assert.Equal(t, `Film Forum (https://filmforum.org/now_playing)
Structured data: 3 events
Listing blocks: 1
  <article class="film"> Past Lives
    Two childhood friends reunite.
    Showtimes: 1:00pm, 7:30pm
    1:00pm -> https://filmforum.org/t/1
Tab NOW PLAYING: 7:30, 9:45
`, out.String())
}
