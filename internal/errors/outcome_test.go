// internal/errors/outcome_test.go
package errors

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	ok := Success([]string{"a"})
	assert.True(t, ok.OK())
	assert.Equal(t, KindNone, ok.Kind)

	skipped := Skip([]string(nil), fmt.Errorf("fetch failed"))
	assert.False(t, skipped.OK())
	assert.False(t, skipped.IsFatal())
	assert.Equal(t, KindSkippable, skipped.Kind)

	fatal := Fatal[int](ErrStorage)
	assert.True(t, fatal.IsFatal())
	assert.ErrorIs(t, fatal.Err, ErrStorage)
}

func TestDiagnosticsConcurrentAdd(t *testing.T) {
	d := NewDiagnostics(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Skippable(fmt.Sprintf("source-%d", i), StageFetch, fmt.Errorf("timeout"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, d.Len())
	assert.False(t, d.HasFatal())

	d.Skippable("ignored", StageParse, nil)
	assert.Equal(t, 20, d.Len())

	d.Add(Diagnostic{Source: "store", Stage: StageStorage, Kind: KindFatal, Message: "disk full"})
	assert.True(t, d.HasFatal())

	items := d.Items()
	items[0].Message = "mutated"
	assert.NotEqual(t, "mutated", d.Items()[0].Message)
	assert.False(t, d.Items()[0].Time.IsZero())
}

func TestDiagnosticString(t *testing.T) {
	diag := Diagnostic{Source: "film_forum", Stage: StageFetch, Kind: KindSkippable, Message: "timeout"}
	assert.Equal(t, "[skippable] film_forum/fetch: timeout", diag.String())
}

func TestDiagnosticsUseInjectedClock(t *testing.T) {
	at := time.Date(2025, 7, 26, 9, 30, 0, 0, time.UTC)
	d := NewDiagnostics(clockwork.NewFakeClockAt(at))

	d.Skippable("ifc_center", StageParse, fmt.Errorf("bad event"))
	explicit := at.Add(-time.Hour)
	d.Add(Diagnostic{Source: "ifc_center", Stage: StageEnrich, Kind: KindSkippable, Message: "x", Time: explicit})

	items := d.Items()
	assert.Equal(t, at, items[0].Time)
	assert.Equal(t, explicit, items[1].Time, "preset times are kept")
}
