package report

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/xerrors"
)

// Outcome is the result of diffing one common path: Changed, Unchanged or Errored.
type Outcome interface {
	OutcomePath() string
	isOutcome()
}

type Changed struct {
	Path           string  `json:"path"`
	DiffPixelCount int     `json:"diffPixelCount"`
	DiffAmount     float64 `json:"diffAmount"`
	Rendered       bool    `json:"rendered"`
}

type Unchanged struct {
	Path string `json:"path"`
}

type Errored struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (c Changed) OutcomePath() string   { return c.Path }
func (u Unchanged) OutcomePath() string { return u.Path }
func (e Errored) OutcomePath() string   { return e.Path }

func (Changed) isOutcome()   {}
func (Unchanged) isOutcome() {}
func (Errored) isOutcome()   {}

type Report struct {
	Added     []string  `json:"added"`
	Removed   []string  `json:"removed"`
	Changed   []Changed `json:"changed"`
	Unchanged []string  `json:"unchanged"`
	Errored   []Errored `json:"errored"`
}

func (r *Report) Summary() string {
	return fmt.Sprintf("%d changed, %d unchanged, %d errored, %d added, %d removed",
		len(r.Changed), len(r.Unchanged), len(r.Errored), len(r.Added), len(r.Removed))
}

// Aggregator collects outcomes from concurrent pool units. Each category has its own lock.
type Aggregator struct {
	added   []string
	removed []string

	changedMu sync.Mutex
	changed   []Changed

	unchangedMu sync.Mutex
	unchanged   []string

	erroredMu sync.Mutex
	errored   []Errored
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		added:     []string{},
		removed:   []string{},
		changed:   []Changed{},
		unchanged: []string{},
		errored:   []Errored{},
	}
}

// MergeReconciled records the added and removed paths. It must be called once, before the
// pool starts.
func (a *Aggregator) MergeReconciled(added []string, removed []string) {
	a.added = append(a.added, added...)
	a.removed = append(a.removed, removed...)
}

func (a *Aggregator) Merge(outcome Outcome) {
	switch o := outcome.(type) {
	case Changed:
		a.changedMu.Lock()
		a.changed = append(a.changed, o)
		a.changedMu.Unlock()
	case Unchanged:
		a.unchangedMu.Lock()
		a.unchanged = append(a.unchanged, o.Path)
		a.unchangedMu.Unlock()
	case Errored:
		a.erroredMu.Lock()
		a.errored = append(a.errored, o)
		a.erroredMu.Unlock()
	}
}

// Finish checks that exactly one outcome was merged per common path and returns the report
// with diffed categories sorted by path. It must only be called after all merges returned.
func (a *Aggregator) Finish(common int) (*Report, error) {
	a.changedMu.Lock()
	defer a.changedMu.Unlock()
	a.unchangedMu.Lock()
	defer a.unchangedMu.Unlock()
	a.erroredMu.Lock()
	defer a.erroredMu.Unlock()

	if got := len(a.changed) + len(a.unchanged) + len(a.errored); got != common {
		return nil, xerrors.Errorf("got %d outcomes for %d common paths", got, common)
	}

	sort.Slice(a.changed, func(i, j int) bool { return a.changed[i].Path < a.changed[j].Path })
	sort.Strings(a.unchanged)
	sort.Slice(a.errored, func(i, j int) bool { return a.errored[i].Path < a.errored[j].Path })

	return &Report{
		Added:     a.added,
		Removed:   a.removed,
		Changed:   a.changed,
		Unchanged: a.unchanged,
		Errored:   a.errored,
	}, nil
}
