package reconcile_test

import (
	"fmt"
	"math/rand"
	"runtime"
	"snapshot-diff/internal/reconcile"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReconcile(t *testing.T) {
	type in struct {
		first  []string
		second []string
	}

	type want struct {
		first *reconcile.Result
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[]string{"a.png", "b.png"},
				[]string{"b.png", "c.png"},
			},
			want{
				&reconcile.Result{
					Added:   []string{"c.png"},
					Removed: []string{"a.png"},
					Common:  []string{"b.png"},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[]string{},
				[]string{"a.png", "dir/b.jpg"},
			},
			want{
				&reconcile.Result{
					Added:   []string{"a.png", "dir/b.jpg"},
					Removed: []string{},
					Common:  []string{},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[]string{"a.png", "dir/b.jpg"},
				nil,
			},
			want{
				&reconcile.Result{
					Added:   []string{},
					Removed: []string{"a.png", "dir/b.jpg"},
					Common:  []string{},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				nil,
				nil,
			},
			want{
				&reconcile.Result{
					Added:   []string{},
					Removed: []string{},
					Common:  []string{},
				},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				[]string{"A.png", "a.png", "x/y.png"},
				[]string{"a.png", "x/y.png", "z.png"},
			},
			want{
				&reconcile.Result{
					Added:   []string{"z.png"},
					Removed: []string{"A.png"},
					Common:  []string{"a.png", "x/y.png"},
				},
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := reconcile.Reconcile(in.first, in.second)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}

			again := reconcile.Reconcile(in.first, in.second)
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestReconcilePartition(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(1))
	randomPaths := func() []string {
		set := map[string]struct{}{}
		for i := r.Intn(40); i > 0; i-- {
			set[fmt.Sprintf("d%d/%02d.png", r.Intn(3), r.Intn(30))] = struct{}{}
		}
		paths := make([]string, 0, len(set))
		for p := range set {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		return paths
	}

	for i := 0; i < 200; i++ {
		baseline := randomPaths()
		candidate := randomPaths()

		got := reconcile.Reconcile(baseline, candidate)

		if len(got.Added)+len(got.Removed)+2*len(got.Common) != len(baseline)+len(candidate) {
			t.Fatalf("counts do not add up for %v and %v: %+v", baseline, candidate, got)
		}

		inBaseline := toSet(baseline)
		inCandidate := toSet(candidate)
		for _, p := range got.Added {
			if _, ok := inBaseline[p]; ok {
				t.Fatalf("added path %s is in baseline", p)
			}
		}
		for _, p := range got.Removed {
			if _, ok := inCandidate[p]; ok {
				t.Fatalf("removed path %s is in candidate", p)
			}
		}
		for _, p := range got.Common {
			_, b := inBaseline[p]
			_, c := inCandidate[p]
			if !b || !c {
				t.Fatalf("common path %s is not in both trees", p)
			}
		}
		for _, list := range [][]string{got.Added, got.Removed, got.Common} {
			if !sort.StringsAreSorted(list) {
				t.Fatalf("result list %v is not sorted", list)
			}
		}
	}
}

func toSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
