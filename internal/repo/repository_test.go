package repo

import (
	"fmt"
	"strings"
	"testing"

	"gittab/internal/cache"
	"gittab/internal/gitcmd"
	"gittab/internal/logging"
)

// fakeRunner maps joined argument strings to canned git output.
type fakeRunner struct {
	responses map[string]string
	errors    map[string]error
	calls     []string
}

func (f *fakeRunner) Run(dir string, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errors[key]; ok {
		return nil, err
	}
	out, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("unexpected git invocation: %s", key)
	}
	return []byte(out), nil
}

func (f *fakeRunner) RunCombined(dir string, args ...string) ([]byte, error) {
	return f.Run(dir, args...)
}

func (f *fakeRunner) countCalls(key string) int {
	n := 0
	for _, call := range f.calls {
		if call == key {
			n++
		}
	}
	return n
}

const logFormat = "%x1e%H%x1f%an%x1f%cn%x1f%ct%x1f%s"

func logKey(rev string, limit int) string {
	key := "log --numstat --date=unix --pretty=format:" + logFormat
	if limit > 0 {
		key += fmt.Sprintf(" -n%d", limit)
	}
	return key + " " + rev
}

// Three commits on main: newest touches app.go and notes.md, the middle
// touches only notes.md, the oldest touches app.go and util.go.
const sampleLog = "\x1e" +
	"aaa1111111111111111111111111111111111111\x1fAlice\x1fAlice\x1f1714608000\x1fadd feature\n" +
	"10\t2\tapp.go\n" +
	"3\t0\tnotes.md\n" +
	"\x1e" +
	"bbb2222222222222222222222222222222222222\x1fBob\x1fBob\x1f1714521600\x1fupdate notes\n" +
	"5\t1\tnotes.md\n" +
	"\x1e" +
	"ccc3333333333333333333333333333333333333\x1fAlice\x1fCarol\x1f1714435200\x1finitial\n" +
	"20\t0\tapp.go\n" +
	"7\t0\tutil.go\n"

func blameOutput(committer string, lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "aaa1111111111111111111111111111111111111 %d %d 1\n", i+1, i+1)
		fmt.Fprintf(&b, "author %s\n", committer)
		fmt.Fprintf(&b, "committer %s\n", committer)
		b.WriteString("committer-time 1714608000\n")
		b.WriteString("\tsome line\n")
	}
	return b.String()
}

func newTestRepo(t *testing.T, runner gitcmd.Runner, backend cache.Backend) *Repository {
	t.Helper()
	r, err := New("/work/demo", Options{
		CacheBackend:  backend,
		DefaultBranch: "main",
		Logger:        logging.NewLogger(logging.Config{Level: logging.ErrorLevel}),
		Runner:        runner,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestNewDerivesName(t *testing.T) {
	r := newTestRepo(t, &fakeRunner{}, nil)
	if r.Name() != "demo" {
		t.Errorf("name = %q, want demo", r.Name())
	}
	if r.WorkingDir() != "/work/demo" {
		t.Errorf("working dir = %q", r.WorkingDir())
	}
}

func TestFilterKeep(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		path   string
		want   bool
	}{
		{"empty filter keeps all", Filter{}, "a/b/c.py", true},
		{"extension match", Filter{Extensions: []string{"go"}}, "cmd/main.go", true},
		{"extension miss", Filter{Extensions: []string{"go"}}, "README.md", false},
		{"ignored dir", Filter{IgnoreDirs: []string{"vendor"}}, "vendor/lib/x.go", false},
		{"ignored dir mid-path", Filter{IgnoreDirs: []string{"vendor"}}, "a/vendor/x.go", false},
		{"dir name as filename kept", Filter{IgnoreDirs: []string{"vendor"}}, "pkg/vendor", true},
		{"both constraints", Filter{Extensions: []string{"go"}, IgnoreDirs: []string{"docs"}}, "docs/x.go", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Keep(tc.path); got != tc.want {
				t.Errorf("Keep(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestCommitHistory(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		logKey("main", 0): sampleLog,
	}}
	r := newTestRepo(t, runner, nil)

	rows, err := r.CommitHistory("", 0, Filter{})
	if err != nil {
		t.Fatalf("CommitHistory failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	first := rows[0]
	if first.Author != "Alice" || first.Insertions != 13 || first.Deletions != 2 {
		t.Errorf("first row = %+v", first)
	}
	if first.Lines != 15 || first.Net != 11 {
		t.Errorf("derived stats = lines %d net %d", first.Lines, first.Net)
	}
}

func TestCommitHistoryDropsFilteredOutCommits(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		logKey("main", 0): sampleLog,
	}}
	r := newTestRepo(t, runner, nil)

	// The middle commit touches only notes.md and must vanish entirely.
	rows, err := r.CommitHistory("", 0, Filter{Extensions: []string{"go"}})
	if err != nil {
		t.Fatalf("CommitHistory failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, row := range rows {
		if row.Message == "update notes" {
			t.Error("commit with no matching files should be dropped")
		}
	}
	if rows[0].Insertions != 10 || rows[0].Deletions != 2 {
		t.Errorf("filtered stats = %+v", rows[0])
	}
}

func TestCommitHistoryUsesCache(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		logKey("main", 0): sampleLog,
	}}
	backend := cache.NewEphemeralBackend(100)
	r := newTestRepo(t, runner, backend)

	for i := 0; i < 3; i++ {
		if _, err := r.CommitHistory("", 0, Filter{}); err != nil {
			t.Fatalf("CommitHistory call %d failed: %v", i, err)
		}
	}
	if got := runner.countCalls(logKey("main", 0)); got != 1 {
		t.Errorf("git log ran %d times, want 1", got)
	}

	// A different filter is a different key and must recompute.
	if _, err := r.CommitHistory("", 0, Filter{Extensions: []string{"go"}}); err != nil {
		t.Fatalf("CommitHistory with filter failed: %v", err)
	}
	if got := runner.countCalls(logKey("main", 0)); got != 2 {
		t.Errorf("git log ran %d times after filter change, want 2", got)
	}
}

func TestFileChangeHistory(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		logKey("main", 0): sampleLog,
	}}
	r := newTestRepo(t, runner, nil)

	rows, err := r.FileChangeHistory("", 0, Filter{})
	if err != nil {
		t.Fatalf("FileChangeHistory failed: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[0].Filename != "app.go" || rows[0].Insertions != 10 {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[4].Filename != "util.go" {
		t.Errorf("last row = %+v", rows[4])
	}
}

func TestRevsSkipSampling(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		// limit 2 with skip 2 fetches limit*skip revisions.
		logKey("main", 4): sampleLog,
	}}
	r := newTestRepo(t, runner, nil)

	rows, err := r.Revs("", 2, 2)
	if err != nil {
		t.Fatalf("Revs failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !strings.HasPrefix(rows[0].Rev, "aaa") || !strings.HasPrefix(rows[1].Rev, "ccc") {
		t.Errorf("sampled revs = %s, %s", rows[0].Rev, rows[1].Rev)
	}
}

func TestPunchcard(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		logKey("main", 0): sampleLog,
	}}
	r := newTestRepo(t, runner, nil)

	rows, err := r.Punchcard("", 0, Filter{})
	if err != nil {
		t.Fatalf("Punchcard failed: %v", err)
	}
	// Three commits one day apart at the same hour: three distinct bins.
	if len(rows) != 3 {
		t.Fatalf("got %d bins, want 3", len(rows))
	}
	total := 0
	for _, row := range rows {
		total += row.Commits
	}
	if total != 3 {
		t.Errorf("total commits across bins = %d, want 3", total)
	}
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if cur.Weekday < prev.Weekday || (cur.Weekday == prev.Weekday && cur.Hour < prev.Hour) {
			t.Errorf("bins out of order at %d: %+v before %+v", i, prev, cur)
		}
	}
}

func TestFileChangeRates(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		logKey("main", 0): sampleLog,
	}}
	r := newTestRepo(t, runner, nil)

	rows, err := r.FileChangeRates("", 0, Filter{})
	if err != nil {
		t.Fatalf("FileChangeRates failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	byFile := make(map[string]FileChangeRateRow)
	for _, row := range rows {
		byFile[row.Filename] = row
	}
	app := byFile["app.go"]
	if app.AbsChange != 32 || app.NetChange != 28 {
		t.Errorf("app.go = %+v", app)
	}
	if app.UniqueCommitters != 2 {
		t.Errorf("app.go committers = %d, want 2", app.UniqueCommitters)
	}
	// util.go was touched in a single commit: its window defaults to one
	// day rather than zero.
	util := byFile["util.go"]
	if util.AbsRateOfChange != 7 {
		t.Errorf("util.go abs rate = %v, want 7", util.AbsRateOfChange)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].AbsRateOfChange > rows[i-1].AbsRateOfChange {
			t.Error("rows not sorted by abs rate descending")
		}
	}
}
