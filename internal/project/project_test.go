package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gittab/internal/cache"
	"gittab/internal/gitcmd"
	"gittab/internal/logging"
	"gittab/internal/repo"
)

// fakeRunner maps joined argument strings to canned git output.
type fakeRunner struct {
	responses map[string]string
	errors    map[string]error
}

func (f *fakeRunner) Run(dir string, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
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

const logFormat = "%x1e%H%x1f%an%x1f%cn%x1f%ct%x1f%s"

func logKey(rev string, limit int) string {
	key := "log --numstat --date=unix --pretty=format:" + logFormat
	if limit > 0 {
		key += fmt.Sprintf(" -n%d", limit)
	}
	return key + " " + rev
}

func commitRecord(hash, committer string, ts int64, file string, ins int) string {
	return fmt.Sprintf("\x1e%s\x1f%s\x1f%s\x1f%d\x1fchange %s\n%d\t0\t%s\n",
		hash, committer, committer, ts, file, ins, file)
}

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

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
}

func newMemberRepo(t *testing.T, name string, runner gitcmd.Runner, backend cache.Backend) *repo.Repository {
	t.Helper()
	r, err := repo.New("/work/"+name, repo.Options{
		CacheBackend:  backend,
		DefaultBranch: "main",
		Logger:        testLogger(),
		Runner:        runner,
	})
	if err != nil {
		t.Fatalf("repo.New failed: %v", err)
	}
	return r
}

// memberRunner cans everything the warm path and the aggregates need.
func memberRunner(hashPrefix, committer string, ts int64) *fakeRunner {
	hash := hashPrefix + strings.Repeat("0", 40-len(hashPrefix))
	return &fakeRunner{responses: map[string]string{
		logKey("main", 0): commitRecord(hash, committer, ts, "app.go", 10),
		logKey("main", 1): commitRecord(hash, committer, ts, "app.go", 10),
		"for-each-ref --format=%(refname:short) refs/heads": "main\n",
		"for-each-ref --format=%(refname:short) refs/tags":  "v1.0\n",
		"ls-tree -r --name-only main":                       "app.go\n",
		"blame --line-porcelain main -- app.go":             blameOutput(committer, 10),
		"remote": "",
	}}
}

func TestDiscoverFindsRepositories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"alpha", "beta", "not-a-repo"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, dir := range []string{"alpha", "beta"} {
		if err := os.MkdirAll(filepath.Join(root, dir, ".git"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// A repository nested under another is discovered in its own right.
	if err := os.MkdirAll(filepath.Join(root, "alpha", "sub", ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := Discover(root, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	names := make([]string, 0, len(p.Repositories()))
	for _, r := range p.Repositories() {
		names = append(names, r.Name())
	}
	want := []string{"alpha", "sub", "beta"}
	if len(names) != len(want) {
		t.Fatalf("discovered %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("discovered %v, want %v", names, want)
			break
		}
	}
}

func TestDiscoverEmptyRoot(t *testing.T) {
	if _, err := Discover(t.TempDir(), Options{Logger: testLogger()}); err == nil {
		t.Error("expected error for a root with no repositories")
	}
}

func TestCommitHistoryMergesAndDividesLimit(t *testing.T) {
	r1 := newMemberRepo(t, "alpha", memberRunner("a", "Alice", 1714608000), nil)
	r2 := newMemberRepo(t, "beta", memberRunner("b", "Bob", 1714694400), nil)
	p := fromRepos("/work", []*repo.Repository{r1, r2}, testLogger())

	// limit 2 over two repositories: each fetches one commit.
	rows, err := p.CommitHistory("", 2, repo.Filter{})
	if err != nil {
		t.Fatalf("CommitHistory failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Repository != "beta" || rows[1].Repository != "alpha" {
		t.Errorf("rows not merged newest first: %s, %s", rows[0].Repository, rows[1].Repository)
	}
}

func TestCommitHistorySkipsFailingRepo(t *testing.T) {
	broken := &fakeRunner{errors: map[string]error{
		logKey("main", 0): fmt.Errorf("object store corrupt"),
	}}
	r1 := newMemberRepo(t, "alpha", memberRunner("a", "Alice", 1714608000), nil)
	r2 := newMemberRepo(t, "beta", broken, nil)
	p := fromRepos("/work", []*repo.Repository{r1, r2}, testLogger())

	rows, err := p.CommitHistory("", 0, repo.Filter{})
	if err != nil {
		t.Fatalf("CommitHistory failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Repository != "alpha" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestBlameRegroupsAcrossRepos(t *testing.T) {
	shared := &fakeRunner{responses: map[string]string{
		"ls-tree -r --name-only main":           "app.go\n",
		"blame --line-porcelain main -- app.go": blameOutput("Alice", 5),
	}}
	r1 := newMemberRepo(t, "alpha", shared, nil)
	r2 := newMemberRepo(t, "beta", memberRunner("b", "Alice", 1714694400), nil)
	p := fromRepos("/work", []*repo.Repository{r1, r2}, testLogger())

	rows, err := p.Blame("", repo.Filter{})
	if err != nil {
		t.Fatalf("Blame failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Committer != "Alice" || rows[0].LOC != 15 {
		t.Errorf("merged row = %+v", rows[0])
	}
}

func TestBusFactorPerRepository(t *testing.T) {
	r1 := newMemberRepo(t, "alpha", memberRunner("a", "Alice", 1714608000), nil)
	r2 := newMemberRepo(t, "beta", memberRunner("b", "Bob", 1714694400), nil)
	p := fromRepos("/work", []*repo.Repository{r1, r2}, testLogger())

	rows, err := p.BusFactor("", repo.Filter{})
	if err != nil {
		t.Fatalf("BusFactor failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, row := range rows {
		if row.BusFactor != 1 {
			t.Errorf("row = %+v", row)
		}
	}
}

func TestRepoInformation(t *testing.T) {
	runner := memberRunner("a", "Alice", 1714608000)
	runner.responses["rev-parse --is-bare-repository"] = "false\n"
	r1 := newMemberRepo(t, "alpha", runner, nil)
	p := fromRepos("/work", []*repo.Repository{r1}, testLogger())

	rows, err := p.RepoInformation()
	if err != nil {
		t.Fatalf("RepoInformation failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Repository != "alpha" || row.IsBare || row.Branches != 1 || row.Tags != 1 {
		t.Errorf("row = %+v", row)
	}
}

func TestBulkFetchAndWarm(t *testing.T) {
	backend := cache.NewEphemeralBackend(200)
	r1 := newMemberRepo(t, "alpha", memberRunner("a", "Alice", 1714608000), backend)
	r2 := newMemberRepo(t, "beta", memberRunner("b", "Bob", 1714694400), backend)
	p := fromRepos("/work", []*repo.Repository{r1, r2}, testLogger())

	result, err := p.BulkFetchAndWarm(BulkOptions{Parallel: true, Workers: 2})
	if err != nil {
		t.Fatalf("BulkFetchAndWarm failed: %v", err)
	}
	if !result.Success || result.RepositoriesProcessed != 2 {
		t.Errorf("result = %+v", result)
	}
	if result.RunID == "" {
		t.Error("run id should be set")
	}
	if result.Summary.FetchSuccess != 2 || result.Summary.WarmSuccess != 2 {
		t.Errorf("summary = %+v", result.Summary)
	}
	for _, dir := range []string{"/work/alpha", "/work/beta"} {
		outcome, ok := result.PerRepository[dir]
		if !ok {
			t.Fatalf("missing outcome for %s", dir)
		}
		if outcome.Warm == nil || !outcome.Warm.Success {
			t.Errorf("%s warm = %+v", dir, outcome.Warm)
		}
		if outcome.Fetch == nil || outcome.Fetch.RemoteExists {
			t.Errorf("%s fetch = %+v", dir, outcome.Fetch)
		}
	}
}

func TestBulkFetchAndWarmIsolatesFailures(t *testing.T) {
	backend := cache.NewEphemeralBackend(200)
	broken := &fakeRunner{errors: map[string]error{
		"remote": fmt.Errorf("not a git repository"),
	}}
	r1 := newMemberRepo(t, "alpha", memberRunner("a", "Alice", 1714608000), backend)
	r2 := newMemberRepo(t, "beta", broken, backend)
	p := fromRepos("/work", []*repo.Repository{r1, r2}, testLogger())

	result, err := p.BulkFetchAndWarm(BulkOptions{})
	if err != nil {
		t.Fatalf("BulkFetchAndWarm failed: %v", err)
	}
	if result.Success {
		t.Error("a failing repository should mark the run unsuccessful")
	}
	if result.Summary.FetchSuccess != 1 || result.Summary.FetchFailures != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}

	good := result.PerRepository["/work/alpha"]
	if good.FetchError != "" || good.Warm == nil || !good.Warm.Success {
		t.Errorf("healthy repository affected: %+v", good)
	}
	bad := result.PerRepository["/work/beta"]
	if bad.FetchError == "" {
		t.Error("broken repository should record a fetch error")
	}
}

func TestBulkFetchAndWarmKeepsSameNamedRepositoriesApart(t *testing.T) {
	r1, err := repo.New("/work/a/app", repo.Options{
		DefaultBranch: "main",
		Logger:        testLogger(),
		Runner:        memberRunner("a", "Alice", 1714608000),
		CacheBackend:  cache.NewEphemeralBackend(200),
	})
	if err != nil {
		t.Fatalf("repo.New failed: %v", err)
	}
	r2, err := repo.New("/work/b/app", repo.Options{
		DefaultBranch: "main",
		Logger:        testLogger(),
		Runner:        memberRunner("b", "Bob", 1714694400),
		CacheBackend:  cache.NewEphemeralBackend(200),
	})
	if err != nil {
		t.Fatalf("repo.New failed: %v", err)
	}
	p := fromRepos("/work", []*repo.Repository{r1, r2}, testLogger())

	result, err := p.BulkFetchAndWarm(BulkOptions{})
	if err != nil {
		t.Fatalf("BulkFetchAndWarm failed: %v", err)
	}
	if len(result.PerRepository) != 2 {
		t.Fatalf("per-repository outcomes = %d, want 2", len(result.PerRepository))
	}
	if result.Summary.WarmSuccess != 2 {
		t.Errorf("summary = %+v", result.Summary)
	}
	for _, dir := range []string{"/work/a/app", "/work/b/app"} {
		outcome, ok := result.PerRepository[dir]
		if !ok {
			t.Fatalf("missing outcome for %s", dir)
		}
		if outcome.Repository != "app" || outcome.Directory != dir {
			t.Errorf("outcome identity = %+v", outcome)
		}
	}
}
