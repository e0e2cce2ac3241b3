package loader

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JonMunkholm/tabload/internal/core"
)

type team struct {
	ID      int    `tab:"id"`
	Name    string `tab:"name"`
	Players []*player
}

type player struct {
	ID     int    `tab:"id"`
	TeamID int    `tab:"team_id"`
	Handle string `tab:"handle"`
	Team   *team
}

// countingHandler counts log messages so tests can tell how often a file was read.
type countingHandler struct {
	mu     sync.Mutex
	counts map[string]int
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[r.Message]++
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func (h *countingHandler) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[msg]
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestLoader(t *testing.T, opts Options) (*Loader, *countingHandler, string) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "teams.csv", "# league table\nid,name\n1,Red\n2,Blue\n")
	writeFile(t, dir, "players.csv", "id,team_id,handle\n10,1,ace\n11,1,bolt\n12,2,\"c, d\"\n")

	schemas := core.NewSchemaRegistry()
	schemas.MustRegister(core.SchemaFor[team]("teams", core.Relationship{
		Field: "Players", Target: "players", PrimaryKey: "ID", ForeignKey: "TeamID", Cardinality: core.Many,
	}))
	schemas.MustRegister(core.SchemaFor[player]("players", core.Relationship{
		Field: "Team", Target: "teams", PrimaryKey: "TeamID", ForeignKey: "ID", Cardinality: core.One,
	}))

	h := &countingHandler{counts: make(map[string]int)}
	logger := slog.New(h)

	opts.DataDir = dir
	opts.Schemas = schemas
	opts.Logger = logger
	if opts.Converters == nil {
		opts.Converters = core.NewConverters(logger)
	}

	l, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, h, dir
}

func TestNew_RequiresSchemas(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without a schema registry should fail")
	}
}

func TestLoadSet_ReadsOnceThenCaches(t *testing.T) {
	l, h, _ := newTestLoader(t, Options{})
	ctx := context.Background()

	first, err := core.LoadTyped[player](ctx, l, "players")
	if err != nil {
		t.Fatalf("LoadSet() error = %v", err)
	}
	if len(first) != 3 || first[2].Handle != "c, d" {
		t.Fatalf("players = %+v", first)
	}

	second, err := core.LoadTyped[player](ctx, l, "players")
	if err != nil {
		t.Fatal(err)
	}
	if first[0] != second[0] {
		t.Error("second LoadSet should return the cached records")
	}

	if n := h.count("record set loaded"); n != 1 {
		t.Errorf("file read %d times, want 1", n)
	}
	stats := l.Cache().Statistics()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 entry", stats)
	}
	if stats.AverageLoadDuration <= 0 {
		t.Errorf("AverageLoadDuration = %v, want recorded", stats.AverageLoadDuration)
	}
}

func TestLoadSet_ConcurrentCallersShareOneRead(t *testing.T) {
	l, h, _ := newTestLoader(t, Options{})

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, err := l.LoadSet(context.Background(), "teams")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = set
		}(i)
	}
	wg.Wait()

	if n := h.count("record set loaded"); n != 1 {
		t.Errorf("file read %d times, want 1", n)
	}
	want := results[0].([]*team)
	for i, r := range results {
		if got := r.([]*team); got[0] != want[0] {
			t.Errorf("results[%d] is a different set", i)
		}
	}
}

func TestLoad_ResolvesAcrossFiles(t *testing.T) {
	l, h, _ := newTestLoader(t, Options{})
	ctx := context.Background()

	set, err := l.Load(ctx, "teams")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	teams := set.([]*team)
	if len(teams[0].Players) != 2 || len(teams[1].Players) != 1 {
		t.Fatalf("players per team = %d, %d", len(teams[0].Players), len(teams[1].Players))
	}
	if teams[1].Players[0].Handle != "c, d" {
		t.Errorf("Blue player = %+v", teams[1].Players[0])
	}
	if n := h.count("circular relationship skipped"); n != 1 {
		t.Errorf("circular warnings = %d, want 1", n)
	}

	// Resolving players reuses both cached sets.
	pset, err := l.Load(ctx, "players")
	if err != nil {
		t.Fatal(err)
	}
	players := pset.([]*player)
	if players[0].Team != teams[0] {
		t.Error("players should link to the cached team records")
	}
	if n := h.count("record set loaded"); n != 2 {
		t.Errorf("files read %d times, want 2", n)
	}
}

func TestViews(t *testing.T) {
	l, _, _ := newTestLoader(t, Options{})
	ctx := context.Background()

	views, err := l.Views(ctx, "teams", false)
	if err != nil {
		t.Fatalf("Views(resolve=false) error = %v", err)
	}
	if len(views) != 2 || views[0].Relations["Players"] != 0 {
		t.Errorf("unresolved views = %+v", views)
	}

	views, err = l.Views(ctx, "teams", true)
	if err != nil {
		t.Fatalf("Views(resolve=true) error = %v", err)
	}
	if views[0].Columns["name"] != "Red" || views[0].Relations["Players"] != 2 {
		t.Errorf("resolved views[0] = %+v", views[0])
	}

	if _, err := l.Views(ctx, "coaches", true); !errors.Is(err, core.ErrUnknownSchema) {
		t.Errorf("Views(coaches) error = %v, want ErrUnknownSchema", err)
	}
}

// Run with -race: resolution passes rewrite relationship properties of the
// cached records while other goroutines build views from them.
func TestViews_ConcurrentWithResolve(t *testing.T) {
	l, _, _ := newTestLoader(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "teams"
			if i%2 == 1 {
				key = "players"
			}
			for j := range 20 {
				if _, err := l.Views(ctx, key, j%3 != 0); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Views() error = %v", err)
	}
}

func TestLoadSet_Errors(t *testing.T) {
	l, _, dir := newTestLoader(t, Options{})
	ctx := context.Background()

	if _, err := l.LoadSet(ctx, "coaches"); !errors.Is(err, core.ErrUnknownSchema) {
		t.Errorf("unknown key error = %v, want ErrUnknownSchema", err)
	}

	if err := os.Remove(filepath.Join(dir, "players.csv")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadSet(ctx, "players"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v, want fs.ErrNotExist", err)
	}
	if l.Cache().Contains("players") {
		t.Error("a failed read should not be cached")
	}

	// A relationship whose target file is missing fails the pass.
	if _, err := l.Load(ctx, "teams"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want fs.ErrNotExist", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	l.Invalidate("teams")
	if _, err := l.LoadSet(cancelled, "teams"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled load error = %v, want context.Canceled", err)
	}
}

func TestInvalidate_Rereads(t *testing.T) {
	l, h, dir := newTestLoader(t, Options{})
	ctx := context.Background()

	if _, err := l.LoadSet(ctx, "teams"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "teams.csv", "id,name\n1,Red\n2,Blue\n3,Green\n")

	if !l.Invalidate("teams") {
		t.Fatal("Invalidate(teams) = false")
	}
	if l.Invalidate("teams") {
		t.Error("second Invalidate(teams) = true")
	}

	teams, err := core.LoadTyped[team](ctx, l, "teams")
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 3 {
		t.Errorf("teams = %d after reread, want 3", len(teams))
	}
	if n := h.count("record set loaded"); n != 2 {
		t.Errorf("file read %d times, want 2", n)
	}
}

func TestPreload(t *testing.T) {
	l, h, _ := newTestLoader(t, Options{PreloadConcurrency: 1})
	ctx := context.Background()

	if err := l.Preload(ctx); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}
	if got := l.Cache().Keys(); len(got) != 2 {
		t.Errorf("cached keys = %v, want both sets", got)
	}
	if n := h.count("record set loaded"); n != 2 {
		t.Errorf("files read %d times, want 2", n)
	}

	if err := l.Preload(ctx, "teams", "nope"); !errors.Is(err, core.ErrUnknownSchema) {
		t.Errorf("Preload(nope) error = %v, want ErrUnknownSchema", err)
	}
}

func TestLoader_Manifest(t *testing.T) {
	m, err := ParseManifest([]byte("sets:\n  players:\n    file: roster.tsv\n    delimiter: \"\\t\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	l, _, dir := newTestLoader(t, Options{Manifest: m})
	writeFile(t, dir, "roster.tsv", "id\tteam_id\thandle\n20\t2\tzed, jr\n")

	if got := l.Path("players"); got != filepath.Join(dir, "roster.tsv") {
		t.Errorf("Path(players) = %q", got)
	}
	players, err := core.LoadTyped[player](context.Background(), l, "players")
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 1 || players[0].Handle != "zed, jr" || players[0].TeamID != 2 {
		t.Errorf("players = %+v", players)
	}

	abs := filepath.Join(t.TempDir(), "elsewhere.csv")
	m.Sets["teams"] = SetEntry{File: abs}
	if got := l.Path("teams"); got != abs {
		t.Errorf("Path(teams) = %q, want absolute manifest path", got)
	}
}

func TestLoader_Accessors(t *testing.T) {
	l, _, _ := newTestLoader(t, Options{Cache: core.NewSyncCache()})
	if l.Schemas().Len() != 2 {
		t.Errorf("Schemas().Len() = %d", l.Schemas().Len())
	}
	if l.Resolver() == nil {
		t.Error("Resolver() = nil")
	}
	if l.Cache() == nil {
		t.Error("Cache() = nil")
	}
}
