package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

const preview = `<svg width="20" height="10"><rect width="20" height="10" fill="blue"/></svg>`

type recordingGenerator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (g *recordingGenerator) record(s string) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, s)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Result{Markup: `\draw (0,0) rectangle (2,1);`, PreviewMarkup: preview}, nil
}

func (g *recordingGenerator) GenerateFromText(ctx context.Context, prompt, prior string, mode prompts.Mode) (*gateway.Result, error) {
	if gateway.SessionID(ctx) != SessionID {
		return nil, errors.New("missing batch session id")
	}
	return g.record(fmt.Sprintf("text:%s:%s", mode, prompt))
}

func (g *recordingGenerator) GenerateFromImage(ctx context.Context, image llm.Image, instruction string) (*gateway.Result, error) {
	return g.record("image:" + image.MIMEType)
}

func (g *recordingGenerator) RenderMarkup(ctx context.Context, markup, refinement string) (*gateway.Result, error) {
	return g.record("render:" + markup)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindImage, KindOf("sketch.PNG"))
	assert.Equal(t, KindImage, KindOf("a/b/photo.jpeg"))
	assert.Equal(t, KindMarkup, KindOf("figure.tex"))
	assert.Equal(t, KindMarkup, KindOf("figure.tikz"))
	assert.Equal(t, KindPrompt, KindOf("triangle.txt"))
	assert.Equal(t, KindPrompt, KindOf("README"))
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"triangle.txt":        "a triangle",
		"geometry/circle.txt": "a circle",
		"geometry/draft.txt":  "draft",
		"scans/board.png":     "\x89PNG\r\n\x1a\n",
		"notes.md":            "not a prompt",
	})

	jobs, err := Collect(root, []string{"**/*.txt", "scans/*.png", "triangle.txt"}, []string{"draft.*"})
	require.NoError(t, err)

	var rels []string
	for _, j := range jobs {
		rels = append(rels, j.RelPath)
	}
	assert.Equal(t, []string{"geometry/circle.txt", "scans/board.png", "triangle.txt"}, rels)
	assert.Equal(t, KindImage, jobs[1].Kind)
	assert.Equal(t, filepath.Join(root, "scans", "board.png"), jobs[1].Path)
}

func TestCollectRejectsBadPattern(t *testing.T) {
	_, err := Collect(t.TempDir(), []string{"[abc"}, nil)
	assert.Error(t, err)
}

func TestRunWritesOutputs(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFiles(t, root, map[string]string{
		"tables/cubic.txt": "  y = x^3 - 3x  ",
		"scan.png":         "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR",
		"axes.tex":         `\draw[->] (0,0) -- (1,0);`,
	})
	jobs, err := Collect(root, []string{"**/*"}, nil)
	require.NoError(t, err)

	gen := &recordingGenerator{}
	var progress []int
	var mu sync.Mutex
	r := NewRunner(gen, Options{
		Mode:        prompts.ModeVariationTable,
		Concurrency: 2,
		OutDir:      out,
		PNG:         true,
		OnProgress: func(done, total int, _ string) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
			assert.Equal(t, 3, total)
		},
	})
	report := r.Run(context.Background(), jobs)

	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Outcomes, 3)
	assert.ElementsMatch(t, []int{1, 2, 3}, progress)
	assert.ElementsMatch(t, []string{
		"text:variation_table:y = x^3 - 3x",
		"image:image/png",
		`render:\draw[->] (0,0) -- (1,0);`,
	}, gen.calls)

	for _, name := range []string{"tables/cubic.tex", "tables/cubic.svg", "tables/cubic.png", "scan.tex", "scan.svg", "axes.tex", "axes.svg"} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(name)))
	}
	svg, err := os.ReadFile(filepath.Join(out, "scan.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), `xmlns="http://www.w3.org/2000/svg"`)
}

func TestRunDoesNotOverwriteMarkupInput(t *testing.T) {
	root := t.TempDir()
	original := `\draw (0,0) circle (1);`
	writeFiles(t, root, map[string]string{"circle.tex": original})
	jobs, err := Collect(root, []string{"*.tex"}, nil)
	require.NoError(t, err)

	report := NewRunner(&recordingGenerator{}, Options{OutDir: root}).Run(context.Background(), jobs)
	require.Zero(t, report.Failed)

	data, err := os.ReadFile(filepath.Join(root, "circle.tex"))
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	assert.FileExists(t, filepath.Join(root, "circle.svg"))
}

func TestRunReportsFailures(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"empty.txt": "   ", "ok.txt": "a square"})
	jobs, err := Collect(root, []string{"*.txt"}, nil)
	require.NoError(t, err)

	report := NewRunner(&recordingGenerator{}, Options{OutDir: t.TempDir()}).Run(context.Background(), jobs)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrEmptyPrompt)
	assert.NoError(t, report.Outcomes[1].Err)
}

func TestRunStopsWithoutCredential(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})
	jobs, err := Collect(root, []string{"*.txt"}, nil)
	require.NoError(t, err)

	gen := &recordingGenerator{err: &gateway.Error{Kind: gateway.KindConfiguration, Msg: "google API key is missing"}}
	report := NewRunner(gen, Options{OutDir: t.TempDir(), Concurrency: 1}).Run(context.Background(), jobs)

	assert.Equal(t, 3, report.Failed)
	assert.Len(t, gen.calls, 1, "later jobs should not reach the model")
}

func TestRunKeepsInputsSharingAName(t *testing.T) {
	root := t.TempDir()
	original := `\draw (0,0) circle (1);`
	writeFiles(t, root, map[string]string{
		"circle.png": "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR",
		"circle.tex": original,
	})
	jobs, err := Collect(root, []string{"*"}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	report := NewRunner(&recordingGenerator{}, Options{OutDir: root, Concurrency: 2}).Run(context.Background(), jobs)
	require.Zero(t, report.Failed)

	data, err := os.ReadFile(filepath.Join(root, "circle.tex"))
	require.NoError(t, err)
	assert.Equal(t, original, string(data))

	for _, name := range []string{"circle.png.tex", "circle.png.svg", "circle.tex.svg"} {
		assert.FileExists(t, filepath.Join(root, name))
	}
	assert.NoFileExists(t, filepath.Join(root, "circle.svg"))
	assert.ElementsMatch(t,
		[]string{filepath.Join(root, "circle.png.tex"), filepath.Join(root, "circle.png.svg")},
		report.Outcomes[0].Files)
}

func TestRunSeparatesSameNameOutputs(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFiles(t, root, map[string]string{"wave.txt": "a sine wave", "wave.tex": `\draw (0,0) sin (1,1);`})
	jobs, err := Collect(root, []string{"*"}, nil)
	require.NoError(t, err)

	report := NewRunner(&recordingGenerator{}, Options{OutDir: out}).Run(context.Background(), jobs)
	require.Zero(t, report.Failed)
	assert.FileExists(t, filepath.Join(out, "wave.txt.svg"))
	assert.FileExists(t, filepath.Join(out, "wave.tex.svg"))
	assert.NoFileExists(t, filepath.Join(out, "wave.svg"))
}

func TestRunKeepsNestedExtensionInputs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"plot.tex.txt": "a parabola",
		"plot.tex.tex": `\draw (0,0) parabola (1,1);`,
		"plot.tex":     `\draw (0,0) -- (1,1);`,
	})
	jobs, err := Collect(root, []string{"*"}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	gen := &recordingGenerator{}
	report := NewRunner(gen, Options{OutDir: root}).Run(context.Background(), jobs)

	// plot.tex.txt and plot.tex.tex share the stem plot.tex, so they fall back
	// to plot.tex.txt.* and plot.tex.tex.*; plot.tex keeps the stem plot.
	require.Zero(t, report.Failed)
	data, err := os.ReadFile(filepath.Join(root, "plot.tex.tex"))
	require.NoError(t, err)
	assert.Equal(t, `\draw (0,0) parabola (1,1);`, string(data))
}

func TestPlanReportsCollisionWithInput(t *testing.T) {
	root := t.TempDir()
	jobs := []Job{
		{Path: filepath.Join(root, "a.txt"), RelPath: "a.txt", Kind: KindPrompt},
		{Path: filepath.Join(root, "a.svg"), RelPath: "a.svg", Kind: KindPrompt},
		{Path: filepath.Join(root, "b.txt"), RelPath: "b.txt", Kind: KindPrompt},
		{Path: filepath.Join(root, "b.txt.tex"), RelPath: "b.txt.tex", Kind: KindMarkup},
		{Path: filepath.Join(root, "b.txt.png"), RelPath: "b.txt.png", Kind: KindImage},
	}
	r := NewRunner(&recordingGenerator{}, Options{OutDir: root})
	stems, errs := r.plan(jobs)

	assert.Equal(t, filepath.Join(root, "a.txt"), stems[0])
	assert.Equal(t, filepath.Join(root, "a.svg"), stems[1])
	assert.NoError(t, errs[0])
	// a.svg's own stem is a.svg, whose .svg output is a.svg.svg: no collision.
	assert.NoError(t, errs[1])
	// b.txt is alone on stem "b" but b.txt.* share stem "b.txt", so they keep
	// their extension and stay clear of each other.
	assert.Equal(t, filepath.Join(root, "b"), stems[2])
	assert.NoError(t, errs[2])
	assert.NoError(t, errs[3])
	assert.NoError(t, errs[4])

	// A lone job whose output name is another job's input is refused.
	clash := []Job{
		{Path: filepath.Join(root, "c.txt"), RelPath: "c.txt", Kind: KindPrompt},
		{Path: filepath.Join(root, "sub", "c.svg"), RelPath: "sub/c.svg", Kind: KindPrompt},
	}
	_, errs = NewRunner(&recordingGenerator{}, Options{OutDir: filepath.Join(root, "sub")}).plan(clash)
	assert.ErrorIs(t, errs[0], ErrOutputCollision)
	assert.NoError(t, errs[1])
}
