package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ziadkadry99/tikzstudio/internal/export"
	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
	"github.com/ziadkadry99/tikzstudio/internal/studio"
)

// SessionID tags history entries written by batch runs.
const SessionID = "batch"

// ErrEmptyPrompt is returned for a prompt or markup file with no content.
var ErrEmptyPrompt = errors.New("batch: file is empty")

// ErrOutputCollision is returned for a job whose outputs would replace another
// job's input file.
var ErrOutputCollision = errors.New("batch: output would overwrite an input file")

// ProgressFunc is called after each job finishes.
type ProgressFunc func(done, total int, relPath string)

// Options configures a Runner.
type Options struct {
	// Mode is used for prompt files. Defaults to prompts.ModeFigure.
	Mode        prompts.Mode
	Concurrency int
	// OutDir receives <name>.tex, <name>.svg and, with PNG set, <name>.png
	// for every job, mirroring the input layout. Inputs sharing a name, such
	// as circle.png and circle.tex, keep their extension in the output name
	// (circle.png.svg, circle.tex.svg).
	OutDir     string
	PNG        bool
	Export     export.Options
	OnProgress ProgressFunc
}

// Outcome is the result of one job.
type Outcome struct {
	Job    Job
	Result *gateway.Result
	Files  []string
	Err    error
}

// Report collects the outcomes of a run in job order.
type Report struct {
	Outcomes []Outcome
	Failed   int
}

// Runner processes jobs concurrently through a Generator.
type Runner struct {
	gen  studio.Generator
	opts Options
}

// NewRunner creates a Runner with the given options.
func NewRunner(gen studio.Generator, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Mode == "" || !opts.Mode.TakesText() {
		opts.Mode = prompts.ModeFigure
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	return &Runner{gen: gen, opts: opts}
}

// Run processes every job. A missing credential stops the run: jobs not yet
// started are reported as skipped.
func (r *Runner) Run(ctx context.Context, jobs []Job) *Report {
	total := len(jobs)
	report := &Report{Outcomes: make([]Outcome, total)}
	if total == 0 {
		return report
	}

	ctx, cancel := context.WithCancel(gateway.WithSessionID(ctx, SessionID))
	defer cancel()
	var misconfigured int64

	sem := make(chan struct{}, r.opts.Concurrency)
	var processed int64
	progress := func(rel string) {
		count := atomic.AddInt64(&processed, 1)
		if r.opts.OnProgress != nil {
			r.opts.OnProgress(int(count), total, rel)
		}
	}

	skip := func(out *Outcome) {
		if atomic.LoadInt64(&misconfigured) > 0 {
			out.Err = fmt.Errorf("%s: skipped (no API credential configured)", out.Job.RelPath)
		} else {
			out.Err = fmt.Errorf("%s: skipped: %w", out.Job.RelPath, ctx.Err())
		}
		progress(out.Job.RelPath)
	}

	stems, planErrs := r.plan(jobs)

	var wg sync.WaitGroup
	for i, job := range jobs {
		report.Outcomes[i].Job = job
		if planErrs[i] != nil {
			report.Outcomes[i].Err = planErrs[i]
			progress(job.RelPath)
			continue
		}

		select {
		case <-ctx.Done():
			skip(&report.Outcomes[i])
			continue
		case sem <- struct{}{}:
		}
		// A worker cancels before it releases its slot.
		if ctx.Err() != nil {
			<-sem
			skip(&report.Outcomes[i])
			continue
		}

		wg.Add(1)
		go func(out *Outcome, stem string) {
			defer wg.Done()
			defer func() { <-sem }()

			out.Result, out.Files, out.Err = r.process(ctx, out.Job, stem)
			if gateway.KindOf(out.Err) == gateway.KindConfiguration {
				atomic.StoreInt64(&misconfigured, 1)
				cancel()
			}
			progress(out.Job.RelPath)
		}(&report.Outcomes[i], stems[i])
	}
	wg.Wait()

	for _, out := range report.Outcomes {
		if out.Err != nil {
			report.Failed++
		}
	}
	return report
}

// plan assigns every job its output stem. Jobs whose outputs would land on
// another job's input get an error instead.
func (r *Runner) plan(jobs []Job) ([]string, []error) {
	base := func(job Job) string {
		rel := filepath.FromSlash(job.RelPath)
		return filepath.Clean(filepath.Join(r.opts.OutDir, strings.TrimSuffix(rel, filepath.Ext(rel))))
	}
	counts := make(map[string]int, len(jobs))
	inputs := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		counts[base(job)]++
		inputs[filepath.Clean(job.Path)] = true
	}

	exts := []string{".tex", ".svg"}
	if r.opts.PNG {
		exts = append(exts, ".png")
	}

	stems := make([]string, len(jobs))
	errs := make([]error, len(jobs))
	for i, job := range jobs {
		stem := base(job)
		if counts[stem] > 1 {
			stem = filepath.Clean(filepath.Join(r.opts.OutDir, filepath.FromSlash(job.RelPath)))
		}
		stems[i] = stem
		for _, ext := range exts {
			p := stem + ext
			if inputs[p] && p != filepath.Clean(job.Path) {
				errs[i] = fmt.Errorf("%s: %w: %s", job.RelPath, ErrOutputCollision, p)
				break
			}
		}
	}
	return stems, errs
}

func (r *Runner) process(ctx context.Context, job Job, stem string) (*gateway.Result, []string, error) {
	var (
		res *gateway.Result
		err error
	)
	switch job.Kind {
	case KindImage:
		img, ierr := llm.ReadImageFile(job.Path)
		if ierr != nil {
			return nil, nil, ierr
		}
		res, err = r.gen.GenerateFromImage(ctx, img, "")
	default:
		data, rerr := os.ReadFile(job.Path)
		if rerr != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", job.RelPath, rerr)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil, nil, fmt.Errorf("%s: %w", job.RelPath, ErrEmptyPrompt)
		}
		if job.Kind == KindMarkup {
			res, err = r.gen.RenderMarkup(ctx, text, "")
		} else {
			res, err = r.gen.GenerateFromText(ctx, text, "", r.opts.Mode)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", job.RelPath, err)
	}

	files, err := WriteOutputs(stem, res, r.opts.PNG, r.opts.Export, job.Path)
	if err != nil {
		return res, files, fmt.Errorf("%s: %w", job.RelPath, err)
	}
	return res, files, nil
}

// WriteOutputs writes stem.tex and stem.svg and, when withPNG is set,
// stem.png. Paths listed in keep are never overwritten. It returns the files
// written.
func WriteOutputs(stem string, res *gateway.Result, withPNG bool, opts export.Options, keep ...string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(stem), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	kept := func(p string) bool {
		for _, k := range keep {
			if filepath.Clean(k) == filepath.Clean(p) {
				return true
			}
		}
		return false
	}

	var files []string
	if texPath := stem + ".tex"; !kept(texPath) {
		if err := os.WriteFile(texPath, []byte(res.Markup+"\n"), 0644); err != nil {
			return files, fmt.Errorf("writing markup: %w", err)
		}
		files = append(files, texPath)
	}

	svg, err := export.SVG(res.PreviewMarkup)
	if err != nil {
		return files, err
	}
	if svgPath := stem + ".svg"; !kept(svgPath) {
		if err := os.WriteFile(svgPath, svg, 0644); err != nil {
			return files, fmt.Errorf("writing preview: %w", err)
		}
		files = append(files, svgPath)
	}

	if withPNG {
		pngPath := stem + ".png"
		if kept(pngPath) {
			return files, nil
		}
		var buf bytes.Buffer
		if err := export.PNG(&buf, res.PreviewMarkup, opts); err != nil {
			return files, err
		}
		if err := os.WriteFile(pngPath, buf.Bytes(), 0644); err != nil {
			return files, fmt.Errorf("writing png: %w", err)
		}
		files = append(files, pngPath)
	}
	return files, nil
}
