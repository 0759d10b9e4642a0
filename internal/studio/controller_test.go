package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

type textCall struct {
	Prompt, Prior string
	Mode          prompts.Mode
	Session       string
}

// fakeGenerator records calls and answers with result/err. When gate is
// non-nil each call blocks until a value is received from it.
type fakeGenerator struct {
	mu      sync.Mutex
	texts   []textCall
	images  []string
	renders []string

	result *gateway.Result
	err    error
	gate   chan *gateway.Result
}

func (f *fakeGenerator) answer() (*gateway.Result, error) {
	if f.gate != nil {
		if r := <-f.gate; r != nil {
			return r, nil
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) GenerateFromText(ctx context.Context, prompt, prior string, mode prompts.Mode) (*gateway.Result, error) {
	f.mu.Lock()
	f.texts = append(f.texts, textCall{prompt, prior, mode, gateway.SessionID(ctx)})
	f.mu.Unlock()
	return f.answer()
}

func (f *fakeGenerator) GenerateFromImage(ctx context.Context, img llm.Image, instruction string) (*gateway.Result, error) {
	f.mu.Lock()
	f.images = append(f.images, instruction)
	f.mu.Unlock()
	return f.answer()
}

func (f *fakeGenerator) RenderMarkup(ctx context.Context, markup, refinement string) (*gateway.Result, error) {
	f.mu.Lock()
	f.renders = append(f.renders, markup)
	f.mu.Unlock()
	return f.answer()
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts) + len(f.images) + len(f.renders)
}

var tableResult = &gateway.Result{
	Markup:        `\begin{tikzpicture}\tkzTabInit{$x$/1,$f(x)$/2}{$-\infty$,$-1$,$1$,$+\infty$}\end{tikzpicture}`,
	PreviewMarkup: "<svg><rect/></svg>",
}

func newTestController(gen Generator) *Controller {
	return NewController("s1", gen, LastWins)
}

func TestInitialState(t *testing.T) {
	st := newTestController(&fakeGenerator{}).Snapshot()
	assert.Equal(t, prompts.ModeFigure, st.Mode)
	assert.Nil(t, st.Result)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestSwitchModeClearsWorkspace(t *testing.T) {
	for _, m := range prompts.Modes() {
		t.Run(string(m), func(t *testing.T) {
			gen := &fakeGenerator{result: tableResult}
			c := newTestController(gen)
			c.SetInputText("y = x^2")
			require.NoError(t, c.SubmitPrimary(context.Background()))
			c.SetRefinementText("thicker")
			c.SetInputImage(llm.Image{Data: []byte{1}})
			c.update(func(s *State) { s.Error = "old failure" })

			c.SwitchMode(m)

			st := c.Snapshot()
			assert.Equal(t, m, st.Mode)
			assert.Nil(t, st.Result)
			assert.Empty(t, st.Error)
			assert.Empty(t, st.InputText)
			assert.Empty(t, st.RefinementText)
			assert.Empty(t, st.EditedMarkup)
			assert.Nil(t, st.InputImage)
		})
	}
}

func TestVariationTableScenario(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SwitchMode(prompts.ModeVariationTable)
	c.SetInputText("y = x^3 - 3x")

	require.NoError(t, c.SubmitPrimary(context.Background()))

	st := c.Snapshot()
	require.NotNil(t, st.Result)
	assert.Equal(t, *tableResult, *st.Result)
	assert.Equal(t, tableResult.Markup, st.EditedMarkup)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)

	require.Len(t, gen.texts, 1)
	assert.Equal(t, textCall{"y = x^3 - 3x", "", prompts.ModeVariationTable, "s1"}, gen.texts[0])
}

func TestSubmitEmptyTextDoesNothing(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	var seen []State
	c.Subscribe(func(s State) { seen = append(seen, s) })

	c.SetInputText("   ")
	err := c.SubmitPrimary(context.Background())

	assert.ErrorIs(t, err, ErrNothingToSubmit)
	assert.Zero(t, gen.calls())
	assert.False(t, c.Snapshot().Loading)
	for _, s := range seen {
		assert.False(t, s.Loading)
	}
}

func TestSubmitImageMode(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SwitchMode(prompts.ModeImage)

	assert.ErrorIs(t, c.SubmitPrimary(context.Background()), ErrNothingToSubmit)

	c.SetInputImage(llm.Image{MIMEType: "image/jpeg", Data: []byte("jpg")})
	c.SetInputText("make it blue")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	assert.Equal(t, []string{"make it blue"}, gen.images)
	assert.NotNil(t, c.Snapshot().Result)
}

func TestSubmitInEditorModeRunsMarkup(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SwitchMode(prompts.ModeEditor)

	assert.ErrorIs(t, c.SubmitPrimary(context.Background()), ErrNothingToRun)

	c.SetEditedMarkup(`\draw (0,0) -- (1,1);`)
	require.NoError(t, c.SubmitPrimary(context.Background()))
	assert.Equal(t, []string{`\draw (0,0) -- (1,1);`}, gen.renders)
}

func TestEditingMarkupLeavesResultAlone(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SetInputText("a circle")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	c.SetEditedMarkup(`\draw (0,0) circle (2);`)

	st := c.Snapshot()
	assert.Equal(t, tableResult.Markup, st.Result.Markup)
	assert.Equal(t, `\draw (0,0) circle (2);`, st.EditedMarkup)

	st.Result.Markup = "mutated copy"
	assert.Equal(t, tableResult.Markup, c.Snapshot().Result.Markup)
}

func TestRunEditedMarkupReseeds(t *testing.T) {
	rendered := &gateway.Result{Markup: `\draw (0,0) circle (2);`, PreviewMarkup: "<svg/>"}
	gen := &fakeGenerator{result: rendered}
	c := newTestController(gen)
	c.SetEditedMarkup(`\draw (0,0) circle (2)`)

	require.NoError(t, c.RunEditedMarkup(context.Background()))

	st := c.Snapshot()
	assert.Equal(t, rendered.Markup, st.EditedMarkup)
	assert.Equal(t, rendered, st.Result)
}

func TestFailureKeepsPreviousResult(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SetInputText("first")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	_, parseErr := gateway.ParseReply(`{"markup":"X"}`)
	require.Error(t, parseErr)
	gen.err = parseErr
	c.SetInputText("second")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	st := c.Snapshot()
	assert.NotEmpty(t, st.Error)
	assert.Equal(t, parseErr.Error(), st.Error)
	assert.Equal(t, tableResult.Markup, st.Result.Markup)
	assert.False(t, st.Loading)
}

func TestErrorClearedByNextSuccess(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	c := newTestController(gen)
	c.SetInputText("x")
	require.NoError(t, c.SubmitPrimary(context.Background()))
	assert.Equal(t, "boom", c.Snapshot().Error)

	gen.err = nil
	gen.result = tableResult
	require.NoError(t, c.SubmitPrimary(context.Background()))
	assert.Empty(t, c.Snapshot().Error)
}

func TestLoadingVisibleWhileInFlight(t *testing.T) {
	gen := &fakeGenerator{gate: make(chan *gateway.Result)}
	c := newTestController(gen)
	c.SetInputText("x")

	done := make(chan error)
	go func() { done <- c.SubmitPrimary(context.Background()) }()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, time.Millisecond)
	gen.gate <- tableResult
	require.NoError(t, <-done)
	assert.False(t, c.Snapshot().Loading)
}

func TestRefineUsesEditedMarkup(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SwitchMode(prompts.ModeFunctionGraph)
	c.SetInputText("sin x")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	c.SetEditedMarkup("edited")
	c.SetRefinementText("add a grid")
	require.NoError(t, c.Refine(context.Background()))

	last := gen.texts[len(gen.texts)-1]
	assert.Equal(t, textCall{"add a grid", "edited", prompts.ModeFunctionGraph, "s1"}, last)
	assert.Empty(t, c.Snapshot().RefinementText)
}

func TestRefineFallsBackToResultMarkup(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SetInputText("square")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	c.SetEditedMarkup("")
	c.SetRefinementText("rotate")
	require.NoError(t, c.Refine(context.Background()))

	assert.Equal(t, tableResult.Markup, gen.texts[1].Prior)
}

func TestRefineInEditorWithoutResultIsFreshGeneration(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SwitchMode(prompts.ModeEditor)
	c.SetEditedMarkup(`\draw (0,0) -- (1,0);`)
	c.SetRefinementText("draw a circle")

	require.NoError(t, c.Refine(context.Background()))

	require.Len(t, gen.texts, 1)
	assert.Equal(t, "draw a circle", gen.texts[0].Prompt)
	assert.Empty(t, gen.texts[0].Prior)
	assert.Empty(t, gen.renders)
}

func TestRefinePreconditions(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)

	assert.ErrorIs(t, c.Refine(context.Background()), ErrNothingToRefine)

	c.SetRefinementText("bigger")
	assert.ErrorIs(t, c.Refine(context.Background()), ErrNothingToRefine)
	assert.Zero(t, gen.calls())
	assert.Equal(t, "bigger", c.Snapshot().RefinementText)
}

func TestFailedRefineKeepsRefinementText(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SetInputText("square")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	gen.err = errors.New("offline")
	c.SetRefinementText("bigger")
	require.NoError(t, c.Refine(context.Background()))
	assert.Equal(t, "bigger", c.Snapshot().RefinementText)
}

func TestResetKeepsMode(t *testing.T) {
	gen := &fakeGenerator{result: tableResult}
	c := newTestController(gen)
	c.SwitchMode(prompts.ModeFunctionGraph)
	c.SetInputText("cos x")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	c.Reset()

	st := c.Snapshot()
	assert.Equal(t, prompts.ModeFunctionGraph, st.Mode)
	assert.Nil(t, st.Result)
	assert.Empty(t, st.EditedMarkup)
}

func TestPanickingGeneratorClearsLoading(t *testing.T) {
	c := newTestController(panicGenerator{&fakeGenerator{}})
	c.SetInputText("x")
	require.NoError(t, c.SubmitPrimary(context.Background()))

	st := c.Snapshot()
	assert.False(t, st.Loading)
	assert.Contains(t, st.Error, "unexpected failure")
}

type panicGenerator struct{ *fakeGenerator }

func (panicGenerator) GenerateFromText(context.Context, string, string, prompts.Mode) (*gateway.Result, error) {
	panic("kaboom")
}

func overlap(t *testing.T, policy OverlapPolicy) (*Controller, *fakeGenerator, func() State) {
	t.Helper()
	gen := &fakeGenerator{gate: make(chan *gateway.Result)}
	c := NewController("s1", gen, policy)
	c.SetInputText("first")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.SubmitPrimary(context.Background())
	}()
	require.Eventually(t, func() bool { return gen.calls() == 1 }, time.Second, time.Millisecond)

	wait := func() State {
		wg.Wait()
		return c.Snapshot()
	}
	return c, gen, wait
}

func TestLastWinsAppliesLateResponse(t *testing.T) {
	c, gen, wait := overlap(t, LastWins)
	c.SwitchMode(prompts.ModeFunctionGraph)

	gen.gate <- tableResult
	st := wait()
	assert.Equal(t, prompts.ModeFunctionGraph, st.Mode)
	assert.Equal(t, tableResult, st.Result)
}

func TestLatestOnlyDropsSupersededResponse(t *testing.T) {
	c, gen, wait := overlap(t, LatestOnly)
	c.SwitchMode(prompts.ModeFunctionGraph)
	assert.False(t, c.Snapshot().Loading)

	gen.gate <- tableResult
	st := wait()
	assert.Nil(t, st.Result)
	assert.False(t, st.Loading)
}

func TestParseOverlapPolicy(t *testing.T) {
	p, err := ParseOverlapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LastWins, p)

	p, err = ParseOverlapPolicy("latest_only")
	require.NoError(t, err)
	assert.Equal(t, LatestOnly, p)

	_, err = ParseOverlapPolicy("queue")
	assert.Error(t, err)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	c := newTestController(&fakeGenerator{})
	var got []string
	unsubscribe := c.Subscribe(func(s State) { got = append(got, s.InputText) })

	c.SetInputText("a")
	unsubscribe()
	c.SetInputText("b")

	assert.Equal(t, []string{"a"}, got)
}
