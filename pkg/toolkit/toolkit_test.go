package toolkit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rakhadjo/svara/pkg/frames"
	"github.com/rakhadjo/svara/pkg/knowledge"
	"github.com/rakhadjo/svara/pkg/providers/mock"
	"github.com/rakhadjo/svara/pkg/providers/tavily"
	"github.com/rakhadjo/svara/pkg/tools"
)

func fullDeps(t *testing.T) Deps {
	t.Helper()
	kbDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(kbDir, "notes.md"),
		[]byte("# Notes\n\nThe methodology chapter uses mixed methods design."), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	store, err := knowledge.Open(kbDir)
	if err != nil {
		t.Fatalf("open corpus: %v", err)
	}
	return Deps{
		LLM:          mock.NewLLM("drafted text"),
		Quotes:       mock.NewQuoteSource(),
		Search:       mock.NewSearcher("go was announced in 2009"),
		Images:       mock.NewImageGen("https://img.example/out.png"),
		Knowledge:    store,
		WorkspaceDir: t.TempDir(),
		PythonBin:    "echo",
		AllowExec:    true,
		OpenURL:      func(context.Context, string) error { return nil },
	}
}

func dispatcherWith(t *testing.T, deps Deps) *tools.Dispatcher {
	t.Helper()
	reg := tools.NewRegistry()
	if err := Register(reg, deps); err != nil {
		t.Fatalf("register: %v", err)
	}
	return tools.NewDispatcher(reg, nil, nil)
}

func TestRegisterFullSet(t *testing.T) {
	reg := tools.NewRegistry()
	if err := Register(reg, fullDeps(t)); err != nil {
		t.Fatalf("register: %v", err)
	}
	want := []string{
		"create_python_file",
		"draft_linkedin_post",
		"draw_plotly_chart",
		"execute_python_file",
		"generate_image",
		"get_answer_from_knowledgebase",
		"internet_search",
		"open_browser",
		"query_stock_price",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tool set mismatch at %d: %q vs %q", i, got[i], want[i])
		}
	}
}

func TestRegisterSkipsToolsWithoutDeps(t *testing.T) {
	reg := tools.NewRegistry()
	if err := Register(reg, Deps{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, name := range []string{"query_stock_price", "internet_search", "generate_image"} {
		if _, ok := reg.Lookup(name); ok {
			t.Fatalf("%s registered without its provider", name)
		}
	}
	if _, ok := reg.Lookup("draw_plotly_chart"); !ok {
		t.Fatal("draw_plotly_chart needs no provider and should register")
	}
}

func TestStockPriceReturnsStubQuote(t *testing.T) {
	d := dispatcherWith(t, fullDeps(t))
	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "query_stock_price",
		Arguments: `{"ticker":"AAPL"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(res.Content, `"price":"150.00"`) {
		t.Fatalf("expected formatted price in content: %s", res.Content)
	}
	if res.Data["price"] != "150.00" {
		t.Fatalf("expected formatted price, got %+v", res.Data)
	}
}

func TestStockPriceUnknownTickerIsExecutionError(t *testing.T) {
	d := dispatcherWith(t, fullDeps(t))
	_, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "query_stock_price",
		Arguments: `{"ticker":"ZZZZ"}`,
	})
	var exec *tools.ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	var unknown *mock.UnknownSymbolError
	if !errors.As(err, &unknown) {
		t.Fatalf("provider cause lost: %v", err)
	}
}

func TestGenerateImageCarriesDisplayHint(t *testing.T) {
	d := dispatcherWith(t, fullDeps(t))
	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "generate_image",
		Arguments: `{"prompt":"a lighthouse at dusk"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Display != frames.DisplayImage {
		t.Fatalf("expected image display hint, got %q", res.Display)
	}
	if res.URL != "https://img.example/out.png" {
		t.Fatalf("unexpected url: %q", res.URL)
	}
}

func TestPlotlyChartValidatesFigure(t *testing.T) {
	d := dispatcherWith(t, fullDeps(t))
	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "draw_plotly_chart",
		Arguments: `{"message":"AAPL over 5 days","plotly_json_fig":"{\"data\":[{\"type\":\"scatter\"}]}"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Display != frames.DisplayChart {
		t.Fatalf("expected chart display hint, got %q", res.Display)
	}

	_, err = d.Dispatch(context.Background(), tools.Call{
		Name:      "draw_plotly_chart",
		Arguments: `{"message":"m","plotly_json_fig":"not json"}`,
	})
	var exec *tools.ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("expected ExecutionError for bad figure, got %v", err)
	}
}

func TestInternetSearchFormatsSources(t *testing.T) {
	deps := fullDeps(t)
	searcher := deps.Search.(*mock.Searcher)
	searcher.Result.Results = append(searcher.Result.Results,
		tavily.Result{Title: "Go history", URL: "https://go.dev/blog"})

	d := dispatcherWith(t, deps)
	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "internet_search",
		Arguments: `{"query":"when was go announced"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(res.Content, "go was announced in 2009") {
		t.Fatalf("answer missing: %s", res.Content)
	}
	if !strings.Contains(res.Content, "https://go.dev/blog") {
		t.Fatalf("source missing: %s", res.Content)
	}
}

func TestCreatePythonFileWritesToWorkspace(t *testing.T) {
	deps := fullDeps(t)
	deps.LLM = mock.NewLLM("```python\nprint('hello')\n```")
	d := dispatcherWith(t, deps)

	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "create_python_file",
		Arguments: `{"filename":"../escape/hello","description":"print hello"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(deps.WorkspaceDir, "hello.py"))
	if err != nil {
		t.Fatalf("script not confined to workspace: %v", err)
	}
	if string(raw) != "print('hello')" {
		t.Fatalf("code fences not stripped: %q", raw)
	}
	if res.Data["filename"] != "hello.py" {
		t.Fatalf("unexpected data: %+v", res.Data)
	}
}

func TestExecutePythonFileDisabledByDefault(t *testing.T) {
	deps := fullDeps(t)
	deps.AllowExec = false
	d := dispatcherWith(t, deps)
	_, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "execute_python_file",
		Arguments: `{"filename":"anything.py"}`,
	})
	var exec *tools.ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled message, got %v", err)
	}
}

func TestExecutePythonFileRunsScript(t *testing.T) {
	deps := fullDeps(t)
	if err := os.WriteFile(filepath.Join(deps.WorkspaceDir, "run.py"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// PythonBin is echo, so the output is the script name.
	d := dispatcherWith(t, deps)
	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "execute_python_file",
		Arguments: `{"filename":"run.py"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if strings.TrimSpace(res.Content) != "run.py" {
		t.Fatalf("unexpected output: %q", res.Content)
	}
}

func TestOpenBrowserRejectsNonHTTP(t *testing.T) {
	var opened string
	deps := fullDeps(t)
	deps.OpenURL = func(_ context.Context, url string) error {
		opened = url
		return nil
	}
	d := dispatcherWith(t, deps)

	if _, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "open_browser",
		Arguments: `{"url":"file:///etc/passwd"}`,
	}); err == nil {
		t.Fatal("expected file scheme to be rejected")
	}
	if opened != "" {
		t.Fatalf("opener ran for rejected url: %q", opened)
	}

	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "open_browser",
		Arguments: `{"url":"https://example.com/docs"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if opened != "https://example.com/docs" || res.URL != opened {
		t.Fatalf("opener mismatch: %q vs %q", opened, res.URL)
	}
}

func TestKnowledgebaseGroundsAnswerInCorpus(t *testing.T) {
	deps := fullDeps(t)
	adapter := deps.LLM.(*mock.LLM)
	d := dispatcherWith(t, deps)

	res, err := d.Dispatch(context.Background(), tools.Call{
		Name:      "get_answer_from_knowledgebase",
		Arguments: `{"question":"what methodology does the dissertation use"}`,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Content != "drafted text" {
		t.Fatalf("unexpected answer: %q", res.Content)
	}
	if adapter.CallCount() != 1 {
		t.Fatalf("expected one LLM call, got %d", adapter.CallCount())
	}
	prompt, _ := adapter.Calls[0].Messages[1]["content"].(string)
	if !strings.Contains(prompt, "mixed methods design") {
		t.Fatalf("retrieved context missing from prompt: %s", prompt)
	}
}
