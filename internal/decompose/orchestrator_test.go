package decompose

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"goalsplit-backend/internal/ai"
	"goalsplit-backend/internal/config"
	"goalsplit-backend/internal/logging"
)

type fakeProvider struct {
	name  string
	res   ai.Result
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Decompose(ctx context.Context, goal string) (ai.Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		// deliberately ignores ctx to simulate a hung client
		time.Sleep(f.delay)
	}
	return f.res, f.err
}

func ok(name string, subgoals ...string) *fakeProvider {
	return &fakeProvider{name: name, res: ai.Result{
		Subgoals: subgoals,
		Meta:     ai.Meta{Model: name + "-model", Source: name},
	}}
}

func failing(name string) *fakeProvider {
	return &fakeProvider{name: name, err: &ai.ProviderError{Provider: name, Op: "chat", Err: errors.New("boom")}}
}

func TestDecompose_FirstSuccessWins(t *testing.T) {
	a := ok("a", "a1", "a2")
	b := ok("b", "b1")
	o := New(logging.Discard(), time.Second, a, b)

	res := o.Decompose(context.Background(), "Learn Go")

	if !reflect.DeepEqual(res.Subgoals, []string{"a1", "a2"}) {
		t.Errorf("Subgoals = %q", res.Subgoals)
	}
	if res.Meta.Source != "a" || res.Meta.Model != "a-model" {
		t.Errorf("Meta = %+v", res.Meta)
	}
	if b.calls.Load() != 0 {
		t.Error("second provider should not be called after a success")
	}
}

func TestDecompose_FallsThroughInOrder(t *testing.T) {
	a := failing("a")
	b := ok("b", "b1")
	o := New(logging.Discard(), time.Second, a, b)

	res := o.Decompose(context.Background(), "goal")

	if res.Meta.Source != "b" {
		t.Errorf("Source = %q, want b", res.Meta.Source)
	}
	if res.Meta.Fallback != 1 {
		t.Errorf("Fallback = %d, want 1", res.Meta.Fallback)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each (no retries)", a.calls.Load(), b.calls.Load())
	}
}

func TestDecompose_AllFailUsesHeuristic(t *testing.T) {
	o := New(logging.Discard(), time.Second, failing("a"), failing("b"))

	res := o.Decompose(context.Background(), "Learn Spanish, build a portfolio")

	if res.Meta.Source != ai.HeuristicName {
		t.Errorf("Source = %q, want %q", res.Meta.Source, ai.HeuristicName)
	}
	if res.Meta.Fallback != 2 {
		t.Errorf("Fallback = %d, want 2", res.Meta.Fallback)
	}
	if len(res.Subgoals) == 0 {
		t.Fatal("heuristic returned nothing")
	}
}

func TestDecompose_NoProvidersUsesHeuristic(t *testing.T) {
	res := New(logging.Discard(), 0).Decompose(context.Background(), "Run a marathon")
	if res.Meta.Source != ai.HeuristicName {
		t.Errorf("Source = %q", res.Meta.Source)
	}
	if len(res.Subgoals) != 4 {
		t.Errorf("len = %d, want 4 generic steps", len(res.Subgoals))
	}
}

func TestDecompose_EmptyResultIsFailure(t *testing.T) {
	empty := ok("empty", "", "   ")
	o := New(logging.Discard(), time.Second, empty)

	res := o.Decompose(context.Background(), "goal")
	if res.Meta.Source != ai.HeuristicName {
		t.Errorf("Source = %q, want heuristic", res.Meta.Source)
	}
}

func TestDecompose_NormalizesProviderOutput(t *testing.T) {
	items := []string{" a "}
	for i := 0; i < 20; i++ {
		items = append(items, "x")
	}
	o := New(logging.Discard(), time.Second, ok("p", items...))

	res := o.Decompose(context.Background(), "goal")
	if len(res.Subgoals) != ai.MaxProviderSubgoals {
		t.Errorf("len = %d, want %d", len(res.Subgoals), ai.MaxProviderSubgoals)
	}
	if res.Subgoals[0] != "a" {
		t.Errorf("first = %q, want trimmed", res.Subgoals[0])
	}
}

func TestDecompose_HungProviderTimesOut(t *testing.T) {
	hung := ok("hung", "never")
	hung.delay = 2 * time.Second
	o := New(logging.Discard(), 50*time.Millisecond, hung, ok("next", "n1"))

	start := time.Now()
	res := o.Decompose(context.Background(), "goal")

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("took %v, timeout not enforced", elapsed)
	}
	if res.Meta.Source != "next" {
		t.Errorf("Source = %q, want next", res.Meta.Source)
	}
}

func TestDecompose_EmptyArrayFromServerFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"subgoals\": []}"}}]}`))
	}))
	defer srv.Close()

	o := New(logging.Discard(), time.Second, ai.NewOpenAI("sk-test", "m", srv.URL, time.Second))
	res := o.Decompose(context.Background(), "Learn Go")

	if res.Meta.Source != ai.HeuristicName {
		t.Errorf("Source = %q, want heuristic", res.Meta.Source)
	}
}

func TestDecompose_PropertyNonEmpty(t *testing.T) {
	o := New(logging.Discard(), time.Second, failing("a"))
	goals := []string{"a", "Learn", "build, ship, repeat", "найти работу", "&", strings.Repeat("z", 5000)}
	for _, g := range goals {
		res := o.Decompose(context.Background(), g)
		if len(res.Subgoals) == 0 || len(res.Subgoals) > ai.MaxProviderSubgoals {
			t.Errorf("Decompose(%q) len = %d", g, len(res.Subgoals))
		}
		for _, s := range res.Subgoals {
			if strings.TrimSpace(s) == "" {
				t.Errorf("Decompose(%q) returned blank sub-goal", g)
			}
		}
	}
}

func TestFromConfig_OrderAndEnablement(t *testing.T) {
	cfg := &config.Config{
		ProviderOrder:   []string{"anthropic", "openai", "huggingface"},
		ProviderTimeout: time.Second,
		OpenAI:          config.ProviderConfig{Enabled: true, APIKey: "k", Model: "m"},
		HuggingFace:     config.ProviderConfig{Enabled: false},
		Anthropic:       config.ProviderConfig{Enabled: true, APIKey: "k", Model: "c"},
	}

	o := FromConfig(cfg, logging.Discard())
	if got := o.Providers(); !reflect.DeepEqual(got, []string{"anthropic", "openai"}) {
		t.Errorf("Providers() = %v", got)
	}
}

func TestFromConfig_NothingEnabled(t *testing.T) {
	cfg := &config.Config{ProviderOrder: []string{"openai"}, ProviderTimeout: time.Second}
	o := FromConfig(cfg, logging.Discard())
	if len(o.Providers()) != 0 {
		t.Errorf("Providers() = %v, want none", o.Providers())
	}
	if res := o.Decompose(context.Background(), "goal"); res.Meta.Source != ai.HeuristicName {
		t.Errorf("Source = %q", res.Meta.Source)
	}
}
