package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/futureready/retain/pkg/agent"
	"github.com/futureready/retain/pkg/index"
	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/store"
	"github.com/futureready/retain/pkg/usecase/search"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// mockProvider records the prompt and returns a canned generation.
type mockProvider struct {
	prompt string
	gen    *model.Generation
	err    error
}

func (m *mockProvider) Generate(ctx context.Context, prompt string) (*model.Generation, error) {
	m.prompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	return m.gen, nil
}

// fixedSemantic returns the same candidates for every query.
type fixedSemantic struct {
	candidates []index.Candidate
}

func (f *fixedSemantic) Upsert(ctx context.Context, entry index.Entry) error { return nil }

func (f *fixedSemantic) Query(ctx context.Context, text string, k int) ([]index.Candidate, error) {
	return f.candidates, nil
}

var testNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func seedDoc(t *testing.T, s *store.Store, docID string, dept model.Department, body string, tags ...string) *model.DocumentVersion {
	t.Helper()
	meta, err := model.NewMetadata("ellen@futureready.example", dept,
		"Keeps institutional knowledge about "+docID, tags)
	gt.NoError(t, err)
	v, err := s.Put(context.Background(), model.DocumentID(docID), []byte(body), meta)
	gt.NoError(t, err)
	return v
}

func newTestStore(t *testing.T, clock func() time.Time) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), store.WithClock(clock))
	gt.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAgentQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func() time.Time { return testNow })

	seedDoc(t, s, "doc-msa", model.DepartmentLegal, "termination requires 30 days notice", "contract")

	sem := &fixedSemantic{candidates: []index.Candidate{
		{DocumentID: "doc-msa", Score: 0.9},
	}}
	resolver := search.New(s, sem, nil, search.WithClock(func() time.Time { return testNow }))

	provider := &mockProvider{gen: &model.Generation{Text: "30 days notice is required.", Confidence: 0.85}}
	legal := agent.NewLegal(resolver, provider, s)

	gt.Equal(t, legal.Name(), "legal")
	gt.Equal(t, legal.Department(), model.DepartmentLegal)

	resp, err := legal.Query(ctx, "what is the termination notice period?")
	gt.NoError(t, err)
	gt.Equal(t, resp.Answer, "30 days notice is required.")
	gt.Equal(t, resp.Confidence, 0.85)
	gt.Equal(t, resp.Sources, []model.DocumentID{"doc-msa"})

	// The prompt carries the retrieved document and its provenance.
	gt.S(t, provider.prompt).Contains("termination requires 30 days notice")
	gt.S(t, provider.prompt).Contains("ellen@futureready.example")
	gt.S(t, provider.prompt).Contains("what is the termination notice period?")
}

func TestAgentQueryProviderFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func() time.Time { return testNow })

	seedDoc(t, s, "doc-x", model.DepartmentHR, "policy text here", "policy")

	sem := &fixedSemantic{candidates: []index.Candidate{
		{DocumentID: "doc-x", Score: 0.5},
	}}
	resolver := search.New(s, sem, nil, search.WithClock(func() time.Time { return testNow }))

	provider := &mockProvider{err: goerr.Wrap(model.ErrProvider, "backend unavailable")}
	hr := agent.NewHR(resolver, provider, s)

	_, err := hr.Query(ctx, "how many vacation days do I get?")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrProvider))
}

func TestAgentQueryLocalFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func() time.Time { return testNow })

	seedDoc(t, s, "doc-handbook", model.DepartmentHR, "handbook body", "policy")

	sem := &fixedSemantic{candidates: []index.Candidate{
		{DocumentID: "doc-handbook", Score: 0.7},
	}}
	resolver := search.New(s, sem, nil, search.WithClock(func() time.Time { return testNow }))

	// Without the fallback a missing provider is a provider error.
	hr := agent.NewHR(resolver, nil, s)
	_, err := hr.Query(ctx, "where is the handbook?")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrProvider))

	hr = agent.NewHR(resolver, nil, s, agent.WithLocalFallback())
	resp, err := hr.Query(ctx, "where is the handbook?")
	gt.NoError(t, err)
	gt.S(t, resp.Answer).Contains("doc-handbook")
	gt.Equal(t, resp.Confidence, 0.6)
	gt.Equal(t, resp.Sources, []model.DocumentID{"doc-handbook"})
}

func TestAgentQueryScopedToDepartment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func() time.Time { return testNow })

	seedDoc(t, s, "doc-legal", model.DepartmentLegal, "legal content", "contract")
	seedDoc(t, s, "doc-pr", model.DepartmentPR, "pr content", "press")

	sem := &fixedSemantic{candidates: []index.Candidate{
		{DocumentID: "doc-legal", Score: 0.9},
		{DocumentID: "doc-pr", Score: 0.9},
	}}
	resolver := search.New(s, sem, nil, search.WithClock(func() time.Time { return testNow }))

	provider := &mockProvider{gen: &model.Generation{Text: "answer", Confidence: 0.5}}
	pr := agent.NewPR(resolver, provider, s)

	resp, err := pr.Query(ctx, "what did we announce?")
	gt.NoError(t, err)
	gt.Equal(t, resp.Sources, []model.DocumentID{"doc-pr"})
}

func TestMonitorStalePolicy(t *testing.T) {
	ctx := context.Background()

	at := testNow.Add(-60 * 24 * time.Hour)
	s := newTestStore(t, func() time.Time { return at })

	// One stale legal document, one fresh, one from another department.
	seedDoc(t, s, "doc-stale", model.DepartmentLegal, "old guidance", "contract")
	at = testNow.Add(-2 * 24 * time.Hour)
	seedDoc(t, s, "doc-fresh", model.DepartmentLegal, "new guidance")
	seedDoc(t, s, "doc-hr", model.DepartmentHR, "hr doc")

	legal := agent.NewLegal(nil, nil, s, agent.WithClock(func() time.Time { return testNow }))

	alerts, err := legal.Monitor(ctx)
	gt.NoError(t, err)
	gt.A(t, alerts).Length(1)
	gt.Equal(t, alerts[0].Type, "stale_policy")
	gt.Equal(t, alerts[0].Severity, model.SeverityMedium)
	gt.Equal(t, alerts[0].RelatedDocs, []model.DocumentID{"doc-stale"})
}

func TestMonitorWatchedTagUpdate(t *testing.T) {
	ctx := context.Background()

	at := testNow.Add(-90 * 24 * time.Hour)
	s := newTestStore(t, func() time.Time { return at })

	// A watched contract revised within the window.
	seedDoc(t, s, "doc-contract", model.DepartmentLegal, "original terms", "contract")
	at = testNow.Add(-3 * 24 * time.Hour)
	seedDoc(t, s, "doc-contract", model.DepartmentLegal, "revised terms", "contract")

	legal := agent.NewLegal(nil, nil, s, agent.WithClock(func() time.Time { return testNow }))

	alerts, err := legal.Monitor(ctx)
	gt.NoError(t, err)
	gt.A(t, alerts).Length(1)
	gt.Equal(t, alerts[0].Type, "watched_tag_update")
	gt.Equal(t, alerts[0].Severity, model.SeverityHigh)
	gt.Equal(t, alerts[0].RelatedDocs, []model.DocumentID{"doc-contract"})
}

func TestMonitorRecentWatchedUpload(t *testing.T) {
	ctx := context.Background()

	// A brand-new watched document inside the window raises a medium
	// alert even though it has no prior versions.
	at := testNow.Add(-5 * 24 * time.Hour)
	s := newTestStore(t, func() time.Time { return at })
	seedDoc(t, s, "doc-new-contract", model.DepartmentLegal, "initial terms", "contract")

	legal := agent.NewLegal(nil, nil, s, agent.WithClock(func() time.Time { return testNow }))

	alerts, err := legal.Monitor(ctx)
	gt.NoError(t, err)
	gt.A(t, alerts).Length(1)
	gt.Equal(t, alerts[0].Type, "recent_policy_upload")
	gt.Equal(t, alerts[0].Severity, model.SeverityMedium)
	gt.Equal(t, alerts[0].RelatedDocs, []model.DocumentID{"doc-new-contract"})
}

func TestRuntime(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func() time.Time { return testNow })

	legal := agent.NewLegal(nil, nil, s, agent.WithClock(func() time.Time { return testNow }))
	hr := agent.NewHR(nil, nil, s, agent.WithClock(func() time.Time { return testNow }))
	rt := agent.NewRuntime(legal, hr)

	gt.Equal(t, rt.Names(), []string{"legal", "hr"})

	got, err := rt.Get("legal")
	gt.NoError(t, err)
	gt.Equal(t, got.Name(), "legal")

	_, err = rt.Get("finance")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNotFound))

	alerts, err := rt.MonitorAll(ctx)
	gt.NoError(t, err)
	gt.A(t, alerts).Length(0)
}
