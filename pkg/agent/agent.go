// Package agent implements department-scoped knowledge agents. Each
// agent answers questions grounded in retrieved documents and runs
// periodic monitor rules that raise alerts on knowledge drift.
package agent

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/futureready/retain/pkg/adapter"
	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/store"
	"github.com/futureready/retain/pkg/usecase/search"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/query.md
var queryPromptRaw string

var queryPrompt = template.Must(template.New("query").Parse(queryPromptRaw))

// Agent is one department-scoped knowledge agent.
type Agent interface {
	Name() string
	Department() model.Department
	Query(ctx context.Context, question string) (*model.AgentResponse, error)
	Monitor(ctx context.Context) ([]*model.Alert, error)
}

// Profile is the shared agent implementation. Department constructors
// configure it with their own prompt and monitor rules.
type Profile struct {
	name         string
	department   model.Department
	systemPrompt string
	resolver     *search.Resolver
	provider     adapter.Provider
	store        *store.Store

	topK          int
	policyWindow  time.Duration
	watchTags     []string
	localFallback bool
	now           func() time.Time
}

// ProfileOption is a functional option for Profile
type ProfileOption func(*Profile)

// WithTopK sets how many documents ground one answer.
func WithTopK(k int) ProfileOption {
	return func(p *Profile) {
		p.topK = k
	}
}

// WithPolicyWindow sets the staleness window of the monitor.
func WithPolicyWindow(d time.Duration) ProfileOption {
	return func(p *Profile) {
		p.policyWindow = d
	}
}

// WithWatchTags sets the tags whose updates the monitor reports.
func WithWatchTags(tags ...string) ProfileOption {
	return func(p *Profile) {
		p.watchTags = tags
	}
}

// WithLocalFallback lets the agent answer without a generation
// provider by listing the business context of the retrieved documents.
// The fallback confidence is fixed and deliberately modest.
func WithLocalFallback() ProfileOption {
	return func(p *Profile) {
		p.localFallback = true
	}
}

// WithClock injects the time source used by monitor rules.
func WithClock(now func() time.Time) ProfileOption {
	return func(p *Profile) {
		p.now = now
	}
}

// NewProfile creates an agent profile.
func NewProfile(name string, dept model.Department, systemPrompt string, resolver *search.Resolver, provider adapter.Provider, s *store.Store, opts ...ProfileOption) *Profile {
	p := &Profile{
		name:         name,
		department:   dept,
		systemPrompt: systemPrompt,
		resolver:     resolver,
		provider:     provider,
		store:        s,
		topK:         5,
		policyWindow: 30 * 24 * time.Hour,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Profile) Name() string                 { return p.name }
func (p *Profile) Department() model.Department { return p.department }

type promptDoc struct {
	DocumentID string
	Uploader   string
	UploadTime string
	Context    string
	Body       string
}

type promptData struct {
	System    string
	Question  string
	Documents []promptDoc
}

// Query answers a question grounded in the department's documents.
// Provider failures propagate as ErrProvider; the agent never invents
// an answer on its own.
func (p *Profile) Query(ctx context.Context, question string) (*model.AgentResponse, error) {
	results, err := p.resolver.Search(ctx, model.SearchQuery{
		Query:      question,
		Department: p.department,
		Limit:      p.topK,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "retrieval failed", goerr.V("agent", p.name))
	}

	data := promptData{
		System:   p.systemPrompt,
		Question: question,
	}
	sources := make([]model.DocumentID, 0, len(results))
	for _, hit := range results {
		v, err := p.store.Get(ctx, hit.DocumentID, hit.VersionID)
		if err != nil {
			return nil, err
		}
		body, err := p.store.Body(ctx, v)
		if err != nil {
			return nil, err
		}

		sources = append(sources, hit.DocumentID)
		data.Documents = append(data.Documents, promptDoc{
			DocumentID: string(hit.DocumentID),
			Uploader:   v.Metadata.Uploader,
			UploadTime: v.UploadTime.Format(time.RFC3339),
			Context:    v.Metadata.BusinessContext,
			Body:       string(body),
		})
	}

	if p.provider == nil {
		if !p.localFallback {
			return nil, goerr.Wrap(model.ErrProvider, "no generation provider configured", goerr.V("agent", p.name))
		}
		return p.localAnswer(question, data.Documents, sources), nil
	}

	var buf bytes.Buffer
	if err := queryPrompt.Execute(&buf, data); err != nil {
		return nil, goerr.Wrap(err, "failed to render prompt")
	}

	gen, err := p.provider.Generate(ctx, buf.String())
	if err != nil {
		return nil, err
	}

	return &model.AgentResponse{
		Answer:     gen.Text,
		Sources:    sources,
		Confidence: gen.Confidence,
	}, nil
}

const localFallbackConfidence = 0.6

func (p *Profile) localAnswer(question string, docs []promptDoc, sources []model.DocumentID) *model.AgentResponse {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "No generation backend is configured. Knowledge on record for %q:\n", question)
	for i, d := range docs {
		fmt.Fprintf(&buf, "%d. [%s] %s\n", i+1, d.DocumentID, d.Context)
	}
	if len(docs) == 0 {
		buf.WriteString("No matching documents were found.\n")
	}
	return &model.AgentResponse{
		Answer:     buf.String(),
		Sources:    sources,
		Confidence: localFallbackConfidence,
	}
}

// Monitor evaluates the agent's drift rules against the current
// knowledge state and returns candidate alerts. Deduplication happens
// downstream in the alert engine.
func (p *Profile) Monitor(ctx context.Context) ([]*model.Alert, error) {
	now := p.now().UTC()
	tidx := p.store.Temporal()

	var stale []model.DocumentID
	var updated []model.DocumentID
	var recent []model.DocumentID

	for _, id := range tidx.Documents() {
		head, err := tidx.Latest(id)
		if err != nil || head.Tombstone {
			continue
		}
		if head.Metadata.Department != p.department {
			continue
		}

		age := now.Sub(head.UploadTime)
		if age > p.policyWindow {
			stale = append(stale, id)
		} else if p.watchesAny(head.Metadata.Tags) {
			if head.Seq > 1 {
				updated = append(updated, id)
			} else {
				recent = append(recent, id)
			}
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	sort.Slice(updated, func(i, j int) bool { return updated[i] < updated[j] })
	sort.Slice(recent, func(i, j int) bool { return recent[i] < recent[j] })

	var alerts []*model.Alert
	if len(stale) > 0 {
		alerts = append(alerts, &model.Alert{
			ID:       model.NewAlertID(),
			Type:     "stale_policy",
			Severity: model.SeverityMedium,
			Message: fmt.Sprintf("%d %s document(s) not updated within %s",
				len(stale), p.department, p.policyWindow),
			Timestamp:   now,
			RelatedDocs: stale,
		})
	}
	if len(updated) > 0 {
		alerts = append(alerts, &model.Alert{
			ID:       model.NewAlertID(),
			Type:     "watched_tag_update",
			Severity: model.SeverityHigh,
			Message: fmt.Sprintf("%d watched %s document(s) were revised recently",
				len(updated), p.department),
			Timestamp:   now,
			RelatedDocs: updated,
		})
	}
	if len(recent) > 0 {
		alerts = append(alerts, &model.Alert{
			ID:       model.NewAlertID(),
			Type:     "recent_policy_upload",
			Severity: model.SeverityMedium,
			Message: fmt.Sprintf("%d watched %s document(s) were uploaded within %s",
				len(recent), p.department, p.policyWindow),
			Timestamp:   now,
			RelatedDocs: recent,
		})
	}
	return alerts, nil
}

func (p *Profile) watchesAny(tags []string) bool {
	for _, watched := range p.watchTags {
		for _, tag := range tags {
			if tag == watched {
				return true
			}
		}
	}
	return false
}

// Runtime holds the registered agents and routes queries and monitor
// sweeps to them.
type Runtime struct {
	agents map[string]Agent
	order  []string
}

// NewRuntime creates a runtime with the given agents.
func NewRuntime(agents ...Agent) *Runtime {
	r := &Runtime{
		agents: make(map[string]Agent),
	}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// Register adds an agent. Registering the same name twice replaces the
// earlier agent.
func (r *Runtime) Register(a Agent) {
	if _, ok := r.agents[a.Name()]; !ok {
		r.order = append(r.order, a.Name())
	}
	r.agents[a.Name()] = a
}

// Get returns the named agent.
func (r *Runtime) Get(name string) (Agent, error) {
	a, ok := r.agents[name]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "unknown agent", goerr.V("agent", name))
	}
	return a, nil
}

// Names lists registered agent names in registration order.
func (r *Runtime) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// MonitorAll runs every agent's monitor and concatenates the candidate
// alerts in registration order.
func (r *Runtime) MonitorAll(ctx context.Context) ([]*model.Alert, error) {
	var alerts []*model.Alert
	for _, name := range r.order {
		batch, err := r.agents[name].Monitor(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "monitor failed", goerr.V("agent", name))
		}
		alerts = append(alerts, batch...)
	}
	return alerts, nil
}
