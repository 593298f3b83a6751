package alert

import (
	"context"
	"os"
	"path/filepath"

	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// TriageResult is the policy decision for one candidate alert.
type TriageResult struct {
	Action   string
	Severity string
	Note     string
}

// TriagePolicy evaluates Rego triage rules against candidate alerts.
// A nil policy (no .rego files found) accepts everything unchanged.
type TriagePolicy struct {
	query *rego.PreparedEvalQuery
}

// LoadTriagePolicy loads all Rego files from policyDir and prepares the
// data.triage query. An empty directory yields a nil policy.
func LoadTriagePolicy(ctx context.Context, policyDir string) (*TriagePolicy, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query("data.triage"))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare triage query")
	}
	return &TriagePolicy{query: &prepared}, nil
}

// Evaluate runs the triage rules on one alert.
func (p *TriagePolicy) Evaluate(ctx context.Context, a *model.Alert) (*TriageResult, error) {
	accept := &TriageResult{Action: "accept"}
	if p == nil || p.query == nil {
		return accept, nil
	}

	docs := make([]string, 0, len(a.RelatedDocs))
	for _, id := range a.RelatedDocs {
		docs = append(docs, string(id))
	}
	input := map[string]any{
		"alert": map[string]any{
			"id":           string(a.ID),
			"type":         a.Type,
			"severity":     string(a.Severity),
			"message":      a.Message,
			"related_docs": docs,
		},
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate triage policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return accept, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return accept, nil
	}
	return &TriageResult{
		Action:   getString(data, "action"),
		Severity: getString(data, "severity"),
		Note:     getString(data, "note"),
	}, nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
