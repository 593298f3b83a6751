package agent

import (
	_ "embed"

	"github.com/futureready/retain/pkg/adapter"
	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/store"
	"github.com/futureready/retain/pkg/usecase/search"
)

//go:embed prompt/legal.md
var legalPromptRaw string

//go:embed prompt/hr.md
var hrPromptRaw string

//go:embed prompt/pr.md
var prPromptRaw string

// NewLegal creates the legal agent. Its monitor flags contract and
// compliance documents that went stale or were recently revised.
func NewLegal(resolver *search.Resolver, provider adapter.Provider, s *store.Store, opts ...ProfileOption) *Profile {
	base := []ProfileOption{
		WithWatchTags("contract", "compliance"),
	}
	return NewProfile("legal", model.DepartmentLegal, legalPromptRaw,
		resolver, provider, s, append(base, opts...)...)
}

// NewHR creates the HR agent.
func NewHR(resolver *search.Resolver, provider adapter.Provider, s *store.Store, opts ...ProfileOption) *Profile {
	base := []ProfileOption{
		WithWatchTags("policy", "benefits"),
	}
	return NewProfile("hr", model.DepartmentHR, hrPromptRaw,
		resolver, provider, s, append(base, opts...)...)
}

// NewPR creates the PR agent.
func NewPR(resolver *search.Resolver, provider adapter.Provider, s *store.Store, opts ...ProfileOption) *Profile {
	base := []ProfileOption{
		WithWatchTags("messaging", "press"),
	}
	return NewProfile("pr", model.DepartmentPR, prPromptRaw,
		resolver, provider, s, append(base, opts...)...)
}
