package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

type DocumentID string

type VersionID string

type Department string

const (
	DepartmentLegal       Department = "legal"
	DepartmentHR          Department = "hr"
	DepartmentPR          Department = "pr"
	DepartmentFinance     Department = "finance"
	DepartmentEngineering Department = "engineering"
	DepartmentOperations  Department = "operations"
)

// Validate checks if the department is in the closed set
func (d Department) Validate() error {
	switch d {
	case DepartmentLegal, DepartmentHR, DepartmentPR, DepartmentFinance, DepartmentEngineering, DepartmentOperations:
		return nil
	default:
		return goerr.Wrap(ErrValidation, "unknown department", goerr.V("department", d))
	}
}

// minBusinessContext is the minimum length of the business context in
// runes. Whitespace-only context never passes regardless of length.
const minBusinessContext = 10

// Metadata is the mandatory provenance record attached to every
// ingested document version. Values are only built through NewMetadata,
// so a Metadata held by any downstream component is known to be valid.
type Metadata struct {
	Uploader        string     `json:"uploader"`
	Department      Department `json:"department"`
	BusinessContext string     `json:"business_context"`
	Tags            []string   `json:"tags,omitempty"`
}

// NewMetadata validates and constructs a Metadata. Construction is the
// enforcement point of the metadata gate: every failure wraps
// ErrValidation and nothing is stored.
func NewMetadata(uploader string, dept Department, businessContext string, tags []string) (Metadata, error) {
	if uploader == "" || !strings.Contains(uploader, "@") {
		return Metadata{}, goerr.Wrap(ErrValidation, "uploader must be an email address", goerr.V("uploader", uploader))
	}
	if err := dept.Validate(); err != nil {
		return Metadata{}, err
	}

	trimmed := strings.TrimSpace(businessContext)
	if trimmed == "" {
		return Metadata{}, goerr.Wrap(ErrValidation, "business_context must not be empty")
	}
	if utf8.RuneCountInString(trimmed) < minBusinessContext {
		return Metadata{}, goerr.Wrap(ErrValidation, "business_context is too short: explain why this document is retained",
			goerr.V("min_length", minBusinessContext),
			goerr.V("length", utf8.RuneCountInString(trimmed)))
	}

	normalized, err := normalizeTags(tags)
	if err != nil {
		return Metadata{}, err
	}

	return Metadata{
		Uploader:        uploader,
		Department:      dept,
		BusinessContext: trimmed,
		Tags:            normalized,
	}, nil
}

// normalizeTags lower-cases, trims, deduplicates and sorts tags so that
// the canonical serialization is independent of caller ordering.
func normalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			return nil, goerr.Wrap(ErrValidation, "tag must not be empty or whitespace")
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out, nil
}

// HasTag reports whether the metadata carries the given tag.
func (m Metadata) HasTag(tag string) bool {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	for _, t := range m.Tags {
		if t == normalized {
			return true
		}
	}
	return false
}

// CanonicalJSON returns the deterministic serialization used for
// content addressing. Tags are already sorted by construction and the
// field order is fixed by the struct definition.
func (m Metadata) CanonicalJSON() []byte {
	raw, err := json.Marshal(m)
	if err != nil {
		// Metadata is a plain value type; Marshal cannot fail on it.
		panic(err)
	}
	return raw
}

// ComputeVersionID derives the content address of a version from the
// body bytes and the canonical metadata serialization. Identical
// content and metadata always hash to the same VersionID.
func ComputeVersionID(body []byte, meta Metadata) VersionID {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte{0})
	h.Write(meta.CanonicalJSON())
	return VersionID(hex.EncodeToString(h.Sum(nil)))
}

// DocumentVersion is one immutable entry in a document's append-only
// version chain. Seq is assigned at commit and strictly increases per
// document; it breaks upload-time ties in temporal resolution.
type DocumentVersion struct {
	VersionID  VersionID  `json:"version_id"`
	DocumentID DocumentID `json:"document_id"`
	Seq        int        `json:"seq"`
	UploadTime time.Time  `json:"upload_time"`
	BodyRef    string     `json:"body_ref,omitempty"`
	Metadata   Metadata   `json:"metadata"`
	Tombstone  bool       `json:"tombstone,omitempty"`
}

// Document is the identity plus the committed version chain, ordered by
// Seq. Versions are never removed; retraction appends a tombstone.
type Document struct {
	ID       DocumentID
	Versions []*DocumentVersion
}

// Head returns the latest committed version.
func (d *Document) Head() *DocumentVersion {
	if len(d.Versions) == 0 {
		return nil
	}
	return d.Versions[len(d.Versions)-1]
}
