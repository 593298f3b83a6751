package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type AlertID string

// NewAlertID generates a new unique AlertID
func NewAlertID() AlertID {
	return AlertID(uuid.New().String())
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Validate checks if the severity is valid
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return nil
	default:
		return goerr.New("invalid severity", goerr.V("severity", s))
	}
}

// Alert is a proactive notification raised by an agent monitor cycle.
type Alert struct {
	ID          AlertID
	Type        string
	Severity    Severity
	Message     string
	Timestamp   time.Time
	RelatedDocs []DocumentID
}

// DedupKey identifies an unchanged alert condition across monitor
// cycles: same type over the same set of related documents.
func (a *Alert) DedupKey() string {
	ids := make([]string, 0, len(a.RelatedDocs))
	for _, id := range a.RelatedDocs {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return a.Type + "|" + strings.Join(ids, ",")
}
