package domain

import (
	"encoding/json"
	"time"

	"github.com/hamed0406/jenkinsprobe/internal/hosts"
)

// Report keys, kept identical to the legacy JSON output.
const (
	UnsecuredKey = "Unsecured Jenkins"
	SecuredKey   = "Secured Jenkins"
)

// Partition splits a host set into hosts that served the configure page
// without auth and everything else. The two sets are disjoint and their
// union is the scanned set.
type Partition struct {
	Vulnerable hosts.Set
	Protected  hosts.Set
}

// NewPartition computes Protected as all minus vulnerable. Hosts in
// vulnerable that are not part of all are ignored.
func NewPartition(all, vulnerable hosts.Set) Partition {
	p := Partition{
		Vulnerable: make(hosts.Set, len(vulnerable)),
		Protected:  make(hosts.Set, len(all)),
	}
	for h := range all {
		if vulnerable.Contains(h) {
			p.Vulnerable[h] = struct{}{}
			continue
		}
		p.Protected[h] = struct{}{}
	}
	return p
}

func (p Partition) Total() int { return p.Vulnerable.Len() + p.Protected.Len() }

// Groups returns the report map with sorted, non-nil host lists.
func (p Partition) Groups() map[string][]string {
	return map[string][]string{
		UnsecuredKey: p.Vulnerable.Sorted(),
		SecuredKey:   p.Protected.Sorted(),
	}
}

func (p Partition) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Groups())
}

func (p *Partition) UnmarshalJSON(b []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	p.Vulnerable = hosts.FromLines(m[UnsecuredKey])
	p.Protected = hosts.FromLines(m[SecuredKey])
	return nil
}

type ScanID string

// Report is one finished scan as served by the API.
type Report struct {
	ID         ScanID
	StartedAt  time.Time
	FinishedAt time.Time
	Partition  Partition
}

func (r Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

type reportJSON struct {
	ID         ScanID    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Unsecured  []string  `json:"Unsecured Jenkins"`
	Secured    []string  `json:"Secured Jenkins"`
}

func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
		Unsecured:  r.Partition.Vulnerable.Sorted(),
		Secured:    r.Partition.Protected.Sorted(),
	})
}

func (r *Report) UnmarshalJSON(b []byte) error {
	var v reportJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	r.ID = v.ID
	r.StartedAt = v.StartedAt
	r.FinishedAt = v.FinishedAt
	r.Partition = Partition{
		Vulnerable: hosts.FromLines(v.Unsecured),
		Protected:  hosts.FromLines(v.Secured),
	}
	return nil
}

// ReportSummary is the listing row for a stored report.
type ReportSummary struct {
	ID        ScanID    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Hosts     int       `json:"hosts"`
	Unsecured int       `json:"unsecured"`
}

func (r Report) Summary() ReportSummary {
	return ReportSummary{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Hosts:     r.Partition.Total(),
		Unsecured: r.Partition.Vulnerable.Len(),
	}
}
