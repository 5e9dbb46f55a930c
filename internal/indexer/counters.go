package indexer

import (
	"github.com/fyrsmithlabs/projindex/internal/linear"
	"github.com/fyrsmithlabs/projindex/internal/naming"
)

// Counters maps an initiative code to the highest index assigned so far.
type Counters map[string]int

// Clone returns an independent copy.
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ScanCounters returns the highest embedded index per initiative across all
// projects, whatever their state. Every initiative starts at 0.
func ScanCounters(initiatives []naming.Initiative, projects []linear.Project) Counters {
	counters := make(Counters, len(initiatives))
	for _, in := range initiatives {
		counters[in.Code] = 0
	}

	for _, p := range projects {
		for _, in := range initiatives {
			if !in.Matches(p.Name) {
				continue
			}
			if n, ok := in.ExtractIndex(p.Name); ok && n > counters[in.Code] {
				counters[in.Code] = n
			}
		}
	}
	return counters
}
