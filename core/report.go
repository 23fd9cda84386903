package core

import "sort"

// Report is the ordered result of a directory walk: one outcome per visited
// file, in traversal order.
type Report struct {
	Root     string     `json:"root"`
	Outcomes []*Outcome `json:"outcomes"`
}

// NewReport returns an empty report for root.
func NewReport(root string) *Report {
	return &Report{Root: root}
}

// Add appends an outcome.
func (r *Report) Add(o *Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Len returns the number of outcomes.
func (r *Report) Len() int { return len(r.Outcomes) }

// Counts returns the number of outcomes per status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Failed returns the outcomes that carry no usable result.
func (r *Report) Failed() []*Outcome {
	var failed []*Outcome
	for _, o := range r.Outcomes {
		if !o.Usable() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Tags returns the sorted set of metadata keys present in the report.
func (r *Report) Tags() []string {
	seen := make(map[string]struct{})
	for _, o := range r.Outcomes {
		if o.Metadata == nil {
			continue
		}
		for _, f := range o.Metadata.Fields {
			seen[f.Key] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for k := range seen {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return tags
}

// TagMatch is one file carrying a given tag.
type TagMatch struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// FilterByTag returns every file whose metadata carries key, in report order.
func (r *Report) FilterByTag(key string) []TagMatch {
	var matches []TagMatch
	for _, o := range r.Outcomes {
		if o.Metadata == nil {
			continue
		}
		if v, ok := o.Metadata.Get(key); ok {
			matches = append(matches, TagMatch{Path: o.Path, Value: v})
		}
	}
	return matches
}
