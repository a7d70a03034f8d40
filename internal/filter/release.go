package filter

import "sort"

// Release is a selected file: its decoded filename and fetch URL.
type Release struct {
	Filename string `json:"filename" yaml:"filename"`
	URL      string `json:"url" yaml:"url"`
}

// Title returns the canonical title derived from Filename.
func (r Release) Title() string {
	title, _, _ := SplitTitleAndRevision(r.Filename)
	return title
}

// Revision returns the revision derived from Filename.
func (r Release) Revision() (int, bool) {
	_, rev, ok := SplitTitleAndRevision(r.Filename)
	return rev, ok
}

// rank orders revisions so an unversioned release loses to any versioned one.
func (r Release) rank() int {
	if rev, ok := r.Revision(); ok {
		return rev
	}
	return -1
}

// Select applies the revision policy. Without LatestRevision the input is
// returned as is.
func (p Policy) Select(releases []Release) []Release {
	if !p.LatestRevision {
		return releases
	}
	return SelectLatest(releases)
}

// SelectLatest keeps one release per canonical title: the one with the
// highest revision, the earliest in input order on ties. Output is ordered
// by title.
func SelectLatest(releases []Release) []Release {
	groups := make(map[string][]Release)
	for _, r := range releases {
		title := r.Title()
		groups[title] = append(groups[title], r)
	}

	titles := make([]string, 0, len(groups))
	for title := range groups {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	out := make([]Release, 0, len(titles))
	for _, title := range titles {
		group := groups[title]
		best := group[0]
		bestRank := best.rank()
		for _, r := range group[1:] {
			if rank := r.rank(); rank > bestRank {
				best, bestRank = r, rank
			}
		}
		out = append(out, best)
	}
	return out
}
