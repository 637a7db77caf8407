package domain

import "sort"

// NewsCluster groups near-duplicate news items into one story. UpdatedAt is
// the max PublishedAt of the members and PrimaryItem carries that timestamp.
type NewsCluster struct {
	ID          string           `json:"id"`
	PrimaryItem NormalizedItem   `json:"primaryItem"`
	Members     []NormalizedItem `json:"members"`
	UpdatedAt   int64            `json:"updatedAt"`

	SourceSet       map[string]struct{} `json:"-"`
	CanonicalURLSet map[string]struct{} `json:"-"`
	TokenSet        map[string]struct{} `json:"-"`
}

// Sources returns the distinct member sources, sorted.
func (c NewsCluster) Sources() []string {
	out := make([]string, 0, len(c.SourceSet))
	for s := range c.SourceSet {
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}

// SourceCount returns the number of distinct member sources.
func (c NewsCluster) SourceCount() int {
	return len(c.SourceSet)
}

// MapCluster is a screen-space group of map points, recomputed per draw.
type MapCluster struct {
	ID            string           `json:"id"`
	X             float64          `json:"x"`
	Y             float64          `json:"y"`
	Lat           float64          `json:"lat"`
	Lon           float64          `json:"lon"`
	Members       []NormalizedItem `json:"members"`
	DominantLayer string           `json:"dominantLayer"`
	DominantType  string           `json:"dominantType"`
	Radius        float64          `json:"radius"`
}

// MemberCount returns the number of points in the cluster.
func (c MapCluster) MemberCount() int {
	return len(c.Members)
}
