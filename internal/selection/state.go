package selection

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"thumbcrafter/internal/candidates"
)

// Tier names, used in candidate IDs and metric labels.
const (
	TierNumeric = "numeric"
	TierKeyword = "keyword"
	TierSingle  = "single"
	TierRandom  = "random"
)

// State is the per-run selection state. Tier functions take a State and
// return the next one; a State value is never modified after it is
// returned.
type State struct {
	// Claimed holds pool indices claimed by the numeric and keyword tiers.
	Claimed map[int]struct{}
	// Produced holds the index-set keys of every composite emitted.
	Produced map[string]struct{}
	// NextID is the last candidate sequence number handed out.
	NextID     int
	Candidates []candidates.Candidate
}

// NewState returns an empty State.
func NewState() State {
	return State{
		Claimed:  map[int]struct{}{},
		Produced: map[string]struct{}{},
	}
}

// IsClaimed reports whether index was claimed by tier 1 or 2.
func (st State) IsClaimed(index int) bool {
	_, ok := st.Claimed[index]
	return ok
}

// HasProduced reports whether a composite of exactly these indices exists.
func (st State) HasProduced(indices []int) bool {
	_, ok := st.Produced[setKey(indices)]
	return ok
}

// Full reports whether the candidate count reached limit.
func (st State) Full(limit int) bool {
	return len(st.Candidates) >= limit
}

// emit returns a new State with c appended under the next ID for tier.
// Composite sources are recorded as produced; when claim is set they are
// also claimed.
func (st State) emit(tier string, c candidates.Candidate, claim bool) State {
	next := State{
		Claimed:    maps.Clone(st.Claimed),
		Produced:   maps.Clone(st.Produced),
		NextID:     st.NextID + 1,
		Candidates: slices.Clip(st.Candidates),
	}

	c.ID = fmt.Sprintf("%s-%d", tier, next.NextID)
	next.Candidates = append(next.Candidates, c)

	if c.Kind == candidates.CompositeImage {
		next.Produced[setKey(c.Sources)] = struct{}{}
	}
	if claim {
		for _, idx := range c.Sources {
			next.Claimed[idx] = struct{}{}
		}
	}
	return next
}

// setKey identifies an unordered index set.
func setKey(indices []int) string {
	sorted := slices.Sorted(slices.Values(indices))
	parts := make([]string, len(sorted))
	for i, idx := range sorted {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}
