package selection

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/layout"
)

const (
	// maxKeywordWindows bounds how many token windows the keyword tier tries.
	maxKeywordWindows = 5
	// maxSingles bounds the singles tier.
	maxSingles = 4
	// maxUnproductiveDraws ends the random tier after this many draws in a
	// row that produced nothing new.
	maxUnproductiveDraws = 32
	minComposite         = 2
)

// photoRef matches "foto 3", "photo #2", "imagen 1", "img4" in a
// normalized description.
var photoRef = regexp.MustCompile(`\b(?:fotos?|photos?|imagen|image|img)\s*(?:#|n°|no\.?)?\s*(\d+)`)

// ReferencedPhotos returns the distinct 0-based indices referenced in
// description that fall within a pool of size n, in order of appearance.
func ReferencedPhotos(description string, n int) []int {
	var out []int
	seen := map[int]bool{}
	for _, m := range photoRef.FindAllStringSubmatch(Normalize(description), -1) {
		num, err := strconv.Atoi(m[1])
		if err != nil || num < 1 || num > n || seen[num-1] {
			continue
		}
		seen[num-1] = true
		out = append(out, num-1)
	}
	return out
}

// numericTier composites the photos the description names explicitly.
func (s *Selector) numericTier(ctx context.Context, req request, st State) State {
	indices := ReferencedPhotos(req.description, len(req.pool))
	if len(indices) < minComposite || len(indices) > layout.MaxImages {
		return st
	}

	preview, ok := s.composite(ctx, TierNumeric, indices)
	if !ok {
		return st
	}
	return s.add(st, TierNumeric, candidates.Candidate{
		Title:       candidates.PhotoTitle(indices),
		Description: "Combinación de las fotos mencionadas en la descripción",
		Preview:     preview,
		Kind:        candidates.CompositeImage,
		Sources:     indices,
	}, true)
}

// matchWindow greedily assigns each token to the first unclaimed image
// whose normalized name contains it. Each image matches at most once.
func matchWindow(window []string, names []string, st State) ([]int, []string) {
	var indices []int
	var matched []string
	used := map[int]bool{}
	for _, tok := range window {
		for i, name := range names {
			if used[i] || st.IsClaimed(i) || !strings.Contains(name, tok) {
				continue
			}
			used[i] = true
			indices = append(indices, i)
			matched = append(matched, tok)
			break
		}
	}
	return indices, matched
}

// keywordTier composites images whose file names match consecutive
// description keywords.
func (s *Selector) keywordTier(ctx context.Context, req request, st State) State {
	tokens := Tokenize(req.description)

	for start := 0; start < len(tokens) && start < maxKeywordWindows; start++ {
		if st.Full(s.limit) || ctx.Err() != nil {
			break
		}

		window := tokens[start:min(start+layout.MaxImages, len(tokens))]
		indices, matched := matchWindow(window, req.names, st)
		if len(indices) < minComposite || st.HasProduced(indices) {
			continue
		}

		preview, ok := s.composite(ctx, TierKeyword, indices)
		if !ok {
			continue
		}
		st = s.add(st, TierKeyword, candidates.Candidate{
			Title:       "Coincidencias: " + strings.Join(matched, ", "),
			Description: fmt.Sprintf("Fotos %s elegidas por su nombre de archivo", candidates.PhotoNumbers(indices)),
			Preview:     preview,
			Kind:        candidates.CompositeImage,
			Sources:     indices,
		}, true)
	}
	return st
}

// singlesTier offers up to four unclaimed images on their own. Singles are
// not claimed, so the random tier may still use them.
func (s *Selector) singlesTier(ctx context.Context, req request, st State) State {
	emitted := 0
	for i := range req.pool {
		if emitted >= maxSingles || st.Full(s.limit) || ctx.Err() != nil {
			break
		}
		if st.IsClaimed(i) {
			continue
		}

		images, err := s.loadAll(ctx, []int{i})
		if err != nil {
			s.log.Warn("skipping single photo %d: %v", i+1, err)
			continue
		}
		emitted++
		st = s.add(st, TierSingle, candidates.Candidate{
			Title:       candidates.PhotoTitle([]int{i}),
			Description: "Imagen original",
			Preview:     images[0],
			Kind:        candidates.SingleImage,
			Sources:     []int{i},
		}, false)
	}
	return st
}

// randomTier fills the remaining slots with random 2-4 image composites of
// images not claimed by the numeric or keyword tiers.
func (s *Selector) randomTier(ctx context.Context, req request, st State) State {
	var eligible []int
	for i := range req.pool {
		if !st.IsClaimed(i) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) < minComposite {
		return st
	}

	style, fixed := StyleFor(req.description)
	total := subsetCount(len(eligible), minComposite, layout.MaxImages)
	tried := map[string]bool{}
	unproductive := 0

	for !st.Full(s.limit) && ctx.Err() == nil && len(tried) < total && unproductive < maxUnproductiveDraws {
		k := min(minComposite+s.random.IntN(layout.MaxImages-minComposite+1), len(eligible))
		indices := s.draw(eligible, k)
		key := setKey(indices)

		if tried[key] || st.HasProduced(indices) {
			tried[key] = true
			unproductive++
			continue
		}
		tried[key] = true

		preview, ok := s.composite(ctx, TierRandom, indices)
		if !ok {
			unproductive++
			continue
		}
		unproductive = 0

		if !fixed {
			style = candidates.Styles[s.random.IntN(len(candidates.Styles))]
		}
		st = s.add(st, TierRandom, candidates.Candidate{
			Title:       style.Title,
			Description: fmt.Sprintf("%s (fotos %s)", style.Description, candidates.PhotoNumbers(indices)),
			Preview:     preview,
			Kind:        candidates.CompositeImage,
			Sources:     indices,
		}, false)
	}
	return st
}

// draw picks k distinct values from pool without replacement using a
// partial Fisher-Yates shuffle of a copy.
func (s *Selector) draw(pool []int, k int) []int {
	buf := slices.Clone(pool)
	for i := 0; i < k; i++ {
		j := i + s.random.IntN(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:k:k]
}

// StyleFor returns the style whose keyword appears in description. The
// boolean is false when no keyword matches.
func StyleFor(description string) (candidates.Style, bool) {
	tokens := Tokenize(description)
	for _, style := range candidates.Styles {
		for _, tok := range tokens {
			if slices.Contains(style.Keywords, tok) {
				return style, true
			}
		}
	}
	return candidates.Style{}, false
}

// subsetCount returns the number of subsets of an n-set with size in
// [lo, hi].
func subsetCount(n, lo, hi int) int {
	total := 0
	for k := lo; k <= min(hi, n); k++ {
		total += binomial(n, k)
	}
	return total
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}
