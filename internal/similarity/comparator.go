package similarity

import (
	"errors"
	"path/filepath"
	"strings"

	"dublett/internal/fingerprint"
	"dublett/internal/models"
)

// ErrTenantMismatch rejects any attempt to compare files across tenant
// boundaries, regardless of how similar their signatures are.
var ErrTenantMismatch = errors.New("cross-tenant comparison forbidden")

// MatchClass is the outcome of comparing two fingerprints, ordered by
// strength: exact > similar > related > fuzzy > none.
type MatchClass int

const (
	MatchNone MatchClass = iota
	MatchFuzzy
	MatchRelated
	MatchSimilar
	MatchExact
)

func (c MatchClass) String() string {
	switch c {
	case MatchExact:
		return "exact"
	case MatchSimilar:
		return "similar"
	case MatchRelated:
		return "related"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// GroupType maps a match class onto the group tier it creates.
func (c MatchClass) GroupType() models.GroupType {
	switch c {
	case MatchExact:
		return models.GroupExact
	case MatchSimilar:
		return models.GroupSimilar
	case MatchRelated:
		return models.GroupRelated
	default:
		return models.GroupFuzzy
	}
}

// Comparator classifies pairs of files against the policy table.
type Comparator struct {
	policy Policy
}

// NewComparator returns a Comparator over a validated policy.
func NewComparator(policy Policy) *Comparator {
	return &Comparator{policy: policy}
}

// Compare decides whether two files are duplicates and how strongly. The
// tiers are evaluated in strength order, so the strongest applicable class
// wins. Both files must belong to the same tenant.
func (c *Comparator) Compare(a, b *models.File) (MatchClass, error) {
	if a == nil || b == nil {
		return MatchNone, errors.New("both files are required")
	}
	if a.TenantID != b.TenantID {
		return MatchNone, ErrTenantMismatch
	}

	if a.ContentHash != "" && a.ContentHash == b.ContentHash {
		return MatchExact, nil
	}

	dist := fingerprint.HammingDistance(a.SimHash, b.SimHash)
	if dist <= c.policy.SimilarMaxDistance {
		return MatchSimilar, nil
	}
	if dist <= c.policy.RelatedMaxDistance && c.metadataProximity(a, b) {
		return MatchRelated, nil
	}
	if dist <= c.policy.FuzzyMaxDistance {
		return MatchFuzzy, nil
	}

	return MatchNone, nil
}

// metadataProximity combines the three non-content signals: same uploader,
// byte size within the tolerance band, and filename similarity.
func (c *Comparator) metadataProximity(a, b *models.File) bool {
	signals := 0
	if a.UploaderID != "" && a.UploaderID == b.UploaderID {
		signals++
	}
	if sizeWithinBand(a.SizeBytes, b.SizeBytes, c.policy.SizeTolerance) {
		signals++
	}
	if nameSimilarity(a.Name, b.Name) >= c.policy.NameSimilarityMin {
		signals++
	}
	return signals >= c.policy.ProximitySignalsMin
}

func sizeWithinBand(a, b int64, tolerance float64) bool {
	if a == 0 || b == 0 {
		return a == b
	}
	larger, smaller := a, b
	if smaller > larger {
		larger, smaller = smaller, larger
	}
	return float64(larger-smaller) <= tolerance*float64(larger)
}

// nameSimilarity is the Jaccard similarity of the filename trigram sets,
// after lowercasing and stripping the extension.
func nameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	ta, tb := trigrams(na), trigrams(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func normalizeName(name string) string {
	base := strings.ToLower(strings.TrimSpace(filepath.Base(name)))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func trigrams(s string) map[string]struct{} {
	grams := map[string]struct{}{}
	runes := []rune(s)
	if len(runes) < 3 {
		grams[string(runes)] = struct{}{}
		return grams
	}
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = struct{}{}
	}
	return grams
}
