package similarity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the tunable threshold table behind the four match tiers.
// Distances are simhash Hamming distances; smaller is more similar. The
// tiers must stay ordered similar < related < fuzzy so that classification
// preserves exact > similar > related > fuzzy strength.
type Policy struct {
	// SimilarMaxDistance classifies near-identical content on signature
	// distance alone.
	SimilarMaxDistance int `yaml:"similar_max_distance"`

	// RelatedMaxDistance classifies looser signature matches, but only
	// when backed by metadata proximity (uploader, size, filename).
	RelatedMaxDistance int `yaml:"related_max_distance"`

	// FuzzyMaxDistance is the loosest tier, on signature distance alone.
	FuzzyMaxDistance int `yaml:"fuzzy_max_distance"`

	// SizeTolerance is the relative size band for metadata proximity,
	// e.g. 0.1 accepts sizes within 10% of each other.
	SizeTolerance float64 `yaml:"size_tolerance"`

	// NameSimilarityMin is the minimum trigram similarity of the two
	// filenames to count as a proximity signal.
	NameSimilarityMin float64 `yaml:"name_similarity_min"`

	// ProximitySignalsMin is how many of the three metadata signals
	// (same uploader, size band, filename similarity) must hold for the
	// related tier.
	ProximitySignalsMin int `yaml:"proximity_signals_min"`
}

// DefaultPolicy returns the threshold table used when no policy file is
// configured.
func DefaultPolicy() Policy {
	return Policy{
		SimilarMaxDistance:  3,
		RelatedMaxDistance:  10,
		FuzzyMaxDistance:    16,
		SizeTolerance:       0.10,
		NameSimilarityMin:   0.5,
		ProximitySignalsMin: 2,
	}
}

// LoadPolicy reads a threshold table from a YAML file, filling omitted
// fields from the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, err
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return policy, nil
}

// Validate checks the tier ordering and signal bounds.
func (p Policy) Validate() error {
	if p.SimilarMaxDistance < 0 || p.RelatedMaxDistance < 0 || p.FuzzyMaxDistance < 0 {
		return fmt.Errorf("distances must be non-negative")
	}
	if p.SimilarMaxDistance > p.RelatedMaxDistance {
		return fmt.Errorf("similar_max_distance must not exceed related_max_distance")
	}
	if p.RelatedMaxDistance > p.FuzzyMaxDistance {
		return fmt.Errorf("related_max_distance must not exceed fuzzy_max_distance")
	}
	if p.SizeTolerance < 0 || p.SizeTolerance > 1 {
		return fmt.Errorf("size_tolerance must be within [0,1]")
	}
	if p.NameSimilarityMin < 0 || p.NameSimilarityMin > 1 {
		return fmt.Errorf("name_similarity_min must be within [0,1]")
	}
	if p.ProximitySignalsMin < 1 || p.ProximitySignalsMin > 3 {
		return fmt.Errorf("proximity_signals_min must be within [1,3]")
	}
	return nil
}
