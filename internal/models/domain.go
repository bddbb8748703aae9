package models

import (
	"fmt"
	"strings"
)

// GroupType classifies how closely the members of a duplicate group match.
type GroupType string

const (
	GroupExact   GroupType = "exact"
	GroupSimilar GroupType = "similar"
	GroupRelated GroupType = "related"
	GroupFuzzy   GroupType = "fuzzy"
)

// ResolutionStatus defines the lifecycle states of a duplicate group.
type ResolutionStatus string

const (
	StatusPending    ResolutionStatus = "pending"
	StatusInProgress ResolutionStatus = "in_progress"
	StatusResolved   ResolutionStatus = "resolved"
	StatusIgnored    ResolutionStatus = "ignored"
)

// ResolutionStrategy defines how a group gets resolved.
type ResolutionStrategy string

const (
	StrategyAutomatic ResolutionStrategy = "automatic"
	StrategyManual    ResolutionStrategy = "manual"
)

var validGroupTypes = map[GroupType]struct{}{
	GroupExact:   {},
	GroupSimilar: {},
	GroupRelated: {},
	GroupFuzzy:   {},
}

var validResolutionStatuses = map[ResolutionStatus]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusResolved:   {},
	StatusIgnored:    {},
}

var validResolutionStrategies = map[ResolutionStrategy]struct{}{
	StrategyAutomatic: {},
	StrategyManual:    {},
}

// groupTypeStrength orders match tiers: a higher value means a stronger
// (tighter) duplicate relationship.
var groupTypeStrength = map[GroupType]int{
	GroupFuzzy:   1,
	GroupRelated: 2,
	GroupSimilar: 3,
	GroupExact:   4,
}

func IsValidGroupType(t GroupType) bool {
	_, ok := validGroupTypes[t]
	return ok
}

func IsValidResolutionStatus(s ResolutionStatus) bool {
	_, ok := validResolutionStatuses[s]
	return ok
}

func IsValidResolutionStrategy(s ResolutionStrategy) bool {
	_, ok := validResolutionStrategies[s]
	return ok
}

func ParseGroupType(raw string) (GroupType, error) {
	value := GroupType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("group type is required")
	}
	if !IsValidGroupType(value) {
		return "", fmt.Errorf("invalid group type: %s", value)
	}
	return value, nil
}

func ParseResolutionStatus(raw string) (ResolutionStatus, error) {
	value := ResolutionStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("resolution status is required")
	}
	if !IsValidResolutionStatus(value) {
		return "", fmt.Errorf("invalid resolution status: %s", value)
	}
	return value, nil
}

func ParseResolutionStrategy(raw string) (ResolutionStrategy, error) {
	value := ResolutionStrategy(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("resolution strategy is required")
	}
	if !IsValidResolutionStrategy(value) {
		return "", fmt.Errorf("invalid resolution strategy: %s", value)
	}
	return value, nil
}

// Strength returns the ordering rank of a group type (exact strongest).
func (t GroupType) Strength() int {
	return groupTypeStrength[t]
}

// WeakerGroupType returns the weaker of two match tiers. A group that spans
// members of mixed tiers carries the weakest one.
func WeakerGroupType(a, b GroupType) GroupType {
	if a.Strength() <= b.Strength() {
		return a
	}
	return b
}

// TerminalStatus reports whether a status ends the resolution workflow.
// Terminal groups may still reopen when a late duplicate arrives.
func (s ResolutionStatus) Terminal() bool {
	return s == StatusResolved || s == StatusIgnored
}
