package filter

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/quantile"
)

// State holds the four independent filter predicates plus the grouping
// toggle. Every Toggle method adds the value if absent and removes it if
// present, and reports whether the value is hidden afterwards.
type State struct {
	HiddenNodeTypes map[model.NodeType]bool
	HiddenLinkKinds map[model.LinkKind]bool
	HiddenHosts     map[string]bool
	// HiddenColors holds hidden quantile bucket ids per traffic link kind.
	HiddenColors map[model.LinkKind]map[int]bool
	Grouping     bool
}

func NewState() *State {
	return &State{
		HiddenNodeTypes: make(map[model.NodeType]bool),
		HiddenLinkKinds: make(map[model.LinkKind]bool),
		HiddenHosts:     make(map[string]bool),
		HiddenColors:    make(map[model.LinkKind]map[int]bool),
	}
}

func toggle[K comparable](m map[K]bool, k K) bool {
	if m[k] {
		delete(m, k)
		return false
	}
	m[k] = true
	return true
}

func (s *State) ToggleHiddenNodeType(t model.NodeType) bool {
	return toggle(s.HiddenNodeTypes, t)
}

func (s *State) ToggleHiddenLinkKind(k model.LinkKind) bool {
	return toggle(s.HiddenLinkKinds, k)
}

func (s *State) ToggleHiddenHost(host string) bool {
	return toggle(s.HiddenHosts, host)
}

// ToggleHiddenColorBucket toggles a quantile bucket of a traffic link kind.
func (s *State) ToggleHiddenColorBucket(k model.LinkKind, bucket int) (bool, error) {
	if !k.Traffic() {
		return false, fmt.Errorf("toggle color bucket: %s has no intensity scale", k)
	}
	if bucket < 0 || bucket >= quantile.Buckets {
		return false, fmt.Errorf("toggle color bucket: bucket %d out of range", bucket)
	}
	m, ok := s.HiddenColors[k]
	if !ok {
		m = make(map[int]bool)
		s.HiddenColors[k] = m
	}
	hidden := toggle(m, bucket)
	if len(m) == 0 {
		delete(s.HiddenColors, k)
	}
	return hidden, nil
}

// ColorHidden reports whether bucket of kind k is hidden.
func (s *State) ColorHidden(k model.LinkKind, bucket int) bool {
	return s.HiddenColors[k][bucket]
}

// Settings is the sorted, serializable view of a State.
type Settings struct {
	HiddenNodeTypes []model.NodeType            `json:"hiddenNodeTypes"`
	HiddenLinkKinds []model.LinkKind            `json:"hiddenLinkKinds"`
	HiddenHosts     []string                    `json:"hiddenHosts"`
	HiddenColors    map[model.LinkKind][]string `json:"hiddenColors"`
	Grouping        bool                        `json:"groupingEnabled"`
}

func sortedKeys[K ~string](m map[K]bool) []K {
	keys := lo.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Settings returns the current state as sorted lists.
func (s *State) Settings() Settings {
	out := Settings{
		HiddenNodeTypes: sortedKeys(s.HiddenNodeTypes),
		HiddenLinkKinds: sortedKeys(s.HiddenLinkKinds),
		HiddenHosts:     sortedKeys(s.HiddenHosts),
		HiddenColors:    make(map[model.LinkKind][]string, len(s.HiddenColors)),
		Grouping:        s.Grouping,
	}
	for k, m := range s.HiddenColors {
		buckets := lo.Keys(m)
		sort.Ints(buckets)
		out.HiddenColors[k] = lo.Map(buckets, func(b int, _ int) string { return quantile.Colors[b] })
	}
	return out
}
