package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
)

// DefaultNetworkName is selected when --network is not given and a network
// with this name is configured
const DefaultNetworkName = "development"

// ResolveNetwork looks up a configured network by name
func ResolveNetwork(project *config.ProjectConfig, name string) (*config.NetworkConfig, error) {
	if network, ok := project.Networks[name]; ok {
		return network, nil
	}

	names := project.NetworkNames()
	sort.Strings(names)

	msg := fmt.Sprintf("network '%s' not found in %s", name, ProjectFileName)
	if suggestions := SuggestNetworks(name, names); len(suggestions) > 0 {
		msg += fmt.Sprintf(", did you mean %s?", strings.Join(suggestions, " or "))
	} else if len(names) > 0 {
		msg += fmt.Sprintf(" (configured: %s)", strings.Join(names, ", "))
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrConfig, msg)
}

// SuggestNetworks returns up to three configured names close to the input
func SuggestNetworks(input string, names []string) []string {
	matches := fuzzy.Find(input, names)
	// A typo drops characters fuzzy matching requires, so retry with the
	// names as pattern against the input.
	if len(matches) == 0 {
		for _, name := range names {
			if m := fuzzy.Find(name, []string{input}); len(m) > 0 {
				matches = append(matches, fuzzy.Match{Str: name, Score: m[0].Score})
			}
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	}
	if len(matches) == 0 {
		for _, name := range names {
			if strings.HasPrefix(name, firstSegment(input)) {
				matches = append(matches, fuzzy.Match{Str: name})
			}
		}
	}

	out := make([]string, 0, 3)
	for _, m := range matches {
		if len(out) == cap(out) {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

func firstSegment(name string) string {
	if i := strings.IndexAny(name, "_-."); i > 0 {
		return name[:i]
	}
	return name
}
