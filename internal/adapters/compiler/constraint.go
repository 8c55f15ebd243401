package compiler

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// TranslateConstraint rewrites an npm-style solc range into go-version
// syntax: "^0.7.6" becomes ">= 0.7.6, < 0.8.0" and "~1.2.3" becomes
// ">= 1.2.3, < 1.3.0". Alternatives separated by "||" are returned
// separately.
func TranslateConstraint(raw string) ([]string, error) {
	var out []string
	for _, alt := range strings.Split(raw, "||") {
		var parts []string
		for _, term := range strings.Fields(strings.ReplaceAll(alt, ",", " ")) {
			translated, err := translateTerm(term)
			if err != nil {
				return nil, err
			}
			parts = append(parts, translated...)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("empty compiler version constraint %q", raw)
		}
		out = append(out, strings.Join(parts, ", "))
	}
	return out, nil
}

func translateTerm(term string) ([]string, error) {
	switch {
	case strings.HasPrefix(term, "^"):
		v, err := version.NewVersion(term[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid version in %q: %w", term, err)
		}
		s := v.Segments()
		var upper string
		switch {
		case s[0] > 0:
			upper = fmt.Sprintf("%d.0.0", s[0]+1)
		case s[1] > 0:
			upper = fmt.Sprintf("0.%d.0", s[1]+1)
		default:
			upper = fmt.Sprintf("0.0.%d", s[2]+1)
		}
		return []string{">= " + v.String(), "< " + upper}, nil

	case strings.HasPrefix(term, "~"):
		v, err := version.NewVersion(term[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid version in %q: %w", term, err)
		}
		s := v.Segments()
		return []string{">= " + v.String(), fmt.Sprintf("< %d.%d.0", s[0], s[1]+1)}, nil

	case strings.HasPrefix(term, ">"), strings.HasPrefix(term, "<"), strings.HasPrefix(term, "="), strings.HasPrefix(term, "!"):
		if _, err := version.NewConstraint(term); err != nil {
			return nil, fmt.Errorf("invalid constraint %q: %w", term, err)
		}
		return []string{term}, nil

	default:
		v, err := version.NewVersion(term)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", term, err)
		}
		return []string{"= " + v.String()}, nil
	}
}

// Satisfies reports whether the installed solc version matches the
// configured constraint. An empty constraint accepts any version.
func Satisfies(raw, installed string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return true, nil
	}

	v, err := version.NewVersion(installed)
	if err != nil {
		return false, fmt.Errorf("invalid solc version %q: %w", installed, err)
	}
	// Build metadata such as "+commit.7338295f" does not take part in ranges
	core := v.Core()

	alternatives, err := TranslateConstraint(raw)
	if err != nil {
		return false, err
	}
	for _, alt := range alternatives {
		c, err := version.NewConstraint(alt)
		if err != nil {
			return false, fmt.Errorf("invalid constraint %q: %w", alt, err)
		}
		if c.Check(core) {
			return true, nil
		}
	}
	return false, nil
}
