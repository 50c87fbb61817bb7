package gateway

import "strings"

// buildCandidates returns the ordered deployment names eligible for the next
// attempt. The result never contains a name in exclude or a registered
// deployment that is disabled.
func buildCandidates(reg *registry, requested string, exclude map[string]struct{}) []string {
	var out []string
	seen := make(map[string]struct{})

	add := func(name string) {
		if name == "" {
			return
		}
		if _, skip := exclude[name]; skip {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		if d, ok := reg.get(name); ok && !d.IsEnabled {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	all := reg.all()

	if _, excluded := exclude[requested]; requested != "" && !excluded {
		matched := false
		for _, d := range all {
			if d.IsEnabled && strings.EqualFold(d.ModelAlias, requested) {
				matched = true
				add(d.Name)
			}
		}
		if !matched {
			add(requested)
		}
	}

	for _, fb := range reg.fallbacksFor(requested) {
		add(fb)
	}

	if len(out) == 0 {
		for _, d := range all {
			if d.IsEnabled {
				add(d.Name)
			}
		}
	}

	return out
}
