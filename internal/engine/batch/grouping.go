// internal/engine/batch/grouping.go
package batch

import (
	"sort"

	urlutil "github.com/law-makers/dommap/internal/utils/url"
)

// defaultGroup collects URLs whose host cannot be determined.
const defaultGroup = "default"

// GroupByDomain groups URLs by host, keeping input order inside each group.
// The returned domain list is sorted so runs are reproducible.
func GroupByDomain(urls []string) (map[string][]string, []string) {
	groups := make(map[string][]string)

	for _, u := range urls {
		domain := urlutil.Domain(u)
		if domain == "" {
			domain = defaultGroup
		}
		groups[domain] = append(groups[domain], u)
	}

	domains := make([]string, 0, len(groups))
	for d := range groups {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	return groups, domains
}
