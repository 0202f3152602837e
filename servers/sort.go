package servers

import (
	"fmt"
	"sort"
	"strings"
)

// nameSeparator splits a server display name into its country prefix and
// its sequence number, e.g. "IS#9".
const nameSeparator = "#"

// numberPadWidth is the width server numbers are zero-padded to so that
// alphabetical comparison preserves numeric order ("IS#9" before "IS#10").
const numberPadWidth = 10

// tierPriorityOffset shifts tier priorities into non-negative range so
// they can be zero-padded in the composite key; a paid user below a
// server's tier yields a negative priority.
const tierPriorityOffset = 100

// CountryGroup holds the servers of one exit country, already sorted for
// presentation.
type CountryGroup struct {
	// Code is the lowercase ISO country code.
	Code string
	// Name is the country display name.
	Name string
	// Servers are the country's servers in presentation order.
	Servers []LogicalServer
}

// GroupByCountry is a pure transform over a snapshot: it groups servers by
// exit country and sorts groups alphabetically by country display name.
// Within a group, free users (tier 0) see servers in ascending tier order
// while paid users see their own tier first; servers without secure core
// come before secure core ones, and names are compared case-insensitively
// with zero-padded numeric suffixes.
//
// The snapshot itself is never modified.
func GroupByCountry(list *ServerList, userTier int) []CountryGroup {
	if list == nil || list.Len() == 0 {
		return nil
	}

	sorted := make([]LogicalServer, list.Len())
	copy(sorted, list.Servers())
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i], userTier) < sortKey(sorted[j], userTier)
	})

	var groups []CountryGroup
	for _, server := range sorted {
		code := strings.ToLower(server.ExitCountry)
		if len(groups) == 0 || groups[len(groups)-1].Code != code {
			groups = append(groups, CountryGroup{
				Code: code,
				Name: CountryName(server.ExitCountry),
			})
		}
		last := len(groups) - 1
		groups[last].Servers = append(groups[last].Servers, server)
	}

	return groups
}

// sortKey builds the composite ordering key for one server.
func sortKey(server LogicalServer, userTier int) string {
	countryName := CountryName(server.ExitCountry)

	var tierPriority int
	if userTier == 0 {
		// Free users see country servers ordered by tier ascending:
		// 0 (free servers) first, then paid tiers.
		tierPriority = server.Tier
	} else {
		// Paid users see country servers in descending tier order.
		tierPriority = userTier - server.Tier
	}

	secureCorePriority := 0
	if server.Features&FeatureSecureCore != 0 {
		secureCorePriority = 1
	}

	return fmt.Sprintf("%s__%03d__%d__%s",
		countryName, tierPriority+tierPriorityOffset, secureCorePriority, paddedName(server.Name))
}

// paddedName lowercases a server name and zero-pads the part after the
// separator so that "is#9" sorts before "is#10".
func paddedName(name string) string {
	name = strings.ToLower(name)
	prefix, suffix, found := strings.Cut(name, nameSeparator)
	if !found {
		return name
	}
	if pad := numberPadWidth - len(suffix); pad > 0 {
		suffix = strings.Repeat("0", pad) + suffix
	}
	return prefix + suffix
}

// countryNames maps ISO 3166-1 alpha-2 codes to display names for the
// countries the service operates in. Unknown codes fall back to the
// uppercased code itself.
var countryNames = map[string]string{
	"AR": "Argentina",
	"AT": "Austria",
	"AU": "Australia",
	"BE": "Belgium",
	"BG": "Bulgaria",
	"BR": "Brazil",
	"CA": "Canada",
	"CH": "Switzerland",
	"CZ": "Czechia",
	"DE": "Germany",
	"DK": "Denmark",
	"EE": "Estonia",
	"ES": "Spain",
	"FI": "Finland",
	"FR": "France",
	"GB": "United Kingdom",
	"GR": "Greece",
	"HK": "Hong Kong",
	"HR": "Croatia",
	"HU": "Hungary",
	"IE": "Ireland",
	"IL": "Israel",
	"IN": "India",
	"IS": "Iceland",
	"IT": "Italy",
	"JP": "Japan",
	"KR": "South Korea",
	"LT": "Lithuania",
	"LU": "Luxembourg",
	"LV": "Latvia",
	"MX": "Mexico",
	"NL": "Netherlands",
	"NO": "Norway",
	"NZ": "New Zealand",
	"PL": "Poland",
	"PT": "Portugal",
	"RO": "Romania",
	"RS": "Serbia",
	"SE": "Sweden",
	"SG": "Singapore",
	"SI": "Slovenia",
	"SK": "Slovakia",
	"TW": "Taiwan",
	"UA": "Ukraine",
	"US": "United States",
	"ZA": "South Africa",
}

// CountryName returns the display name for an ISO country code.
func CountryName(code string) string {
	if name, ok := countryNames[strings.ToUpper(code)]; ok {
		return name
	}
	return strings.ToUpper(code)
}
