package servers

import "strings"

// Normalize returns the normalized version of the input search string:
// lowercased with spaces removed.
func Normalize(query string) string {
	return strings.ReplaceAll(strings.ToLower(query), " ", "")
}

// Matches reports whether a server matches the search query, either by
// server name or by country display name.
func Matches(server LogicalServer, query string) bool {
	normalized := Normalize(query)
	if normalized == "" {
		return true
	}
	if strings.Contains(Normalize(server.Name), normalized) {
		return true
	}
	return strings.Contains(Normalize(CountryName(server.ExitCountry)), normalized)
}

// Filter returns the country groups that still have servers matching the
// query. Groups and the underlying snapshot are not modified.
func Filter(groups []CountryGroup, query string) []CountryGroup {
	if Normalize(query) == "" {
		return groups
	}

	var filtered []CountryGroup
	for _, group := range groups {
		var matched []LogicalServer
		for _, server := range group.Servers {
			if Matches(server, query) {
				matched = append(matched, server)
			}
		}
		if len(matched) > 0 {
			filtered = append(filtered, CountryGroup{
				Code:    group.Code,
				Name:    group.Name,
				Servers: matched,
			})
		}
	}
	return filtered
}
