package normalize

// ExcludedCategories are facility categories that do not provide acute or
// general care. The empty string is excluded too.
var ExcludedCategories = []string{
	"pharmacy",
	"physiotherapist",
	"",
	"dentist",
	"laboratory",
	"alternative",
	"optometrist",
	"blood_donation",
	"rehabilitation",
}

var excludedSet = func() map[string]bool {
	m := make(map[string]bool, len(ExcludedCategories))
	for _, c := range ExcludedCategories {
		m[c] = true
	}
	return m
}()

// IsExcludedCategory reports whether category is in the exclusion set.
// Matching is exact, like the source data's category tags.
func IsExcludedCategory(category string) bool {
	return excludedSet[category]
}
