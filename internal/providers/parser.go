package providers

import "strings"

// ProviderRef is one entry of IARA_AI_PROVIDERS, written as name or name:KEY_VAR.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList splits a "|" or "," separated chain such as
// "openai|anthropic:ANTHROPIC_BACKUP_KEY". Names are lower-cased and repeated
// entries are dropped. An empty list yields the mock provider alone.
func ParseProviderList(raw string) []ProviderRef {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' })
	refs := make([]ProviderRef, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[strings.ToLower(f)] {
			continue
		}
		seen[strings.ToLower(f)] = true
		name, alias, _ := strings.Cut(f, ":")
		refs = append(refs, ProviderRef{
			Raw:      f,
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		})
	}
	if len(refs) == 0 {
		return []ProviderRef{{Raw: MockProviderName, Name: MockProviderName}}
	}
	return refs
}
