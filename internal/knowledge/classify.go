package knowledge

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"hermes/internal/domain"
)

// Domain is a logical partition of the knowledge namespace.
type Domain string

const (
	DomainActions  Domain = "acoes"
	DomainHealth   Domain = "saude"
	DomainProjects Domain = "projetos"
)

// Domains lists the partitions in root display order.
var Domains = []Domain{DomainActions, DomainHealth, DomainProjects}

var categoryRules = []struct {
	fragment string
	domain   Domain
}{
	{"saude", DomainHealth},
	{"acao", DomainActions},
	{"projeto", DomainProjects},
}

var moduleDomains = map[string]Domain{
	"tarefas":  DomainActions,
	"acoes":    DomainActions,
	"saude":    DomainHealth,
	"projetos": DomainProjects,
	"project":  DomainProjects,
	"projects": DomainProjects,
}

// Classify maps an item to its domain, looking at the category first, then
// at the module of its origin. Items matching neither belong to projects.
func Classify(item domain.StorageItem) Domain {
	if category := fold(item.Category); category != "" {
		for _, rule := range categoryRules {
			if strings.Contains(category, rule.fragment) {
				return rule.domain
			}
		}
	}
	if item.Origin != nil {
		if d, ok := moduleDomains[fold(item.Origin.Module)]; ok {
			return d
		}
	}
	return DomainProjects
}

// fold strips diacritics, lower-cases and trims s.
func fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}
