// Package entities implements applicant-string cleaning, person/organization
// classification, entity linking, and the duplicate-merge pass.
package entities

import (
	"regexp"
	"strings"

	"lcbregistry/internal/model"
)

// legitimateSuffixes are trailing tokens that look like punctuation artifacts
// but are actually part of the name; trailing '.'/',' is only stripped when
// the preceding token is NOT one of these (bounded by a word boundary).
var legitimateSuffixes = []string{
	"INC", "LLC", "L.L.C", "LTD", "CORP", "CO", "L.P", "L.L.P", "PTY",
	"JR", "SR", "S.P.A", "F.O.E", "U.P", "D.B.A", "P.C", "N.A", "P.A", "W. & S",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Clean is the canonical name-cleaning rule used everywhere: trim, uppercase,
// collapse internal whitespace, then iteratively strip trailing '.'/',' unless
// the trailing token is a recognized suffix. Idempotent: Clean(Clean(x)) == Clean(x).
func Clean(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, " ")

	for {
		trimmed := strings.TrimRight(s, " ")
		if trimmed == "" {
			return trimmed
		}
		last := trimmed[len(trimmed)-1]
		if last != '.' && last != ',' {
			return trimmed
		}
		if endsInSuffix(trimmed) {
			return trimmed
		}
		s = strings.TrimRight(trimmed[:len(trimmed)-1], " ")
	}
}

// endsInSuffix reports whether trimmed ends in one of legitimateSuffixes,
// bounded by a word boundary on the left so "XINC." does not match "INC".
func endsInSuffix(trimmed string) bool {
	for _, suffix := range legitimateSuffixes {
		candidate := suffix + "."
		if !strings.HasSuffix(trimmed, candidate) {
			continue
		}
		before := trimmed[:len(trimmed)-len(candidate)]
		if before == "" {
			return true
		}
		last := before[len(before)-1]
		if last == ' ' {
			return true
		}
	}
	return false
}

// CleanApplicants splits an applicant string on ';', cleans each part, drops
// empties, and rejoins with "; ".
func CleanApplicants(s string) string {
	parts := strings.Split(s, ";")
	var cleaned []string
	for _, p := range parts {
		c := Clean(p)
		if c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return strings.Join(cleaned, "; ")
}

var organizationKeywords = regexp.MustCompile(
	`\b(LLC|INC\.?|CORP|TRUST|LTD|PARTNERSHIP|HOLDINGS|GROUP|ENTERPRISE(S)?|ASSOCIATION|FOUNDATION|COMPANY)\b|\b(CO\.|L\.P\.)`,
)

// Classify returns EntityOrganization if the cleaned name contains any fixed
// organization keyword, otherwise EntityPerson.
func Classify(cleanedName string) model.EntityType {
	if organizationKeywords.MatchString(cleanedName) {
		return model.EntityOrganization
	}
	return model.EntityPerson
}
