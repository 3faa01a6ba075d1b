// Package parser turns upstream HTML pages and unified-diff snapshots into
// model.RawRecord rows, ready for queries.InsertRecord.
package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"lcbregistry/internal/model"
)

// sectionHeadings maps the upstream table caption text to the section it
// carries.
var sectionHeadings = map[string]model.Section{
	"NEW APPLICATIONS": model.SectionNewApplication,
	"NEW LICENSES":     model.SectionNewApplication,
	"APPROVED":         model.SectionApproved,
	"DISCONTINUED":     model.SectionDiscontinued,
}

// labelFieldMap maps a <th> label (upper-cased, whitespace-collapsed) to the
// model.RawRecord key it populates.
var labelFieldMap = map[string]string{
	"DATE":                    "record_date",
	"BUSINESS NAME":           "business_name",
	"TRADE NAME":              "business_name",
	"PREVIOUS BUSINESS NAME":  "previous_business_name",
	"APPLICANTS":              "applicants",
	"PREVIOUS APPLICANTS":     "previous_applicants",
	"LICENSE TYPE":            "license_type",
	"LICENSE NUMBER":          "license_number",
	"LOCATION ADDRESS":        "location",
	"BUSINESS LOCATION":       "location",
	"PREVIOUS LOCATION":       "previous_location",
	"PHONE":                   "contact_phone",
	"CONTACT PHONE":           "contact_phone",
	"APPLICATION TYPE":        "application_type",
}

// applicationTypeKeywords are recognized inline in a row's first cell (in
// place of, or alongside, a date) and mark a record variant rather than a
// fresh record.
var applicationTypeKeywords = []string{"ASSUMPTION", "CHANGE OF LOCATION", "NEW", "ADDED/CHANGED FIRM"}

var datePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

var whitespaceCollapse = regexp.MustCompile(`\s+`)

func normalizeLabel(s string) string {
	return whitespaceCollapse.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), " ")
}

// ParseHTML walks every table in the document, using each table's preceding
// heading (or caption) text to determine its section, and its header row's
// <th> labels to map cell position to a model.RawRecord key. A row whose
// first cell matches M/D/YYYY starts a new record; a row without a leading
// date is treated as a continuation (e.g. an ASSUMPTION/CHANGE OF LOCATION
// variant row) and merged into the current record, overwriting only the
// fields the continuation row actually supplies.
func ParseHTML(r io.Reader) ([]model.RawRecord, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var records []model.RawRecord
	var pendingHeading string

	var traverse func(n *html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "caption":
				if text := strings.TrimSpace(extractText(n)); text != "" {
					pendingHeading = strings.ToUpper(text)
				}
			case "table":
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "caption" {
						if text := strings.TrimSpace(extractText(c)); text != "" {
							pendingHeading = strings.ToUpper(text)
						}
					}
				}
				section := sectionFor(pendingHeading)
				tableRecords := parseTable(n, section)
				records = append(records, tableRecords...)
				return // don't descend into a table we've already consumed
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return records, nil
}

func sectionFor(heading string) model.Section {
	for key, section := range sectionHeadings {
		if strings.Contains(heading, key) {
			return section
		}
	}
	return ""
}

// parseTable extracts header labels from the first row (<th> cells), then
// walks remaining rows applying the date-starts-new-record rule.
func parseTable(table *html.Node, section model.Section) []model.RawRecord {
	rows := tableRows(table)
	if len(rows) == 0 {
		return nil
	}

	header, dataRows := rows[0], rows[1:]
	fields := make([]string, len(header))
	for i, cell := range header {
		fields[i] = labelFieldMap[normalizeLabel(cell)]
	}

	var records []model.RawRecord
	var current model.RawRecord

	for _, row := range dataRows {
		if len(row) == 0 {
			continue
		}
		firstCell := strings.TrimSpace(row[0])
		startsNew := datePattern.MatchString(firstCell)
		if startsNew {
			if current != nil {
				records = append(records, current)
			}
			current = model.RawRecord{"section": string(section)}
		}
		if current == nil {
			current = model.RawRecord{"section": string(section)}
		}
		keywordInFirstCell := false
		if !startsNew {
			if kw, ok := matchApplicationTypeKeyword(firstCell); ok {
				current["application_type"] = kw
				keywordInFirstCell = true
			}
		}

		for i, cell := range row {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			if i == 0 && keywordInFirstCell {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			if fields[i] == "record_date" {
				value = normalizeDate(value)
			}
			current[fields[i]] = value
		}
	}
	if current != nil {
		records = append(records, current)
	}
	return records
}

// tableRows collects every <tr>'s cell text (from <th> or <td>) in document
// order.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var traverse func(n *html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, extractText(c))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(table)
	return rows
}

// extractText concatenates all text nodes under n.
func extractText(n *html.Node) string {
	var sb strings.Builder
	var traverse func(node *html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.TrimSpace(whitespaceCollapse.ReplaceAllString(sb.String(), " "))
}

// matchApplicationTypeKeyword reports whether s (a non-date first cell) is
// one of the recognized application-type variant markers.
func matchApplicationTypeKeyword(s string) (string, bool) {
	upper := strings.ToUpper(s)
	for _, kw := range applicationTypeKeywords {
		if upper == kw {
			return kw, true
		}
	}
	return "", false
}

// normalizeDate converts M/D/YYYY to ISO (YYYY-MM-DD); unparseable input is
// returned unchanged so the caller sees the raw value rather than silent data
// loss.
func normalizeDate(s string) string {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}
	month, day, year := parts[0], parts[1], parts[2]
	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}
	if len(year) != 4 {
		return s
	}
	return year + "-" + month + "-" + day
}
