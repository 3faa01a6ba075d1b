package parser

import (
	"bufio"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"lcbregistry/internal/model"
)

// diffFieldOrder is the tab-separated column order a co_diff_archive line
// carries after its leading '+'/'-' marker: one field per
// model.RawRecord key, in this fixed order.
var diffFieldOrder = []string{
	"record_date",
	"business_name",
	"applicants",
	"license_type",
	"application_type",
	"license_number",
	"location",
}

// ParseDiff reads a unified-diff snapshot of one registry section and
// returns the records added by it, deduplicated by natural key, plus the
// capture timestamp taken from the diff's "Date:" header (RFC 2822).
//
// Two passes run over the added ('+') lines: the primary pass accepts only
// rows carrying every field in diffFieldOrder (a hunk boundary can truncate a
// row's trailing columns); the supplemental pass then recovers truncated
// rows by filling the fields they lack from the last complete row in the
// file sharing the same license_number — the best signal available once a
// hunk has split a record's columns across a diff boundary. A recovered row
// whose natural key is already present is dropped.
func ParseDiff(r io.Reader, section model.Section) ([]model.RawRecord, time.Time, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read diff: %w", err)
	}

	capturedAt := extractHeaderDate(data)

	primary, supplementalCandidates := scanAddedLines(data, section)

	seen := map[string]bool{}
	var records []model.RawRecord
	for _, rec := range primary {
		key := naturalKeyString(rec)
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, rec)
	}

	lastByLicense := map[string]model.RawRecord{}
	for _, rec := range primary {
		lastByLicense[rec["license_number"]] = rec
	}
	for _, partial := range supplementalCandidates {
		complete, ok := lastByLicense[partial["license_number"]]
		if !ok {
			continue
		}
		merged := model.RawRecord{}
		for k, v := range complete {
			merged[k] = v
		}
		for k, v := range partial {
			if v != "" {
				merged[k] = v
			}
		}
		key := naturalKeyString(merged)
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, merged)
	}

	return records, capturedAt, nil
}

func naturalKeyString(rec model.RawRecord) string {
	return strings.Join([]string{
		rec["section"], rec["record_date"], rec["license_number"], rec["application_type"],
	}, "\x1f")
}

// scanAddedLines splits added diff lines into primary (every field present)
// and supplemental (a strict parse would have dropped them, but a
// license_number is present) buckets.
func scanAddedLines(data []byte, section model.Section) (primary, supplemental []model.RawRecord) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		content := strings.TrimPrefix(line, "+")
		fields := strings.Split(content, "\t")

		rec := model.RawRecord{"section": string(section)}
		for i, value := range fields {
			if i >= len(diffFieldOrder) {
				break
			}
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			if diffFieldOrder[i] == "record_date" && isSlashDate(trimmed) {
				trimmed = normalizeDate(trimmed)
			}
			rec[diffFieldOrder[i]] = trimmed
		}

		if len(fields) >= len(diffFieldOrder) && rec["record_date"] != "" && rec["license_number"] != "" {
			primary = append(primary, rec)
		} else if rec["license_number"] != "" {
			supplemental = append(supplemental, rec)
		}
	}
	return primary, supplemental
}

func isSlashDate(s string) bool {
	return datePattern.MatchString(s)
}

// extractHeaderDate looks for an RFC 2822 "Date:" header in the first lines
// of a diff file (as git format-patch / mbox-style diffs carry) and returns
// the parsed time, or the zero time if none is found.
func extractHeaderDate(data []byte) time.Time {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for i := 0; scanner.Scan() && i < 20; i++ {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Date:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, "Date:"))
		if t, err := mail.ParseDate(value); err == nil {
			return t
		}
	}
	return time.Time{}
}
