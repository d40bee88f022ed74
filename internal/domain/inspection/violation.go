package inspection

import (
	"regexp"
	"strings"
)

// Violation is one coded deficiency recorded during an inspection.
type Violation struct {
	Code        string
	Description string
	Comment     string
	IsCritical  bool
}

const commentsMarker = " - Comments:"

var codePattern = regexp.MustCompile(`^(\d+)\.\s*(.+)$`)

// ParseViolations splits a raw pipe-delimited violations string into
// structured records. Entries look like
// "<code>. <description> - Comments: <comment>"; the comments section is
// optional. Malformed entries are dropped, never fatal, so one bad entry
// cannot poison the rest of the record.
func ParseViolations(raw string) []Violation {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	entries := strings.Split(trimmed, "|")
	out := make([]Violation, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		head := entry
		comment := ""
		if idx := strings.Index(entry, commentsMarker); idx >= 0 {
			head = strings.TrimSpace(entry[:idx])
			comment = strings.TrimSpace(entry[idx+len(commentsMarker):])
		}

		match := codePattern.FindStringSubmatch(head)
		if match == nil {
			continue
		}

		code := strings.TrimLeft(match[1], "0")
		if code == "" {
			code = "0"
		}
		// A single inspection never records the same code twice.
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		out = append(out, Violation{
			Code:        code,
			Description: strings.TrimSpace(strings.TrimSuffix(match[2], "-")),
			Comment:     comment,
			IsCritical:  IsCriticalCodeString(code),
		})
	}

	return out
}
