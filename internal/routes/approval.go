package routes

import (
	"fmt"
	"strings"

	archerrors "archie/internal/errors"
	"archie/internal/index"
	"archie/internal/router"
)

// ApprovalEntry is one extracted sign-off row.
type ApprovalEntry struct {
	Person   string
	Role     string
	Decision string
	Date     string
}

// Approval extracts the structured sign-off block from a document's approval
// record. Parsing is deterministic: the same document always yields identical
// entries. The primary content record is never consulted here.
func (h *Handlers) Approval(signals router.Signals, query string) (Result, error) {
	number := signals.RefNumber
	if number == 0 {
		id, err := h.catalog.Resolve(query)
		if err != nil {
			return Result{}, err
		}
		number = id.Number
	}

	darID := index.DocumentIdentity{Type: index.TypeDAR, Number: number}
	doc, ok := h.catalog.Get(darID)
	if !ok {
		return Result{}, archerrors.NewNotFound(darID.Canonical())
	}

	entries := ParseApprovalTable(doc)
	if len(entries) == 0 {
		return Result{}, archerrors.NewNotFound(darID.Canonical() + " approval table")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Approvals recorded in %s:\n", darID.Canonical())
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s (%s): %s", e.Person, e.Role, e.Decision)
		if e.Date != "" {
			fmt.Fprintf(&sb, " on %s", e.Date)
		}
		sb.WriteString("\n")
	}

	return Result{
		Envelope: exactEnvelope(strings.TrimRight(sb.String(), "\n"),
			len(entries), len(entries), []string{darID.Canonical()}),
		Resolved: []index.DocumentIdentity{darID},
	}, nil
}

// approvalColumns maps normalized header names onto entry fields.
var approvalColumns = map[string]int{
	"name": 0, "person": 0, "approver": 0,
	"role": 1, "title": 1,
	"decision": 2, "verdict": 2, "status": 2,
	"date": 3, "signed": 3,
}

// ParseApprovalTable extracts person/role/decision/date rows from the first
// markdown table in the document.
func ParseApprovalTable(doc *index.Document) []ApprovalEntry {
	lines := strings.Split(doc.Raw, "\n")

	var header []string
	var entries []ApprovalEntry
	colFor := [4]int{-1, -1, -1, -1}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			if header != nil && len(entries) > 0 {
				break // table ended
			}
			header = nil
			continue
		}

		cells := splitTableRow(trimmed)
		if header == nil {
			header = cells
			for i, cell := range cells {
				key := strings.ToLower(strings.TrimSpace(cell))
				if field, ok := approvalColumns[key]; ok && colFor[field] < 0 {
					colFor[field] = i
				}
			}
			continue
		}
		if isSeparatorRow(cells) {
			continue
		}
		if colFor[0] < 0 || colFor[2] < 0 {
			// Not an approval table; keep scanning for the next one.
			header = nil
			continue
		}

		entry := ApprovalEntry{
			Person:   cellAt(cells, colFor[0]),
			Decision: cellAt(cells, colFor[2]),
			Role:     cellAt(cells, colFor[1]),
			Date:     cellAt(cells, colFor[3]),
		}
		if entry.Person == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
