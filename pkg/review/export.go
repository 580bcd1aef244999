package review

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportCSV writes the campaign's evidence trail as CSV: one row per item
// with the subject's identity, the entitlement as snapshotted, the verdict,
// and who rendered it when. Pending items export with an empty verdict so
// auditors can see what was left undecided at closure.
func ExportCSV(c *Campaign, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"campaign", "system", "subject", "principal_id",
		"entitlement", "privilege_level", "privileged",
		"decision", "reason_code", "reviewer_id", "decided_at", "notes",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	for _, subject := range c.Subjects {
		for _, item := range subject.Items {
			decision := ""
			if item.Decision.Type != DecisionPending {
				decision = string(item.Decision.Type)
			}
			reviewer := ""
			if item.Decision.ReviewerID != nil {
				reviewer = strconv.FormatInt(*item.Decision.ReviewerID, 10)
			}
			decidedAt := ""
			if item.Decision.DecidedAt != nil {
				decidedAt = item.Decision.DecidedAt.UTC().Format(time.RFC3339)
			}
			row := []string{
				c.Name,
				c.SystemName,
				subject.DisplayName,
				strconv.FormatInt(subject.PrincipalID, 10),
				item.Entitlement,
				string(item.PrivilegeLevel),
				strconv.FormatBool(item.Privileged),
				decision,
				item.Decision.ReasonCode,
				reviewer,
				decidedAt,
				item.Decision.Notes,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write export row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSVBytes renders the export in memory.
func ExportCSVBytes(c *Campaign) ([]byte, error) {
	var buf bytes.Buffer
	if err := ExportCSV(c, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
