package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"github.com/condohub/condohub/internal/ledger"
)

var csvHeader = []string{"created_at", "action", "resource", "resource_id", "user_id", "condominium_id", "success", "error_message", "new_values"}

// WriteCSV renders entries as CSV with a header row.
func WriteCSV(rows []ledger.AuditLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		newValues := ""
		if row.NewValues != nil {
			raw, err := json.Marshal(row.NewValues)
			if err != nil {
				return nil, err
			}
			newValues = string(raw)
		}
		record := []string{
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.Action,
			row.Resource,
			row.ResourceID,
			optionalInt(row.UserID),
			optionalInt(row.CondominiumID),
			strconv.FormatBool(row.Success),
			row.ErrorMessage,
			newValues,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
