// Package export writes generated rows to their destinations: a folder of
// CSV files or a relational store reachable through database/sql.
package export

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// FormatValue renders a generated value as CSV text. Bytes are base64.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}
