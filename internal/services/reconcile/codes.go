package reconcile

import (
	"strings"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

// headerSentinels: значения заголовка первой колонки, сравниваются без учёта регистра.
var headerSentinels = map[string]struct{}{
	"trackingcode":  {},
	"tracking code": {},
	"номер":         {},
	"трек":          {},
}

// ExtractCodes берёт первую колонку каждой строки, обрезает пробелы,
// выкидывает пустые ячейки и заголовки, убирает точные дубли.
// Порядок: порядок первого появления.
func ExtractCodes(rows [][]string) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		code := strings.TrimSpace(row[0])
		if code == "" {
			continue
		}
		if _, ok := headerSentinels[strings.ToLower(code)]; ok {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.Wrap(models.ErrInvalidArgument, "trackingCode is required")
	}
	return code, nil
}
