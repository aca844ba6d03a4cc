package importer

import (
	"encoding/csv"
	"io"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"
)

const (
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

type reportRow struct {
	Code    string `csv:"tracking_code"`
	Outcome string `csv:"outcome"`
	Reason  string `csv:"reason"`
}

// WriteReportCSV выгружает отклонённые коды импорта: сначала ошибки, потом пропуски.
func WriteReportCSV(w io.Writer, log *models.ImportLog) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(reportRow{}); err != nil {
		return errors.Wrap(err, "encode report header")
	}
	for _, it := range log.Errors {
		if err := enc.Encode(reportRow{Code: it.Code, Outcome: OutcomeError, Reason: it.Reason}); err != nil {
			return errors.Wrap(err, "encode report row")
		}
	}
	for _, it := range log.Skipped {
		if err := enc.Encode(reportRow{Code: it.Code, Outcome: OutcomeSkipped, Reason: it.Reason}); err != nil {
			return errors.Wrap(err, "encode report row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush report")
}
