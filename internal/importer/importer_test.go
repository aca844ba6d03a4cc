package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadXLSX_FirstSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Трек"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "KH-0001"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "ignored"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "KH-0002"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ReadRows("batch.XLSX", buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Трек", rows[0][0])
	require.Equal(t, []string{"KH-0001", "ignored"}, rows[1])
}

func TestReadCSV_RaggedRows(t *testing.T) {
	rows, err := ReadRows("batch.csv", strings.NewReader("tracking code\nKH-1,extra\n\nKH-2\n"))
	require.NoError(t, err)
	require.Equal(t, [][]string{{"tracking code"}, {"KH-1", "extra"}, {"KH-2"}}, rows)
}

func TestReadRows_Unsupported(t *testing.T) {
	_, err := ReadRows("batch.pdf", strings.NewReader(""))
	require.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = ReadRows("broken.xlsx", strings.NewReader("not a zip"))
	require.Error(t, err)
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReportCSV(&buf, &models.ImportLog{
		Errors:  []models.ImportIssue{{Code: "A", Reason: "INTERNAL_ERROR"}},
		Skipped: []models.ImportIssue{{Code: "B", Reason: "ALREADY_AT_STATUS_PICKED_UP"}},
	})
	require.NoError(t, err)
	require.Equal(t,
		"tracking_code,outcome,reason\nA,error,INTERNAL_ERROR\nB,skipped,ALREADY_AT_STATUS_PICKED_UP\n",
		buf.String())

	buf.Reset()
	require.NoError(t, WriteReportCSV(&buf, &models.ImportLog{}))
	require.Equal(t, "tracking_code,outcome,reason\n", buf.String())
}
