package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/BearBump/CargoTrack/internal/importer"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/events"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
)

type ImportInput struct {
	FileName string
	Rows     [][]string
	Target   models.TrackingStatus
}

type ImportResult struct {
	ImportLogID  int64                `json:"importLogId"`
	TotalRows    int                  `json:"totalRows"`
	SuccessCount int                  `json:"successCount"`
	ErrorCount   int                  `json:"errorCount"`
	SkippedCount int                  `json:"skippedCount"`
	Success      []string             `json:"success"`
	Errors       []models.ImportIssue `json:"errors"`
	Skipped      []models.ImportIssue `json:"skipped"`
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeSkipped
	outcomeError
)

func skippedReason(s models.TrackingStatus) string {
	return "ALREADY_AT_STATUS_" + string(s)
}

// ImportFile разбирает файл и запускает Import. Ошибка чтения файла -
// ошибка входа, импорт не начинается.
func (s *Service) ImportFile(ctx context.Context, fileName string, r io.Reader, target models.TrackingStatus, actor models.Actor) (*ImportResult, error) {
	if !actor.IsSuperAdmin() {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	rows, err := importer.ReadRows(fileName, r)
	if err != nil {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "read %q: %v", fileName, err)
	}
	return s.Import(ctx, ImportInput{FileName: fileName, Rows: rows, Target: target}, actor)
}

// Import обрабатывает каждый уникальный код в своей транзакции. Сбой одного
// кода попадает в Errors и не останавливает пакет.
func (s *Service) Import(ctx context.Context, in ImportInput, actor models.Actor) (*ImportResult, error) {
	if !actor.IsSuperAdmin() {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	if err := validTarget(in.Target); err != nil {
		return nil, err
	}

	codes := ExtractCodes(in.Rows)
	res := &ImportResult{
		TotalRows: len(codes),
		Success:   make([]string, 0, len(codes)),
		Errors:    make([]models.ImportIssue, 0),
		Skipped:   make([]models.ImportIssue, 0),
	}

	for _, code := range codes {
		out, reason := s.importCode(ctx, code, in.Target, actor)
		switch out {
		case outcomeSuccess:
			res.Success = append(res.Success, code)
		case outcomeSkipped:
			res.Skipped = append(res.Skipped, models.ImportIssue{Code: code, Reason: reason})
		case outcomeError:
			res.Errors = append(res.Errors, models.ImportIssue{Code: code, Reason: reason})
		}
	}
	res.SuccessCount = len(res.Success)
	res.ErrorCount = len(res.Errors)
	res.SkippedCount = len(res.Skipped)

	log := &models.ImportLog{
		FileName:     in.FileName,
		UploadedBy:   actor.ID,
		TargetStatus: in.Target,
		TotalRows:    res.TotalRows,
		SuccessCount: res.SuccessCount,
		ErrorCount:   res.ErrorCount,
		SkippedCount: res.SkippedCount,
		Errors:       res.Errors,
		Skipped:      res.Skipped,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateImportLog(ctx, log); err != nil {
		return nil, errors.Wrap(err, "save import log")
	}
	res.ImportLogID = log.ID

	slog.Info("import complete",
		"import_log_id", log.ID,
		"file", in.FileName,
		"target", in.Target,
		"total", res.TotalRows,
		"success", res.SuccessCount,
		"errors", res.ErrorCount,
		"skipped", res.SkippedCount,
	)
	return res, nil
}

// importCode: upsert мастер-листа + продвижение посылки + история в одной транзакции.
func (s *Service) importCode(ctx context.Context, code string, target models.TrackingStatus, actor models.Actor) (out outcome, reason string) {
	var changes []events.Change

	defer func() {
		if p := recover(); p != nil {
			slog.Error("import code panicked", "code", code, "panic", fmt.Sprint(p))
			out, reason = outcomeError, ReasonInternalError
		}
	}()

	now := s.now()
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		changes = changes[:0]
		out, reason = outcomeSuccess, ""

		milestone, _ := target.Milestone()
		entry, err := tx.UpsertManifest(ctx, code, milestone, now)
		if err != nil {
			return err
		}

		items, err := tx.LockItemsByCode(ctx, code)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		advanced := 0
		for _, item := range items {
			if models.AtOrBeyond(item.CurrentStatus, target) {
				if reason == "" {
					reason = skippedReason(item.CurrentStatus)
				}
				continue
			}
			ch, err := s.advanceItem(ctx, tx, item, target, entry, models.SourceExcelImport, actor, now)
			if err != nil {
				return err
			}
			changes = append(changes, ch)
			advanced++
		}
		if advanced == 0 {
			out = outcomeSkipped
		} else {
			reason = ""
		}
		return nil
	})
	if err != nil {
		slog.Error("import code failed", "code", code, "err", err)
		return outcomeError, ReasonInternalError
	}

	s.events.StatusChanged(ctx, changes...)
	return out, reason
}

func (s *Service) advanceItem(
	ctx context.Context,
	tx storage.Store,
	item *models.TrackingItem,
	target models.TrackingStatus,
	entry *models.ManifestEntry,
	source models.StatusSource,
	actor models.Actor,
	now time.Time,
) (events.Change, error) {
	prev := item.CurrentStatus
	updated, err := tx.UpdateItem(ctx, item.ID, prev, advance(target, entry))
	if err != nil {
		return events.Change{}, err
	}
	rec := &models.StatusHistoryRecord{
		TrackingItemID: item.ID,
		PreviousStatus: &prev,
		NewStatus:      target,
		ChangedBy:      actor.ID,
		Source:         source,
		CreatedAt:      now,
	}
	if err := tx.AppendHistory(ctx, rec); err != nil {
		return events.Change{}, err
	}
	return events.Change{Item: updated, Record: rec}, nil
}
