package models

import "github.com/pkg/errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidArgument   = errors.New("invalid argument")
	// ErrStaleStatus: статус изменился между чтением и записью (проиграли CAS).
	ErrStaleStatus = errors.New("status changed concurrently")
)
