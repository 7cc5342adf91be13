package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks problems with the run's inputs; nothing downstream runs.
	ErrInput = errors.New("invalid input")

	ErrInvalidWindow  = fmt.Errorf("%w: date window", ErrInput)
	ErrNoStores       = fmt.Errorf("%w: no stores selected", ErrInput)
	ErrInvalidRanking = fmt.Errorf("%w: ranking", ErrInput)
	ErrInvalidFactor  = fmt.Errorf("%w: adjustment factor", ErrInput)

	// ErrReport is terminal for the summary only; the full dump is unaffected.
	ErrReport    = errors.New("report generation failed")
	ErrNoRecords = fmt.Errorf("%w: no rate records", ErrReport)
)
