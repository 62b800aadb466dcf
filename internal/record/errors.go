package record

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidBackup  = errors.New("invalid backup data format")
	ErrMissingName    = errors.New("name is required")
	ErrMissingAge     = errors.New("age is required")
	ErrMissingRoom    = errors.New("room is required")
	ErrInvalidMeal    = errors.New("meal status must be 吃完, 吃一半 or 未進食")
	ErrInvalidSleep   = errors.New("sleep quality must be 好, 中 or 差")
)
