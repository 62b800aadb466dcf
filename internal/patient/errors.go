package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrDuplicatePatientName = errors.New("a patient with this name already exists")
	ErrMissingName          = errors.New("name is required")
	ErrMissingAge           = errors.New("age is required")
	ErrMissingRoom          = errors.New("room is required")
	ErrInvalidAge           = errors.New("age must be a number")
	ErrInvalidStatus        = errors.New("status must be active or inactive")
)
