package core

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
