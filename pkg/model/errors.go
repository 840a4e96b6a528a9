package model

import "errors"

var (
	ErrInvalidState = errors.New("booking is not in a state that allows this change")
	ErrInvalidTime  = errors.New("booking time is not valid for this change")
)
