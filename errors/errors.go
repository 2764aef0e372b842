package errors

import "fmt"

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrRoomNotFound = fmt.Errorf("room not found")
	ErrInvalidPhase = fmt.Errorf("command not valid in current phase")
	ErrEmptyWords   = fmt.Errorf("no flagged words have been provided")
)
