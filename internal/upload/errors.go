package upload

import "errors"

var (
	ErrNotFound      = errors.New("upload: task not found")
	ErrInvalidInput  = errors.New("upload: invalid input")
	ErrChunkIndex    = errors.New("upload: chunk index out of range")
	ErrChunkSize     = errors.New("upload: chunk has wrong size")
	ErrTaskTerminal  = errors.New("upload: task already finished")
	ErrTaskFinalized = errors.New("upload: task is finalizing")
	ErrTooLarge      = errors.New("upload: file exceeds size limit")
	ErrNotAnFCSFile  = errors.New("upload: first chunk is not an FCS file")
)
