package services

import "errors"

var (
	ErrParsingFailed   = errors.New("parsing failed")
	ErrCompanyNotFound = errors.New("company not found")
)
