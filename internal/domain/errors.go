package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPage = errors.New("malformed listing page")
	ErrDataIntegrity = errors.New("data integrity violation")
)

// FetchError is a transient failure fetching one listing page. CategoryIndex
// and Offset identify where a retry should resume.
type FetchError struct {
	Category      string
	CategoryIndex int
	Offset        int
	Err           error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s at offset %d: %v", e.Category, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedPageError aborts the crawl of one category.
type MalformedPageError struct {
	Category string
	Offset   int
	Reason   string
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("%s: category %s offset %d: %s", ErrMalformedPage, e.Category, e.Offset, e.Reason)
}

func (e *MalformedPageError) Is(target error) bool { return target == ErrMalformedPage }

// DataIntegrityError rejects a paper that cannot be ranked.
type DataIntegrityError struct {
	Index  int
	Title  string
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%s: paper #%d %q: %s %s", ErrDataIntegrity, e.Index, e.Title, e.Field, e.Reason)
}

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }
