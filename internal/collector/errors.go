package collector

import (
	"errors"
	"fmt"
)

var (
	// ErrParse обязательное поле источника прочитать невозможно
	ErrParse = errors.New("parse failure")

	// ErrSourceUnavailable основного источника нет, а подмена отключена
	ErrSourceUnavailable = errors.New("counter source unavailable")
)

// ParseError описывает фатальную ошибку разбора источника
type ParseError struct {
	Source string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять любую ParseError через errors.Is(err, ErrParse)
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func parseError(source, reason string, err error) error {
	return &ParseError{Source: source, Reason: reason, Err: err}
}
