package replacer

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInvalidPattern ErrorKind = iota + 1
	KindLoad
	KindDeserialize
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPattern:
		return "invalid pattern"
	case KindLoad:
		return "load rules"
	case KindDeserialize:
		return "deserialize rules"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrLoadRules        = errors.New("cannot load rules")
	ErrDeserializeRules = errors.New("cannot deserialize rules")
)

// Error is the single failure type for rules that cannot be used, whether the
// pattern is bad or the resource holding the rules is missing or corrupt.
// Pattern is set for KindInvalidPattern, Source for the two loading kinds.
type Error struct {
	Kind    ErrorKind
	Pattern string
	Source  string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidPattern:
		return fmt.Sprintf("cannot compile pattern %q: %v", e.Pattern, e.Err)
	case KindLoad:
		return fmt.Sprintf("cannot load rules from %q: %v", e.Source, e.Err)
	case KindDeserialize:
		return fmt.Sprintf("cannot deserialize rules from %q: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidPattern:
		return e.Kind == KindInvalidPattern
	case ErrLoadRules:
		return e.Kind == KindLoad
	case ErrDeserializeRules:
		return e.Kind == KindDeserialize
	}
	return false
}
