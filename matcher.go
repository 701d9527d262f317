package replacer

import (
	"fmt"
	"github.com/dlclark/regexp2"
	"regexp"
	"strings"
	"time"
)

type Engine int

const (
	// EngineRE2 is Go's regexp package: RE2 syntax, linear-time matching.
	EngineRE2 Engine = iota
	// EngineRegexp2 is a backtracking engine with .NET syntax, for patterns
	// that need lookaround or backreferences. Backtracking can take
	// exponential time on some patterns; bound it with
	// CompileOptions.MatchTimeout.
	EngineRegexp2
)

func (e Engine) String() string {
	switch e {
	case EngineRE2:
		return "re2"
	case EngineRegexp2:
		return "regexp2"
	}
	return fmt.Sprintf("Engine(%d)", int(e))
}

func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "re2", "regexp":
		return EngineRE2, nil
	case "regexp2", "dotnet", ".net":
		return EngineRegexp2, nil
	}
	return 0, fmt.Errorf("unknown regular expression engine %q", s)
}

type CompileOptions struct {
	Engine Engine
	// MatchTimeout bounds each EngineRegexp2 replacement. When it fires the
	// rule leaves its input unchanged. Zero means no limit. EngineRE2 runs in
	// linear time and ignores it.
	MatchTimeout time.Duration
}

// matcher is the part of a compiled pattern the substitution engine needs.
// Implementations are immutable and safe for concurrent use.
type matcher interface {
	ReplaceAllString(src, repl string) string
	String() string
}

func compileMatcher(pattern string, opts CompileOptions) (matcher, error) {
	switch opts.Engine {
	case EngineRE2:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		return re, nil
	case EngineRegexp2:
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, err
		}
		if opts.MatchTimeout > 0 {
			re.MatchTimeout = opts.MatchTimeout
		}
		return dotnetMatcher{re: re}, nil
	}
	return nil, fmt.Errorf("unknown regular expression engine %v", opts.Engine)
}

type dotnetMatcher struct {
	re *regexp2.Regexp
}

func (m dotnetMatcher) ReplaceAllString(src, repl string) string {
	// Replace only fails when MatchTimeout fires.
	out, err := m.re.Replace(src, repl, -1, -1)
	if err != nil {
		return src
	}
	return out
}

func (m dotnetMatcher) String() string {
	return m.re.String()
}
