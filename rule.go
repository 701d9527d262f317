// Package replacer compiles ordered regular-expression substitution rules
// and applies them to text, each rule working on the output of the last.
package replacer

type Rule struct {
	Pattern     string `json:"pattern" yaml:"pattern" toml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement" toml:"replacement"`
}

// CompiledRule pairs a compiled pattern with its raw replacement template.
type CompiledRule struct {
	pattern     matcher
	replacement string
}

func (cr CompiledRule) Pattern() string {
	if cr.pattern == nil {
		return ""
	}
	return cr.pattern.String()
}

func (cr CompiledRule) Replacement() string {
	return cr.replacement
}

// RuleSet is an ordered sequence of compiled rules. It is never modified
// after CompileAll returns it, so one RuleSet can be shared between
// goroutines. A nil *RuleSet is the empty set.
type RuleSet struct {
	rules []CompiledRule
}

func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

func (rs *RuleSet) Rules() []CompiledRule {
	if rs == nil {
		return nil
	}
	out := make([]CompiledRule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

func compileOptions(opts []CompileOptions) CompileOptions {
	if len(opts) == 0 {
		return CompileOptions{}
	}
	return opts[0]
}

func CompileOne(rule Rule, opts ...CompileOptions) (CompiledRule, error) {
	m, err := compileMatcher(rule.Pattern, compileOptions(opts))
	if err != nil {
		return CompiledRule{}, &Error{Kind: KindInvalidPattern, Pattern: rule.Pattern, Err: err}
	}
	return CompiledRule{pattern: m, replacement: rule.Replacement}, nil
}

// CompileAll compiles rules in order and stops at the first invalid pattern.
// On error no RuleSet is returned, so callers never see a partial set.
func CompileAll(rules []Rule, opts ...CompileOptions) (*RuleSet, error) {
	compiled := make([]CompiledRule, 0, len(rules))
	for _, rule := range rules {
		cr, err := CompileOne(rule, opts...)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, cr)
	}
	return &RuleSet{rules: compiled}, nil
}
