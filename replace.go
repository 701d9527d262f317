package replacer

// Apply runs every rule of rs over text in order. Each rule sees the output of
// the rule before it, so rule order changes the result.
func Apply(rs *RuleSet, text string) string {
	if rs.Len() == 0 || text == "" {
		return text
	}
	out := text
	for _, rule := range rs.rules {
		out = rule.pattern.ReplaceAllString(out, rule.replacement)
	}
	return out
}

func (rs *RuleSet) Apply(text string) string {
	return Apply(rs, text)
}
