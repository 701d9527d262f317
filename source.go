package replacer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatTOML
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	case FormatText:
		return "text"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatFromPath picks the rule file format from the extension. Anything
// unrecognized is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".rules", ".txt":
		return FormatText
	}
	return FormatJSON
}

func LoadRules(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Source: path, Err: err}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Source: path, Err: err}
	}
	rules, err := decodeRules(data, FormatFromPath(path))
	if err != nil {
		return nil, &Error{Kind: KindDeserialize, Source: path, Err: err}
	}
	return rules, nil
}

func LoadRuleSet(path string, opts ...CompileOptions) (*RuleSet, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return CompileAll(rules, opts...)
}

func ParseRules(r io.Reader, format Format) ([]Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Source: format.String(), Err: err}
	}
	rules, err := decodeRules(data, format)
	if err != nil {
		return nil, &Error{Kind: KindDeserialize, Source: format.String(), Err: err}
	}
	return rules, nil
}

// rawRule uses pointers so a missing or null field can be told apart from an
// empty string.
type rawRule struct {
	Pattern     *string `json:"pattern" toml:"pattern"`
	Replacement *string `json:"replacement" toml:"replacement"`
}

// yamlString only accepts YAML string scalars. Plain yaml.v3 decoding would
// turn 1 or true into "1" or "true".
type yamlString string

func (s *yamlString) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!str" {
		return fmt.Errorf("line %d: expected a string, got %s", value.Line, value.ShortTag())
	}
	*s = yamlString(value.Value)
	return nil
}

type yamlRule struct {
	Pattern     *yamlString `yaml:"pattern"`
	Replacement *yamlString `yaml:"replacement"`
}

// decodeRules rejects a document that holds no rule list at all (empty input,
// null, a missing rules key). An explicitly empty list is fine.
func decodeRules(data []byte, format Format) ([]Rule, error) {
	var raw []rawRule
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, errors.New("expected a JSON array of rules")
		}
	case FormatYAML:
		var doc []yamlRule
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, errors.New("expected a YAML sequence of rules")
		}
		raw = make([]rawRule, len(doc))
		for i, r := range doc {
			raw[i] = rawRule{Pattern: (*string)(r.Pattern), Replacement: (*string)(r.Replacement)}
		}
	case FormatTOML:
		var doc struct {
			Rules *[]rawRule `toml:"rules"`
		}
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Rules == nil {
			return nil, errors.New("expected a `rules` array of tables")
		}
		raw = *doc.Rules
	case FormatText:
		return parseTextRules(data)
	default:
		return nil, fmt.Errorf("unknown rule format %v", format)
	}
	rules := make([]Rule, 0, len(raw))
	for i, r := range raw {
		if r.Pattern == nil {
			return nil, fmt.Errorf("rule %d: missing field `pattern`", i)
		}
		if r.Replacement == nil {
			return nil, fmt.Errorf("rule %d: missing field `replacement`", i)
		}
		rules = append(rules, Rule{Pattern: *r.Pattern, Replacement: *r.Replacement})
	}
	return rules, nil
}

// parseTextRules reads the line format:
//
//	rules:
//	pattern -> replacement
//
// The rules: header is optional, but a file with neither header nor rules is
// rejected. Blank lines and lines starting with # are skipped. The line is split at the first ->, and both sides are trimmed, so
// in this format a pattern cannot contain -> or start or end with whitespace.
func parseTextRules(data []byte) ([]Rule, error) {
	s := bufio.NewScanner(bytes.NewReader(data))
	s.Split(bufio.ScanLines)
	var rules []Rule
	sawHeader := false
	lineNo := 0
	for s.Scan() {
		lineNo++
		curLine := strings.TrimSpace(s.Text())
		switch {
		case curLine == "", strings.HasPrefix(curLine, "#"):
			// ignore empty lines and comments
		case curLine == "rules:":
			if len(rules) > 0 {
				return nil, fmt.Errorf("line %d: rules: header after rules", lineNo)
			}
			sawHeader = true
		default:
			in, out, found := strings.Cut(curLine, "->")
			if !found {
				return nil, fmt.Errorf("line %d: expected `pattern -> replacement`, got %q", lineNo, curLine)
			}
			rules = append(rules, Rule{
				Pattern:     strings.TrimSpace(in),
				Replacement: strings.TrimSpace(out),
			})
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if rules == nil && !sawHeader {
		return nil, errors.New("no rules: header and no rules")
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}
