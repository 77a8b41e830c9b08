package reviewer

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
)

// Predicate names one acceptance comparison.
type Predicate string

const (
	PredicateExists    Predicate = "exists"
	PredicateEquals    Predicate = "equals"
	PredicateContains  Predicate = "contains"
	PredicateMatches   Predicate = "matches"
	PredicateMinLength Predicate = "min_length"
	PredicateMaxLength Predicate = "max_length"
	PredicateGT        Predicate = "gt"
	PredicateLT        Predicate = "lt"
)

var validPredicates = map[Predicate]bool{
	PredicateExists:    true,
	PredicateEquals:    true,
	PredicateContains:  true,
	PredicateMatches:   true,
	PredicateMinLength: true,
	PredicateMaxLength: true,
	PredicateGT:        true,
	PredicateLT:        true,
}

// Criterion is one acceptance rule against a field of the output payload.
// Field supports dotted paths into nested objects.
type Criterion struct {
	Field     string    `yaml:"field" json:"field"`
	Predicate Predicate `yaml:"predicate" json:"predicate"`
	Value     any       `yaml:"value,omitempty" json:"value,omitempty"`
}

// AcceptanceSpec is the declarative acceptance contract for a task.
type AcceptanceSpec struct {
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
}

// LoadAcceptanceSpec reads an acceptance spec from a YAML file.
func LoadAcceptanceSpec(path string) (*AcceptanceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}

	var spec AcceptanceSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileUnmarshal, fmt.Sprintf("invalid acceptance spec %s", path), err)
	}
	return &spec, nil
}

// Validate checks the spec's criteria.
func (s *AcceptanceSpec) Validate() error {
	for i, c := range s.Criteria {
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("criterion %d: field cannot be empty", i)
		}
		if !validPredicates[c.Predicate] {
			return fmt.Errorf("criterion %d: unknown predicate %q", i, c.Predicate)
		}
		if c.Predicate != PredicateExists && c.Value == nil {
			return fmt.Errorf("criterion %d: predicate %q requires a value", i, c.Predicate)
		}
		if c.Predicate == PredicateMatches {
			pattern, ok := c.Value.(string)
			if !ok {
				return fmt.Errorf("criterion %d: matches requires a string pattern", i)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("criterion %d: invalid pattern: %w", i, err)
			}
		}
	}
	return nil
}

// checkAcceptance evaluates every criterion against the output payload.
// All criteria are evaluated even after the first failure so the report
// lists everything that is wrong at once.
func checkAcceptance(spec *AcceptanceSpec, output map[string]any) contract.ReviewCheck {
	start := time.Now()
	check := contract.ReviewCheck{Type: contract.CheckTypeAcceptance}
	defer func() { check.Duration = time.Since(start) }()

	if spec == nil || len(spec.Criteria) == 0 {
		check.Status = contract.CheckStatusPassed
		check.Detail = "no acceptance criteria declared"
		return check
	}

	var failures []string
	for _, criterion := range spec.Criteria {
		if ok, reason := evaluate(criterion, output); !ok {
			failures = append(failures, reason)
		}
	}

	if len(failures) > 0 {
		check.Status = contract.CheckStatusFailed
		check.Detail = strings.Join(failures, "; ")
		return check
	}

	check.Status = contract.CheckStatusPassed
	check.Detail = fmt.Sprintf("%d criteria satisfied", len(spec.Criteria))
	return check
}

func evaluate(c Criterion, output map[string]any) (bool, string) {
	value, found := lookupField(output, c.Field)

	if c.Predicate == PredicateExists {
		if !found {
			return false, fmt.Sprintf("field %s does not exist", c.Field)
		}
		return true, ""
	}
	if !found {
		return false, fmt.Sprintf("field %s does not exist", c.Field)
	}

	switch c.Predicate {
	case PredicateEquals:
		if !equalValues(value, c.Value) {
			return false, fmt.Sprintf("field %s: %v does not equal %v", c.Field, value, c.Value)
		}
	case PredicateContains:
		s, ok := value.(string)
		sub, okSub := c.Value.(string)
		if !ok || !okSub {
			return false, fmt.Sprintf("field %s: contains requires string operands", c.Field)
		}
		if !strings.Contains(s, sub) {
			return false, fmt.Sprintf("field %s: %q does not contain %q", c.Field, s, sub)
		}
	case PredicateMatches:
		s, ok := value.(string)
		if !ok {
			return false, fmt.Sprintf("field %s: matches requires a string field", c.Field)
		}
		pattern := c.Value.(string)
		matched, err := regexp.MatchString(pattern, s)
		if err != nil || !matched {
			return false, fmt.Sprintf("field %s: %q does not match %q", c.Field, s, pattern)
		}
	case PredicateMinLength, PredicateMaxLength:
		length, ok := lengthOf(value)
		if !ok {
			return false, fmt.Sprintf("field %s: length predicates require a string or array", c.Field)
		}
		bound, ok := toFloat(c.Value)
		if !ok {
			return false, fmt.Sprintf("field %s: length bound must be numeric", c.Field)
		}
		if c.Predicate == PredicateMinLength && float64(length) < bound {
			return false, fmt.Sprintf("field %s: length %d is below minimum %v", c.Field, length, c.Value)
		}
		if c.Predicate == PredicateMaxLength && float64(length) > bound {
			return false, fmt.Sprintf("field %s: length %d exceeds maximum %v", c.Field, length, c.Value)
		}
	case PredicateGT, PredicateLT:
		got, okGot := toFloat(value)
		want, okWant := toFloat(c.Value)
		if !okGot || !okWant {
			return false, fmt.Sprintf("field %s: numeric comparison requires numbers", c.Field)
		}
		if c.Predicate == PredicateGT && got <= want {
			return false, fmt.Sprintf("field %s: %v is not greater than %v", c.Field, value, c.Value)
		}
		if c.Predicate == PredicateLT && got >= want {
			return false, fmt.Sprintf("field %s: %v is not less than %v", c.Field, value, c.Value)
		}
	}
	return true, ""
}

// lookupField resolves a dotted path into nested output objects.
func lookupField(output map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = output
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equalValues compares loosely across JSON and YAML decodings: numbers
// compare numerically regardless of concrete type.
func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, okB := toFloat(b); okB {
			return fa == fb
		}
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func lengthOf(v any) (int, bool) {
	switch val := v.(type) {
	case string:
		return len(val), true
	case []any:
		return len(val), true
	case map[string]any:
		return len(val), true
	default:
		return 0, false
	}
}
