package reviewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/felixgeelhaar/conductor/internal/contract"
)

// checkSchema validates the task's output payload against the tool's
// declared output schema. A violation fails the check; a schema that
// cannot itself be interpreted errors the check instead, so a broken
// contract is never mistaken for a broken tool.
func checkSchema(ctx context.Context, spec *contract.ToolSpec, output map[string]any) contract.ReviewCheck {
	start := time.Now()
	check := contract.ReviewCheck{Type: contract.CheckTypeSchema}
	defer func() { check.Duration = time.Since(start) }()

	if spec == nil || spec.Output == nil {
		check.Status = contract.CheckStatusPassed
		check.Detail = "tool declares no output schema"
		return check
	}

	if err := spec.Output.Validate(ctx); err != nil {
		check.Status = contract.CheckStatusError
		check.Detail = fmt.Sprintf("output schema is malformed: %v", err)
		return check
	}

	err := spec.Output.VisitJSON(normalizeForSchema(output), openapi3.MultiErrors())
	if err != nil {
		check.Status = contract.CheckStatusFailed
		check.Detail = describeSchemaError(err)
		return check
	}

	check.Status = contract.CheckStatusPassed
	return check
}

// describeSchemaError names the offending field so the report is
// actionable without re-reading the schema.
func describeSchemaError(err error) string {
	var details []string

	var collect func(err error)
	collect = func(err error) {
		switch e := err.(type) {
		case openapi3.MultiError:
			for _, inner := range e {
				collect(inner)
			}
		case *openapi3.SchemaError:
			field := strings.Join(e.JSONPointer(), ".")
			if field == "" {
				field = "(root)"
			}
			details = append(details, fmt.Sprintf("field %s: %s", field, e.Reason))
		default:
			details = append(details, err.Error())
		}
	}
	collect(err)

	return strings.Join(details, "; ")
}

// normalizeForSchema converts the payload into the generic JSON shapes the
// validator expects. Integers decoded into int by earlier layers become
// float64 here, matching encoding/json semantics.
func normalizeForSchema(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = normalizeForSchema(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = normalizeForSchema(inner)
		}
		return out
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}
