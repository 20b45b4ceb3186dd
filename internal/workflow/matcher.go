package workflow

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// Matches reports whether every condition holds for t. An empty list
// matches everything. Malformed conditions evaluate to false; Matches never
// panics on rule data.
func Matches(t *domain.Ticket, conditions []domain.Condition) bool {
	for _, cond := range conditions {
		if !matchCondition(t, cond) {
			return false
		}
	}
	return true
}

func matchCondition(t *domain.Ticket, cond domain.Condition) bool {
	actual, ok := FieldValue(t, cond.Field)
	if !ok {
		return false
	}
	switch cond.Operator {
	case domain.OperatorEquals:
		return strictEqual(actual, cond.Value)
	case domain.OperatorContains:
		return strings.Contains(strings.ToLower(toText(actual)), strings.ToLower(toText(cond.Value)))
	case domain.OperatorGreaterThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(cond.Value)
		return okA && okB && a > b
	case domain.OperatorLessThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(cond.Value)
		return okA && okB && a < b
	case domain.OperatorIn:
		return memberOf(actual, cond.Value)
	}
	return false
}

// scalar folds named string and numeric types into string/float64/bool.
// Other kinds are returned unchanged and reported as non-scalar.
func scalar(v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return v, false
}

// strictEqual compares without type coercion: "5" never equals 5.
func strictEqual(actual, expected any) bool {
	a, okA := scalar(actual)
	b, okB := scalar(expected)
	if !okA || !okB {
		return false
	}
	return a == b
}

func toText(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = toText(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}
	s, _ := scalar(v)
	switch x := s.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func toNumber(v any) (float64, bool) {
	s, ok := scalar(v)
	if !ok {
		return 0, false
	}
	var f float64
	switch x := s.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func memberOf(actual, set any) bool {
	if set == nil {
		return false
	}
	rv := reflect.ValueOf(set)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if strictEqual(actual, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}
