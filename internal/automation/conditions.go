package automation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/models"
)

// EvaluateConditions AND-combines a condition list against nested data.
// An empty or nil list is vacuously true. Evaluation short-circuits on the
// first failing condition. No side effects; safe for concurrent use.
func EvaluateConditions(conditions []models.Condition, data map[string]interface{}) bool {
	for _, condition := range conditions {
		if !EvaluateCondition(condition, data) {
			return false
		}
	}
	return true
}

// EvaluateCondition evaluates a single predicate against nested data. The
// condition field is a dot-path into the data; a missing segment resolves to
// an absent value rather than an error. Unknown operators evaluate to false.
func EvaluateCondition(condition models.Condition, data map[string]interface{}) bool {
	fieldValue, exists := ResolveField(data, condition.Field)

	var result bool
	switch condition.Operator {
	case models.OperatorEquals:
		result = exists && compareValues(fieldValue, condition.Value)
	case models.OperatorNotEquals:
		result = !exists || !compareValues(fieldValue, condition.Value)
	case models.OperatorContains:
		result = containsValue(fieldValue, condition.Value)
	case models.OperatorNotContains:
		result = !containsValue(fieldValue, condition.Value)
	case models.OperatorGreaterThan:
		result = compareOrdered(fieldValue, condition.Value) > 0
	case models.OperatorLessThan:
		result = compareOrdered(fieldValue, condition.Value) < 0
	case models.OperatorRegexMatch:
		result = regexMatch(fieldValue, condition.Value)
	case models.OperatorInList:
		result = inList(fieldValue, condition.Value)
	case models.OperatorNotInList:
		result = !inList(fieldValue, condition.Value)
	case models.OperatorExists:
		result = exists && fieldValue != nil
	case models.OperatorNotExists:
		result = !exists || fieldValue == nil
	case models.OperatorBetween:
		result = betweenInclusive(fieldValue, condition.Value)
	default:
		result = false
	}

	if condition.Negate {
		return !result
	}
	return result
}

// ResolveField walks nested maps through each dot-separated path segment.
// The second return is false if any segment is missing or a non-map value is
// traversed before the path is exhausted.
func ResolveField(data map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	var current interface{} = data
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			if jm, isJSONMap := current.(models.JSONMap); isJSONMap {
				node = map[string]interface{}(jm)
			} else {
				return nil, false
			}
		}

		value, found := node[segment]
		if !found {
			return nil, false
		}
		current = value
	}

	return current, true
}

// compareValues compares two values for equality, unifying the numeric types
// that JSON decoding produces so 5 and 5.0 compare equal
func compareValues(a, b interface{}) bool {
	if aFloat, aOk := toFloat64(a); aOk {
		if bFloat, bOk := toFloat64(b); bOk {
			return aFloat == bFloat
		}
		return false
	}

	if aStr, ok := a.(string); ok {
		bStr, ok := b.(string)
		return ok && aStr == bStr
	}

	if aBool, ok := a.(bool); ok {
		bBool, ok := b.(bool)
		return ok && aBool == bBool
	}

	return a == b
}

// containsValue is a substring test for string fields and a membership test
// for list fields; any other field type evaluates to false
func containsValue(field, value interface{}) bool {
	switch f := field.(type) {
	case string:
		needle, ok := value.(string)
		return ok && strings.Contains(f, needle)
	case []interface{}:
		for _, item := range f {
			if compareValues(item, value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// compareOrdered returns -1, 0 or 1 comparing numerically when both sides are
// numbers and lexically when both are strings. Incomparable pairs return 0,
// which makes both greater_than and less_than false for them.
func compareOrdered(a, b interface{}) int {
	if aFloat, aOk := toFloat64(a); aOk {
		if bFloat, bOk := toFloat64(b); bOk {
			switch {
			case aFloat > bFloat:
				return 1
			case aFloat < bFloat:
				return -1
			default:
				return 0
			}
		}
		return 0
	}

	if aStr, aOk := a.(string); aOk {
		if bStr, bOk := b.(string); bOk {
			return strings.Compare(aStr, bStr)
		}
	}

	return 0
}

func regexMatch(field, value interface{}) bool {
	fieldStr, ok := field.(string)
	if !ok {
		return false
	}

	pattern, ok := value.(string)
	if !ok {
		return false
	}

	matched, err := regexp.MatchString(pattern, fieldStr)
	if err != nil {
		return false
	}
	return matched
}

func inList(field, value interface{}) bool {
	list, ok := value.([]interface{})
	if !ok {
		return false
	}

	for _, item := range list {
		if compareValues(field, item) {
			return true
		}
	}
	return false
}

// betweenInclusive expects value to be a two-element [lo, hi] list and tests
// lo <= field <= hi
func betweenInclusive(field, value interface{}) bool {
	bounds, ok := value.([]interface{})
	if !ok || len(bounds) != 2 {
		return false
	}

	fieldFloat, fieldOk := toFloat64(field)
	lo, loOk := toFloat64(bounds[0])
	hi, hiOk := toFloat64(bounds[1])
	if fieldOk && loOk && hiOk {
		return fieldFloat >= lo && fieldFloat <= hi
	}

	fieldStr, fieldOk := field.(string)
	loStr, loOk := bounds[0].(string)
	hiStr, hiOk := bounds[1].(string)
	if fieldOk && loOk && hiOk {
		return fieldStr >= loStr && fieldStr <= hiStr
	}

	return false
}

// toFloat64 converts the numeric types JSON decoding and Go literals produce
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
