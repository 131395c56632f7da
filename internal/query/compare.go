package query

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tobsdb/tobsql/internal/types"
	"github.com/tobsdb/tobsql/pkg"
)

type Operator string

const (
	OpEq      Operator = "="
	OpNeq     Operator = "!="
	OpGt      Operator = ">"
	OpLt      Operator = "<"
	OpGte     Operator = ">="
	OpLte     Operator = "<="
	OpIn      Operator = "IN"
	OpNotIn   Operator = "NOT IN"
	OpLike    Operator = "LIKE"
	OpRegex   Operator = "REGEX"
	OpBetween Operator = "BETWEEN"
	OpHave    Operator = "HAVE"
)

var VALID_OPERATORS = []Operator{
	OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte, OpIn, OpNotIn,
	OpLike, OpRegex, OpBetween, OpHave,
}

// ParseOperator accepts operators in any case and with any inner spacing.
func ParseOperator(raw string) (Operator, bool) {
	op := Operator(strings.Join(strings.Fields(strings.ToUpper(raw)), " "))
	if op == "REGEXP" {
		op = OpRegex
	}
	for _, valid := range VALID_OPERATORS {
		if op == valid {
			return op, true
		}
	}
	return "", false
}

var regex_cache, _ = lru.New[string, *regexp.Regexp](256)

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := regex_cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regex_cache.Add(pattern, re)
	return re, nil
}

const (
	Match   = 0
	NoMatch = 1
)

// Compare checks a row's field against a query literal. The literal comes
// first but operators read with the field on the left, so
// Compare(25, ">", 30) matches because 30 > 25.
func Compare(literal any, op Operator, field any) int {
	if compare(literal, op, field) {
		return Match
	}
	return NoMatch
}

func compare(literal any, op Operator, field any) bool {
	switch op {
	case OpEq:
		return pkg.EqualAny(field, literal)
	case OpNeq:
		return !pkg.EqualAny(field, literal)
	case OpGt:
		c, ok := ordered(field, literal)
		return ok && c > 0
	case OpLt:
		c, ok := ordered(field, literal)
		return ok && c < 0
	case OpGte:
		c, ok := ordered(field, literal)
		return ok && c >= 0
	case OpLte:
		c, ok := ordered(field, literal)
		return ok && c <= 0
	case OpIn:
		return contains(literal, field)
	case OpNotIn:
		if _, ok := pkg.AsSlice(literal); !ok {
			return false
		}
		return !contains(literal, field)
	case OpLike:
		if field == nil {
			return false
		}
		return strings.Contains(
			strings.ToLower(toString(field)),
			strings.ToLower(toString(literal)),
		)
	case OpRegex:
		if field == nil {
			return false
		}
		re, err := compileRegex(toString(literal))
		if err != nil {
			return false
		}
		return re.MatchString(toString(field))
	case OpBetween:
		bounds, ok := pkg.AsSlice(literal)
		if !ok || len(bounds) != 2 {
			return false
		}
		lo, ok_lo := ordered(field, bounds[0])
		hi, ok_hi := ordered(field, bounds[1])
		return ok_lo && ok_hi && lo > 0 && hi < 0
	case OpHave:
		return contains(field, literal)
	}
	return false
}

// ordered compares two numbers or two strings.
func ordered(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	ra, rb := pkg.TypeRank(a), pkg.TypeRank(b)
	if ra != rb || (!pkg.IsNumber(a) && !isString(a)) {
		return 0, false
	}
	return pkg.CompareAny(a, b), true
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return types.String.Cast(v).(string)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func contains(list any, v any) bool {
	items, ok := pkg.AsSlice(list)
	if !ok {
		return false
	}
	for _, item := range items {
		if pkg.EqualAny(item, v) {
			return true
		}
	}
	return false
}
