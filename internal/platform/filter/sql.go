package filter

import (
	"fmt"
	"strings"

	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition has no clause.
func (c SQLCondition) Empty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

// ToSQL translates e into a parameterized SQL condition. columns maps filter
// field names to column expressions; fields missing from columns are rejected.
func ToSQL(e *expr.Expr, columns map[string]string) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr, columns)
	default:
		return SQLCondition{}, fmt.Errorf("%w: expression type %T", ErrUnsupported, kind)
	}
}

func translateCall(call *expr.Expr_Call, columns map[string]string) (SQLCondition, error) {
	fn := call.GetFunction()
	switch {
	case isAnd(fn):
		return translateJoin(call.GetArgs(), columns, "AND")
	case isOr(fn):
		return translateJoin(call.GetArgs(), columns, "OR")
	case isNot(fn):
		if len(call.GetArgs()) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := ToSQL(call.GetArgs()[0], columns)
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	}

	op, ok := comparisons[fn]
	if !ok {
		return SQLCondition{}, fmt.Errorf("%w: function %s", ErrUnsupported, fn)
	}
	return translateComparison(call.GetArgs(), columns, op)
}

func translateJoin(args []*expr.Expr, columns map[string]string, joiner string) (SQLCondition, error) {
	if len(args) < 2 {
		return SQLCondition{}, fmt.Errorf("%s requires at least 2 arguments", joiner)
	}
	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		cond, err := ToSQL(arg, columns)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	return SQLCondition{
		Clause: "(" + strings.Join(clauses, " "+joiner+" ") + ")",
		Params: params,
	}, nil
}

func translateComparison(args []*expr.Expr, columns map[string]string, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	column, ok := columns[field]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", field)
	}
	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	if b, ok := value.(bool); ok {
		// SQLite stores booleans as integers.
		if b {
			value = 1
		} else {
			value = 0
		}
	}

	if op == ":" {
		text, ok := value.(string)
		if !ok {
			return SQLCondition{}, fmt.Errorf("%w: has operator needs a string", ErrUnsupported)
		}
		return SQLCondition{
			Clause: fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", column),
			Params: []any{"%" + EscapeLike(strings.ToLower(text)) + "%"},
		}, nil
	}
	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

// EscapeLike escapes LIKE wildcards so value matches literally with ESCAPE '\'.
func EscapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
