package tidb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Filters expresses query predicates in operator form: {"name": "x"} for
// equality, {"age": {"$gte": 18}} for comparisons, {"$or": [...]} for
// disjunctions. Keys of the form "column.field" address fields inside JSON
// columns.
type Filters map[string]any

// Filter operators. Keys are matched case-insensitively.
const (
	opAnd = "$and"
	opOr  = "$or"
	opEq  = "$eq"
	opNe  = "$ne"
	opGt  = "$gt"
	opGte = "$gte"
	opLt  = "$lt"
	opLte = "$lte"
	opIn  = "$in"
	opNin = "$nin"
)

var jsonFieldPattern = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)$`)

// CompileFilters renders filters into a WHERE clause body and its bind
// arguments. Top-level entries combine with AND; an empty filter compiles
// to an empty clause. Filter keys iterate in sorted order so the same
// filter always produces the same SQL.
func CompileFilters(filters Filters) (string, []any, error) {
	clauses, args, err := compileFilterSet(filters)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(clauses, " AND "), args, nil
}

func compileFilterSet(filters Filters) ([]string, []any, error) {
	var clauses []string
	var args []any

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filters[key]
		switch {
		case strings.EqualFold(key, opAnd):
			clause, groupArgs, err := compileGroup(opAnd, value, " AND ")
			if err != nil {
				return nil, nil, err
			}
			if clause != "" {
				clauses = append(clauses, clause)
				args = append(args, groupArgs...)
			}
		case strings.EqualFold(key, opOr):
			clause, groupArgs, err := compileGroup(opOr, value, " OR ")
			if err != nil {
				return nil, nil, err
			}
			if clause != "" {
				clauses = append(clauses, clause)
				args = append(args, groupArgs...)
			}
		default:
			column, err := columnExpr(key)
			if err != nil {
				return nil, nil, err
			}
			conds := asConditions(value)
			clause, condArgs, err := compileColumn(column, conds)
			if err != nil {
				return nil, nil, err
			}
			if clause != "" {
				clauses = append(clauses, clause)
				args = append(args, condArgs...)
			}
		}
	}
	return clauses, args, nil
}

// compileGroup handles $and/$or lists. Each list item is a filter object;
// its clauses combine with AND, and the items join with sep. Empty lists
// and empty items drop out.
func compileGroup(op string, value any, sep string) (string, []any, error) {
	items, err := asFilterList(op, value)
	if err != nil {
		return "", nil, err
	}
	var parts []string
	var args []any
	for _, item := range items {
		clauses, itemArgs, err := compileFilterSet(item)
		if err != nil {
			return "", nil, err
		}
		if len(clauses) == 0 {
			continue
		}
		part := strings.Join(clauses, " AND ")
		if len(clauses) > 1 {
			part = "(" + part + ")"
		}
		parts = append(parts, part)
		args = append(args, itemArgs...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func asFilterList(op string, value any) ([]Filters, error) {
	switch v := value.(type) {
	case []Filters:
		return v, nil
	case []map[string]any:
		out := make([]Filters, len(v))
		for i, m := range v {
			out[i] = Filters(m)
		}
		return out, nil
	case []any:
		out := make([]Filters, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case Filters:
				out = append(out, m)
			case map[string]any:
				out = append(out, Filters(m))
			default:
				return nil, fmt.Errorf("expected a list of filter objects for %s operator, got %T", op, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list value for %s operator, got %T", op, value)
	}
}

func asConditions(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case Filters:
		return v
	default:
		// Bare values mean equality.
		return map[string]any{opEq: value}
	}
}

// columnExpr resolves a filter key to a SQL expression: either a plain
// quoted column, or a JSON_EXTRACT over a JSON column for "column.field"
// keys.
func columnExpr(key string) (string, error) {
	if identifierPattern.MatchString(key) {
		return QuoteIdentifier(key), nil
	}
	if m := jsonFieldPattern.FindStringSubmatch(key); m != nil {
		return fmt.Sprintf("JSON_EXTRACT(%s, '$.%s')", QuoteIdentifier(m[1]), m[2]), nil
	}
	return "", fmt.Errorf("got unexpected filter key %q, please use a valid column name instead", key)
}

func compileColumn(column string, conds map[string]any) (string, []any, error) {
	ops := make([]string, 0, len(conds))
	for op := range conds {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var parts []string
	var args []any
	for _, operator := range ops {
		val := conds[operator]
		switch strings.ToLower(operator) {
		case opEq:
			if val == nil {
				parts = append(parts, column+" IS NULL")
				continue
			}
			parts = append(parts, column+" = ?")
			args = append(args, val)
		case opNe:
			if val == nil {
				parts = append(parts, column+" IS NOT NULL")
				continue
			}
			parts = append(parts, column+" <> ?")
			args = append(args, val)
		case opGt:
			parts = append(parts, column+" > ?")
			args = append(args, val)
		case opGte:
			parts = append(parts, column+" >= ?")
			args = append(args, val)
		case opLt:
			parts = append(parts, column+" < ?")
			args = append(args, val)
		case opLte:
			parts = append(parts, column+" <= ?")
			args = append(args, val)
		case opIn:
			clause, inArgs, err := compileInList(column, operator, val, false)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			args = append(args, inArgs...)
		case opNin:
			clause, inArgs, err := compileInList(column, operator, val, true)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			args = append(args, inArgs...)
		default:
			return "", nil, fmt.Errorf("unknown filter operator %s, consider using one of $in, $nin, $gt, $gte, $lt, $lte, $eq, $ne", operator)
		}
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, nil
}

// compileInList renders $in/$nin. Empty lists become constant predicates:
// nothing is in an empty set, everything is outside it.
func compileInList(column, operator string, val any, negate bool) (string, []any, error) {
	items, err := asValueList(operator, val)
	if err != nil {
		return "", nil, err
	}
	if len(items) == 0 {
		if negate {
			return "(1 = 1)", nil, nil
		}
		return "(1 = 0)", nil, nil
	}
	placeholders := strings.Repeat("?, ", len(items))
	placeholders = placeholders[:len(placeholders)-2]
	keyword := " IN ("
	if negate {
		keyword = " NOT IN ("
	}
	return column + keyword + placeholders + ")", items, nil
}

func asValueList(operator string, val any) ([]any, error) {
	switch v := val.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list value for %s operator, got %T", operator, val)
	}
}
