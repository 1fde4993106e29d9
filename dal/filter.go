package dal

import (
	"fmt"
	"strings"

	"gigbook-backend/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MatchItem reports whether item satisfies every condition of filter.
// A missing attribute compares equal to NULL.
func MatchItem(item map[string]types.AttributeValue, filter models.Filter) (bool, error) {
	for _, cond := range filter {
		want, err := attributevalue.Marshal(cond.Value)
		if err != nil {
			return false, fmt.Errorf("invalid value for %s: %w", cond.Field, err)
		}
		got, ok := item[cond.Field]
		switch cond.Op {
		case models.OpEquals:
			if !ok {
				got = &types.AttributeValueMemberNULL{Value: true}
			}
			if !attributeEqual(got, want) {
				return false, nil
			}
		case models.OpArrayContains:
			if !ok || !attributeContains(got, want) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", cond.Op)
		}
	}
	return true, nil
}

func attributeEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberNULL:
		_, ok := b.(*types.AttributeValueMemberNULL)
		return ok
	}
	return false
}

func attributeContains(set, elem types.AttributeValue) bool {
	switch sv := set.(type) {
	case *types.AttributeValueMemberL:
		for _, v := range sv.Value {
			if attributeEqual(v, elem) {
				return true
			}
		}
	case *types.AttributeValueMemberSS:
		if ev, ok := elem.(*types.AttributeValueMemberS); ok {
			for _, v := range sv.Value {
				if v == ev.Value {
					return true
				}
			}
		}
	case *types.AttributeValueMemberNS:
		if ev, ok := elem.(*types.AttributeValueMemberN); ok {
			for _, v := range sv.Value {
				if v == ev.Value {
					return true
				}
			}
		}
	}
	return false
}

// filterExpression renders conditions as a DynamoDB condition expression.
// Placeholders are numbered from offset so key and filter expressions can share maps.
func filterExpression(conds models.Filter, offset int, names map[string]string, values map[string]types.AttributeValue) (string, error) {
	parts := make([]string, 0, len(conds))
	for i, cond := range conds {
		name := fmt.Sprintf("#f%d", offset+i)
		value := fmt.Sprintf(":v%d", offset+i)

		av, err := attributevalue.Marshal(cond.Value)
		if err != nil {
			return "", fmt.Errorf("invalid value for %s: %w", cond.Field, err)
		}
		names[name] = cond.Field
		values[value] = av

		switch cond.Op {
		case models.OpEquals:
			parts = append(parts, name+" = "+value)
		case models.OpArrayContains:
			parts = append(parts, "contains("+name+", "+value+")")
		default:
			return "", fmt.Errorf("unsupported operator %q", cond.Op)
		}
	}
	return strings.Join(parts, " AND "), nil
}

// itemKey returns the string id of an item, or "" when it has none.
func itemKey(item map[string]types.AttributeValue) string {
	if s, ok := item[models.AttrID].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
