package repository

import (
	"fmt"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageBounds normalises page and size and returns the row offset.
func pageBounds(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size, (page - 1) * size
}

// orderBy renders an ORDER BY fragment using only whitelisted columns.
func orderBy(sortBy, sortOrder string, allowed map[string]string, fallback string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[fallback]
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s", column, order)
}

// conditionBuilder accumulates positional WHERE conditions.
type conditionBuilder struct {
	conditions []string
	args       []interface{}
}

func (b *conditionBuilder) add(format string, value interface{}) {
	b.args = append(b.args, value)
	b.conditions = append(b.conditions, strings.ReplaceAll(format, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *conditionBuilder) where(base string) string {
	if len(b.conditions) == 0 {
		return base
	}
	return base + " AND " + strings.Join(b.conditions, " AND ")
}

func likePattern(raw string) string {
	return "%" + strings.ToLower(strings.TrimSpace(raw)) + "%"
}
