package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops any ordering whose field is not in `fields`.
// Ordering fields come straight from query params so they must never reach SQL unchecked.
func AllowedOrderings(ordering []DBOrdering, fields ...string) []DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f] = struct{}{}
	}
	res := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := allowed[strings.ToLower(ord.Field)]; ok {
			ord.Field = strings.ToLower(ord.Field)
			res = append(res, ord)
		}
	}
	return res
}
