// Package sqlxrepos implements the core repositories on PostgreSQL
// via sqlx, with queries built by Masterminds/squirrel.
package sqlxrepos

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/academia/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func orderBy(ordering []core.DBOrdering) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return strings.Join(orderList, ", ")
}
