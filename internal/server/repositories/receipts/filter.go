package receipts

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
)

// Where is a parameterized WHERE clause over receipts aliased as r.
type Where struct {
	conds []string
	Args  []any
}

func (w *Where) add(cond string, arg any) {
	w.Args = append(w.Args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.Args)))
}

// SQL renders " WHERE ..." or "" when there are no conditions.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Next returns the placeholder number following the filter arguments.
func (w *Where) Next() int {
	return len(w.Args) + 1
}

// BuildFilter translates f into predicates over receipts r. Market and item
// name filters are EXISTS subqueries, so a receipt appears at most once no
// matter how many of its items match.
func BuildFilter(f models.ReceiptFilter) *Where {
	w := &Where{}
	if f.UserID != nil {
		w.add("r.user_id = $%d", *f.UserID)
	}
	if f.MarketID != nil {
		w.add("r.market_id = $%d", *f.MarketID)
	}
	if f.MarketName != "" {
		w.add("EXISTS (SELECT 1 FROM markets fm WHERE fm.id = r.market_id AND fm.name ILIKE $%d)", dbx.ContainsPattern(f.MarketName))
	}
	if f.ItemName != "" {
		w.add("EXISTS (SELECT 1 FROM receipt_items fi WHERE fi.receipt_id = r.id AND fi.name ILIKE $%d)", dbx.ContainsPattern(f.ItemName))
	}
	if f.DateFrom != nil {
		w.add("r.date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		w.add("r.date <= $%d", *f.DateTo)
	}
	return w
}

const totalExpr = `(SELECT COALESCE(SUM(ti.unit_price * ti.quantity), 0) FROM receipt_items ti WHERE ti.receipt_id = r.id)`

// orderBy renders the ORDER BY clause. r.id breaks ties so that pages are
// stable.
func orderBy(s models.Sort) string {
	dir := "DESC"
	if !s.Desc {
		dir = "ASC"
	}

	var expr string
	switch s.Field {
	case models.SortByReceiptNumber:
		expr = "r.receipt_number"
	case models.SortByID:
		return fmt.Sprintf(" ORDER BY r.id %s", dir)
	case models.SortByTotal:
		expr = totalExpr
	default:
		expr = "r.date"
	}
	return fmt.Sprintf(" ORDER BY %s %s, r.id %s", expr, dir, dir)
}
