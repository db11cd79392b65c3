// Package picking orders the operations of a transfer for printing and
// for handheld pick routes.
package picking

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ventortech/merpwms/internal/models"
)

// Strategy names the key a picking list is ordered by. "product" orders by
// product name; any other value names a stock location attribute.
type Strategy string

const (
	StrategyProduct      Strategy = "product"
	StrategyName         Strategy = "name"
	StrategyCompleteName Strategy = "complete_name"
	StrategyBarcode      Strategy = "barcode"
	StrategyRemovalPrio  Strategy = "removal_prio"
	StrategyPosX         Strategy = "posx"
	StrategyPosY         Strategy = "posy"
	StrategyPosZ         Strategy = "posz"
)

// MissingKey is the key used for a location that has no value for the
// configured attribute. It is a plain string and sorts among string keys.
const MissingKey = "None"

// Order is the direction of the sort
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// MarshalText renders the order as "asc" or "desc"
func (o Order) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ParseOrder reads the company setting: "0" ascending, any other integer
// descending. Unparseable values fall back to ascending.
func ParseOrder(s string) Order {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n == 0 {
		return Ascending
	}
	return Descending
}

// ParseStrategy normalizes a configured strategy name
func ParseStrategy(s string) Strategy {
	return Strategy(strings.TrimSpace(s))
}

// Known reports whether the strategy maps to a location accessor or product
func (s Strategy) Known() bool {
	if s == StrategyProduct {
		return true
	}
	_, ok := locationAccessors[s]
	return ok
}

// SortKey is either numeric or a string. Numbers sort before strings.
type SortKey struct {
	num   float64
	str   string
	isNum bool
}

func numKey(n int) SortKey    { return SortKey{num: float64(n), isNum: true} }
func strKey(s string) SortKey { return SortKey{str: s} }
func missingKey() SortKey     { return strKey(MissingKey) }

// Less orders two keys
func (k SortKey) Less(o SortKey) bool {
	switch {
	case k.isNum && o.isNum:
		return k.num < o.num
	case k.isNum != o.isNum:
		return k.isNum
	default:
		return k.str < o.str
	}
}

// String renders the key for logs and printed lists
func (k SortKey) String() string {
	if k.isNum {
		return strconv.FormatFloat(k.num, 'f', -1, 64)
	}
	return k.str
}

type locationAccessor func(*models.StockLocation) (SortKey, bool)

func stringAttr(get func(*models.StockLocation) string) locationAccessor {
	return func(l *models.StockLocation) (SortKey, bool) {
		v := get(l)
		if v == "" {
			return SortKey{}, false
		}
		return strKey(v), true
	}
}

func intAttr(get func(*models.StockLocation) int) locationAccessor {
	return func(l *models.StockLocation) (SortKey, bool) {
		return numKey(get(l)), true
	}
}

var locationAccessors = map[Strategy]locationAccessor{
	StrategyName:         stringAttr(func(l *models.StockLocation) string { return l.Name }),
	StrategyCompleteName: stringAttr(func(l *models.StockLocation) string { return l.CompleteName }),
	StrategyBarcode:      stringAttr(func(l *models.StockLocation) string { return l.Barcode }),
	StrategyRemovalPrio:  intAttr(func(l *models.StockLocation) int { return l.RemovalPrio }),
	StrategyPosX:         intAttr(func(l *models.StockLocation) int { return l.PosX }),
	StrategyPosY:         intAttr(func(l *models.StockLocation) int { return l.PosY }),
	StrategyPosZ:         intAttr(func(l *models.StockLocation) int { return l.PosZ }),
}

// KeyFor returns the sort key of a single move line under strategy
func KeyFor(line models.StockMoveLine, strategy Strategy) SortKey {
	if strategy == StrategyProduct {
		if line.Product == nil {
			return strKey("")
		}
		return strKey(line.Product.Label())
	}

	get, ok := locationAccessors[strategy]
	if !ok || line.Location == nil {
		return missingKey()
	}
	key, ok := get(line.Location)
	if !ok {
		return missingKey()
	}
	return key
}

// SortMoveLines returns a new slice of lines ordered by strategy and order.
// The sort is stable in both directions: lines with equal keys keep their
// input order.
func SortMoveLines(lines []models.StockMoveLine, strategy Strategy, order Order) []models.StockMoveLine {
	type keyed struct {
		line models.StockMoveLine
		key  SortKey
	}

	items := make([]keyed, len(lines))
	for i, l := range lines {
		items[i] = keyed{line: l, key: KeyFor(l, strategy)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if order == Descending {
			return items[j].key.Less(items[i].key)
		}
		return items[i].key.Less(items[j].key)
	})

	out := make([]models.StockMoveLine, len(items))
	for i, it := range items {
		out[i] = it.line
	}
	return out
}
