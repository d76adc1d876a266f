package domain

// Side represents the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is a known value.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}
