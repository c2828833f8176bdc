// Package fx converts booking amounts into gateway currencies using a
// fixed rate table. Amounts are integers in each currency's smallest
// practical unit (cents for USD, whole dong for VND).
package fx

import (
	"errors"
	"fmt"
)

var ErrNoRate = errors.New("no conversion rate")

type rate struct {
	num int64
	den int64
}

// num/den maps minor units of the source currency to units of the target.
// USD->VND: 25450 VND per USD, USD amounts carried in cents.
var rates = map[[2]string]rate{
	{"USD", "VND"}: {num: 25450, den: 100},
}

func Convert(amount int64, from, to string) (int64, error) {
	if from == to {
		return amount, nil
	}
	r, ok := rates[[2]string{from, to}]
	if !ok {
		return 0, fmt.Errorf("%w: %s->%s", ErrNoRate, from, to)
	}
	return amount * r.num / r.den, nil
}

// Accepts reports whether amounts in currency can be converted to target.
func Accepts(from, to string) bool {
	if from == to {
		return true
	}
	_, ok := rates[[2]string{from, to}]
	return ok
}
