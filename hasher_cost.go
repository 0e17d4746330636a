//go:build !race

package identity

func defaultHasherCost() int {
	return 12
}
