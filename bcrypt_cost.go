//go:build !race

package auth

func passwordHashCost() int {
	return DefaultPasswordCost
}
