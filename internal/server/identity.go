// Package server provides the default-filling helpers for cosmetic user
// identity fields. They are pure functions of the username (plus a random
// palette pick) so they can be tested independently of the protocol handlers.
package server

import (
	"math/rand"
	"strings"
)

// colorPalette lists the avatar color tags assigned to users who do not pick
// one themselves.
var colorPalette = []string{
	"bg-blue-500",
	"bg-green-500",
	"bg-purple-500",
	"bg-yellow-500",
	"bg-red-500",
	"bg-indigo-500",
	"bg-pink-500",
}

// deriveInitials builds display initials from a username: the first letter of
// each space-separated word, uppercased, at most two.
func deriveInitials(username string) string {
	var initials []rune
	for _, word := range strings.Fields(username) {
		first := []rune(word)[0]
		initials = append(initials, []rune(strings.ToUpper(string(first)))...)
		if len(initials) >= 2 {
			break
		}
	}
	if len(initials) > 2 {
		initials = initials[:2]
	}
	return string(initials)
}

// randomColor picks a pseudo-random color tag from the palette.
func randomColor() string {
	return colorPalette[rand.Intn(len(colorPalette))]
}
