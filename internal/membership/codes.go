package membership

import (
	"fmt"
	"math/rand/v2"
)

// maxCodeAttempts bounds how often a registration regenerates codes after
// losing a reservation race.
const maxCodeAttempts = 5

// CodeSource yields candidate access codes.
type CodeSource func() string

// RandomCode is a uniformly random 5-digit code, 10000 to 99999.
func RandomCode() string {
	return fmt.Sprintf("%05d", 10000+rand.IntN(90000))
}

// drawCodes returns n codes that are neither taken nor repeated.
func drawCodes(next CodeSource, n int, taken func(string) bool) ([]string, error) {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for tries := 0; len(out) < n; tries++ {
		if tries > 1000*n {
			return nil, fmt.Errorf("could not draw %d free access codes", n)
		}
		c := next()
		if seen[c] || taken(c) {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// welcomeMessage builds the payload sent to a new member.
func welcomeMessage(m Member) WelcomeMessage {
	return WelcomeMessage{
		Phone:   m.Phone,
		Message: fmt.Sprintf("¡Hola %s! 👋 ¡Bienvenido a ATLAS GYM! Tu código de acceso es: *%s*. ¡A entrenar con todo! 💪", m.FirstName(), m.Code),
	}
}
