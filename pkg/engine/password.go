package engine

import (
	"fmt"

	"github.com/smkit/smkit/pkg/generator"
	"github.com/smkit/smkit/pkg/protocol"
)

// Character sets. The ambiguous variants drop l, I, O, 0 and 1.
const (
	lowercaseChars          = "abcdefghijklmnopqrstuvwxyz"
	lowercaseCharsAmbiguous = "abcdefghijkmnopqrstuvwxyz"
	uppercaseChars          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	uppercaseCharsAmbiguous = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	numberChars             = "0123456789"
	numberCharsAmbiguous    = "23456789"
	specialChars            = "!@#$%^&*"
)

type charClass struct {
	chars string
	min   int
}

// passwordClasses resolves the enabled character classes and their
// minimums. An unset minimum of an enabled class is 1.
func passwordClasses(req protocol.PasswordGeneratorRequest) []charClass {
	pick := func(avoid string, all string) string {
		if req.AvoidAmbiguous {
			return avoid
		}
		return all
	}
	minOf := func(v *int) int {
		if v == nil {
			return 1
		}
		return *v
	}

	var classes []charClass
	if req.Lowercase {
		classes = append(classes, charClass{pick(lowercaseCharsAmbiguous, lowercaseChars), minOf(req.MinLowercase)})
	}
	if req.Uppercase {
		classes = append(classes, charClass{pick(uppercaseCharsAmbiguous, uppercaseChars), minOf(req.MinUppercase)})
	}
	if req.Numbers {
		classes = append(classes, charClass{pick(numberCharsAmbiguous, numberChars), minOf(req.MinNumber)})
	}
	if req.Special {
		classes = append(classes, charClass{specialChars, minOf(req.MinSpecial)})
	}
	return classes
}

// GeneratePassword generates a password for req using crypto/rand.
func GeneratePassword(req protocol.PasswordGeneratorRequest) (string, error) {
	if err := generator.FromRequest(req).Validate(); err != nil {
		return "", NewInvalidRequestError(err.Error(), err)
	}

	classes := passwordClasses(req)
	total := 0
	all := ""
	for _, c := range classes {
		total += c.min
		all += c.chars
	}
	if total > req.Length {
		return "", NewInvalidRequestError(
			fmt.Sprintf("password length %d is less than the sum of the minimums (%d)", req.Length, total), nil)
	}

	out := make([]byte, 0, req.Length)
	for _, c := range classes {
		s, err := randomString(c.chars, c.min)
		if err != nil {
			return "", NewInternalError("failed to generate password", err)
		}
		out = append(out, s...)
	}
	rest, err := randomString(all, req.Length-len(out))
	if err != nil {
		return "", NewInternalError("failed to generate password", err)
	}
	out = append(out, rest...)

	// Fisher-Yates
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", NewInternalError("failed to generate password", err)
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}
