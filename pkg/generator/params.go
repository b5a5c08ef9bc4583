// Package generator validates password generator parameters before they are
// sent to the engine.
package generator

import (
	"fmt"

	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/sdkerr"
)

// Length bounds accepted by the engine.
const (
	MinLength     = 4
	MaxLength     = 255
	DefaultLength = 24
)

// Params describes a password to generate. A nil minimum is left to the
// engine; a pointer to zero requests no minimum for that class.
type Params struct {
	Length         int
	AvoidAmbiguous bool
	Lowercase      bool
	Uppercase      bool
	Numbers        bool
	Special        bool
	MinLowercase   *int
	MinUppercase   *int
	MinNumber      *int
	MinSpecial     *int
}

// DefaultParams returns a 24 character password using every class and
// avoiding ambiguous characters.
func DefaultParams() Params {
	return Params{
		Length:         DefaultLength,
		AvoidAmbiguous: true,
		Lowercase:      true,
		Uppercase:      true,
		Numbers:        true,
		Special:        true,
	}
}

type minimum struct {
	field   string
	value   *int
	enabled bool
}

func (p Params) minimums() []minimum {
	return []minimum{
		{"minLowercase", p.MinLowercase, p.Lowercase},
		{"minUppercase", p.MinUppercase, p.Uppercase},
		{"minNumber", p.MinNumber, p.Numbers},
		{"minSpecial", p.MinSpecial, p.Special},
	}
}

// Validate checks p and returns the first failure as a validation error.
func (p Params) Validate() error {
	if p.Length < MinLength || p.Length > MaxLength {
		return sdkerr.Validation(sdkerr.CodeInvalidLength, "length",
			fmt.Sprintf("length must be between %d and %d, got %d", MinLength, MaxLength, p.Length))
	}

	if !p.Lowercase && !p.Uppercase && !p.Numbers && !p.Special {
		return sdkerr.Validation(sdkerr.CodeNoCharacterSetEnabled, "",
			"at least one character set must be enabled")
	}

	sum := 0
	for _, m := range p.minimums() {
		if m.value == nil {
			continue
		}
		if *m.value < 0 {
			return sdkerr.Validation(sdkerr.CodeNegativeMinimum, m.field,
				fmt.Sprintf("%s must not be negative", m.field))
		}
		if *m.value > 0 && !m.enabled {
			return sdkerr.Validation(sdkerr.CodeMinimumForDisabledClass, m.field,
				fmt.Sprintf("%s is set but its character set is disabled", m.field))
		}
		sum += *m.value
	}

	if sum > p.Length {
		return sdkerr.Validation(sdkerr.CodeMinimumsExceedLength, "length",
			fmt.Sprintf("sum of minimums (%d) exceeds length (%d)", sum, p.Length))
	}

	return nil
}

// Request validates p and builds the engine request for it.
func (p Params) Request() (protocol.PasswordGeneratorRequest, error) {
	if err := p.Validate(); err != nil {
		return protocol.PasswordGeneratorRequest{}, err
	}
	return protocol.PasswordGeneratorRequest{
		Lowercase:      p.Lowercase,
		Uppercase:      p.Uppercase,
		Numbers:        p.Numbers,
		Special:        p.Special,
		Length:         p.Length,
		AvoidAmbiguous: p.AvoidAmbiguous,
		MinLowercase:   copyInt(p.MinLowercase),
		MinUppercase:   copyInt(p.MinUppercase),
		MinNumber:      copyInt(p.MinNumber),
		MinSpecial:     copyInt(p.MinSpecial),
	}, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FromRequest is the inverse of Request.
func FromRequest(r protocol.PasswordGeneratorRequest) Params {
	return Params{
		Length:         r.Length,
		AvoidAmbiguous: r.AvoidAmbiguous,
		Lowercase:      r.Lowercase,
		Uppercase:      r.Uppercase,
		Numbers:        r.Numbers,
		Special:        r.Special,
		MinLowercase:   copyInt(r.MinLowercase),
		MinUppercase:   copyInt(r.MinUppercase),
		MinNumber:      copyInt(r.MinNumber),
		MinSpecial:     copyInt(r.MinSpecial),
	}
}
