package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/generator"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		p                generator.Params
		includeAmbiguous bool
		minLower         int
		minUpper         int
		minNumber        int
		minSpecial       int
	)
	defaults := generator.DefaultParams()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random password",
		Long: `Generate a random password and print it without a trailing newline.

No access token is needed. Unless an engine is configured, the password is
generated by a throwaway in-memory engine.`,
		Example: `  smctl generate --length 32 --include-special=false
  smctl generate --min-number 4 --min-special 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.AvoidAmbiguous = !includeAmbiguous

			flags := cmd.Flags()
			p.MinLowercase = intFlag(flags.Changed("min-lowercase"), minLower)
			p.MinUppercase = intFlag(flags.Changed("min-uppercase"), minUpper)
			p.MinNumber = intFlag(flags.Changed("min-number"), minNumber)
			p.MinSpecial = intFlag(flags.Changed("min-special"), minSpecial)

			if err := p.Validate(); err != nil {
				return err
			}

			s, err := a.connect(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			password, err := s.client.Generators().Generate(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), password)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&p.Length, "length", "l", defaults.Length,
		fmt.Sprintf("password length (%d-%d)", generator.MinLength, generator.MaxLength))
	flags.BoolVar(&p.Lowercase, "include-lowercase", defaults.Lowercase, "include lowercase letters")
	flags.BoolVar(&p.Uppercase, "include-uppercase", defaults.Uppercase, "include uppercase letters")
	flags.BoolVar(&p.Numbers, "include-numbers", defaults.Numbers, "include digits")
	flags.BoolVar(&p.Special, "include-special", defaults.Special, "include special characters (!@#$%^&*)")
	flags.BoolVar(&includeAmbiguous, "include-ambiguous", !defaults.AvoidAmbiguous, "allow ambiguous characters (l, I, O, 0, 1)")
	flags.IntVar(&minLower, "min-lowercase", 0, "minimum lowercase letters")
	flags.IntVar(&minUpper, "min-uppercase", 0, "minimum uppercase letters")
	flags.IntVar(&minNumber, "min-number", 0, "minimum digits")
	flags.IntVar(&minSpecial, "min-special", 0, "minimum special characters")

	return cmd
}

func intFlag(set bool, v int) *int {
	if !set {
		return nil
	}
	return &v
}
