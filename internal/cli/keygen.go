package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"piawg/internal/wgkey"
)

func NewKeygenCommand() *cobra.Command {
	var publicOnly bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a WireGuard key pair without registering it",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := wgkey.New()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !publicOnly {
				fmt.Fprintf(out, "PrivateKey = %s\n", kp.Private.String())
			}
			fmt.Fprintf(out, "PublicKey = %s\n", kp.Public.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&publicOnly, "public-only", false, "print only the public key")
	return cmd
}
