package sign

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kashguard/go-horde-sdk/internal/keys"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const headerFlag = "header"

func newVerify() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verifies the signature headers of a request",
		Long: `Verifies the signature headers of a request, e.g. the output of "sign headers".
Prints the signatory when the signature is valid.`,
		Args: cobra.NoArgs,
		RunE: verifyCmdFunc,
	}
	addRequestFlags(cmd)
	cmd.Flags().StringArrayP(headerFlag, "H", nil, `Signature header as "Name: value"`)
	return cmd
}

func verifyCmdFunc(cmd *cobra.Command, _ []string) error {
	method, _ := cmd.Flags().GetString(methodFlag)
	url, _ := cmd.Flags().GetString(urlFlag)
	rawHeaders, _ := cmd.Flags().GetStringArray(headerFlag)

	body, err := readBody(cmd)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(strings.ToUpper(method), url, nil)
	if err != nil {
		return errors.Wrap(err, "invalid request")
	}
	for _, h := range rawHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return errors.Errorf("--%s expects \"Name: value\", got %q", headerFlag, h)
		}
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	sig, err := signature.VerifyRequest(req, body, keys.DefaultVerifiers())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "valid %s signature by %s\n", sig.SignatureType, sig.Signatory)
	return nil
}
