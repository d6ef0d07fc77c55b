package sign

import (
	"fmt"
	"sort"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/kashguard/go-horde-sdk/internal/signature"
	"github.com/kashguard/go-horde-sdk/internal/util/command"
	"github.com/spf13/cobra"
)

func newHeaders() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Signs a request and prints the signature headers",
		Args:  cobra.NoArgs,
		RunE:  headersCmdFunc,
	}
	addRequestFlags(cmd)
	return cmd
}

func headersCmdFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}

	signer, err := app.NewSigner(cfg, app.NewClock())
	if err != nil {
		return err
	}

	method, _ := cmd.Flags().GetString(methodFlag)
	url, _ := cmd.Flags().GetString(urlFlag)
	body, err := readBody(cmd)
	if err != nil {
		return err
	}

	sig, err := signer.SignatureForRequest(method, url, nil, body)
	if err != nil {
		return err
	}

	headers, err := signature.ToHeaders(sig, signature.DefaultHeaderPrefix)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, headers[name])
	}
	return nil
}
