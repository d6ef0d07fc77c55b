package sign

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/kashguard/go-horde-sdk/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	methodFlag = "method"
	urlFlag    = "url"
	bodyFlag   = "body"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("sign",
		newHeaders(),
		newVerify(),
	)
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String(methodFlag, "POST", "HTTP method of the request")
	cmd.Flags().String(urlFlag, "", "Request URL, only path and query are signed")
	cmd.Flags().String(bodyFlag, "", "JSON body file, - reads stdin, empty signs a request without body")

	if err := cmd.MarkFlagRequired(urlFlag); err != nil {
		panic(err)
	}
}

// readBody decodes the JSON body named by --body. Numbers keep their literal form.
func readBody(cmd *cobra.Command) (any, error) {
	path, err := cmd.Flags().GetString(bodyFlag)
	if err != nil || path == "" {
		return nil, err
	}

	var raw []byte
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read body")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Wrap(err, "body is not valid JSON")
	}
	return body, nil
}
