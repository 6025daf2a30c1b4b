package cli

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/IsraelRub/EveryTriv-sub000"
)

func (a *app) newRequestCmd(method string) *cobra.Command {
	var (
		query    map[string]string
		headers  map[string]string
		timeout  string
		noRetry  bool
		envelope bool
	)

	use := strings.ToLower(method) + " PATH"
	args := cobra.ExactArgs(1)
	if method != "GET" && method != "DELETE" {
		use += " [JSON_BODY]"
		args = cobra.RangeArgs(1, 2)
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: "Send a " + method + " request",
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := everytriv.RequestDescriptor{URL: args[0], Method: method}
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.New("request body is not valid JSON")
				}
				desc.Body = json.RawMessage(args[1])
			}

			opts := []everytriv.RequestOption{}
			for k, v := range query {
				opts = append(opts, everytriv.WithQuery(k, v))
			}
			for k, v := range headers {
				opts = append(opts, everytriv.WithHeader(k, v))
			}
			if timeout != "" {
				d, err := parseDuration(timeout)
				if err != nil {
					return err
				}
				opts = append(opts, everytriv.WithRequestTimeout(d))
			}
			if noRetry {
				opts = append(opts, everytriv.WithoutRetry())
			}
			for _, opt := range opts {
				opt(&desc.Config)
			}

			resp, err := a.client.Execute(cmd.Context(), desc)
			if err != nil {
				a.log.Debug().Err(err).Str("method", method).Str("path", args[0]).Msg("Request failed")
				return err
			}
			return printResponse(cmd, resp, envelope)
		},
	}

	cmd.Flags().StringToStringVarP(&query, "query", "q", nil, "Query parameters (key=value)")
	cmd.Flags().StringToStringVarP(&headers, "header", "H", nil, "Extra headers (key=value)")
	cmd.Flags().StringVar(&timeout, "timeout", "", "Per-attempt timeout, e.g. 5s")
	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "Disable retries")
	cmd.Flags().BoolVar(&envelope, "envelope", false, "Print status and metadata along with data")
	return cmd
}

// printResponse writes the data, indented, or the whole normalized response.
func printResponse(cmd *cobra.Command, resp *everytriv.Response, envelope bool) error {
	var payload []byte
	if envelope {
		out, err := json.Marshal(resp)
		if err != nil {
			return errors.Wrap(err, "failed to encode response")
		}
		payload = out
	} else {
		payload = resp.Data
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return errors.Wrap(err, "failed to format response")
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
