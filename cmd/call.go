package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/habedi/tokenflow/client"
	"github.com/habedi/tokenflow/pkg/clierr"
	"github.com/habedi/tokenflow/pkg/pool"
	"github.com/habedi/tokenflow/pkg/validation"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// callCmd sends an authenticated request. With --repeat it sends the same request several
// times in parallel and prints a summary of the status codes.
func callCmd(a *app) *cobra.Command {
	var method, data string
	var headers []string
	var repeat, parallel int
	var rate float64

	cmd := &cobra.Command{
		Use:   "call [url]",
		Short: "Send an authenticated HTTP request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			if err := validation.ValidateHTTPURL("url", target); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			if err := validation.ValidateParallelism(parallel); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			if repeat < 1 {
				return clierr.New(clierr.Validation, "repeat must be at least 1", nil)
			}
			header, err := parseHeaders(headers)
			if err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}

			manager, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			c := client.New(manager, nil)
			c.SetRateLimit(rate)
			send := func(ctx context.Context) (*http.Response, error) {
				req, err := newRequest(ctx, method, target, data, header)
				if err != nil {
					return nil, err
				}
				return c.Do(ctx, req)
			}

			if repeat == 1 {
				return callOnce(cmd, send)
			}
			return callRepeated(cmd, send, repeat, parallel)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as 'Name: value' (repeatable)")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "Send the request this many times")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Number of requests in flight when repeating")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Maximum requests per second, 0 for no limit")

	return cmd
}

func newRequest(ctx context.Context, method, target, data string, header http.Header) (*http.Request, error) {
	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, body)
	if err != nil {
		return nil, err
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	return req, nil
}

func parseHeaders(raw []string) (http.Header, error) {
	header := http.Header{}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Authorization") {
			return nil, fmt.Errorf("the Authorization header is set from the stored token")
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return header, nil
}

func callOnce(cmd *cobra.Command, send func(context.Context) (*http.Response, error)) error {
	resp, err := send(cmd.Context())
	if err != nil {
		return tokenError(err)
	}
	defer resp.Body.Close()

	cmd.PrintErrln("Status:", resp.Status)
	if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
		return clierr.New(clierr.Internal, "failed to read the response body", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return clierr.New(clierr.Internal, "request failed with status "+resp.Status, nil)
	}
	return nil
}

func callRepeated(cmd *cobra.Command, send func(context.Context) (*http.Response, error), repeat, parallel int) error {
	attempts := make([]int, repeat)
	for i := range attempts {
		attempts[i] = i + 1
	}

	results := pool.Map(cmd.Context(), attempts, parallel, func(ctx context.Context, n int) (int, error) {
		resp, err := send(ctx)
		if err != nil {
			log.Debug().Err(err).Int("attempt", n).Msg("Request failed")
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	})

	counts := map[string]int{}
	for _, r := range results {
		key := strconv.Itoa(r.Value)
		if r.Err != nil {
			key = "error"
		}
		counts[key]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Status", "Count"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	for _, k := range keys {
		table.Append([]string{k, strconv.Itoa(counts[k])})
	}
	table.Render()

	if errs := pool.Errors(results); len(errs) > 0 {
		return tokenError(errs[0])
	}
	return nil
}
