package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"b3-humor/internal/app"
	"b3-humor/internal/market"
	"b3-humor/internal/narrative"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "humorctl",
		Short:         "Run the B3 humor pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("config", "configs/app.yaml", "Configuration file path")
	rootCmd.PersistentFlags().Duration("timeout", 60*time.Second, "Overall deadline")

	rootCmd.AddCommand(newQuotesCmd())
	rootCmd.AddCommand(newNarrateCmd())
	return rootCmd
}

func newQuotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quotes",
		Short: "Fetch one quote batch and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			res, err := rt.Quotes.Collect(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"success":   res.Success,
				"quotes":    res.Quotes,
				"message":   res.Message,
				"session":   res.Session,
				"source":    res.Source,
				"fallbacks": res.Fallbacks,
			})
		},
	}
}

func newNarrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "narrate",
		Short: "Generate the HTML humor analysis",
		Long: `Generate the HTML humor analysis. Percentages given as flags are used
as is; when none is given a quote batch is fetched first.
Example: humorctl narrate --minerio=1.2 --brent=-0.4 --vix=3.1 --dolar=0.25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			in := narrative.Input{Values: map[market.IndicatorKey]string{}}
			for _, key := range market.AllIndicators() {
				if v, _ := cmd.Flags().GetString(string(key)); v != "" {
					in.Values[key] = v
				}
			}
			if len(in.Values) == 0 {
				res, err := rt.Quotes.Collect(ctx)
				if err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("quote batch failed: %s", res.Message)
				}
				in = narrative.FromQuotes(res.Quotes)
			}

			html, err := rt.Narrative.Analyze(ctx, in)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
			return err
		},
	}
	for _, key := range market.AllIndicators() {
		cmd.Flags().String(string(key), "", fmt.Sprintf("%s change in percent", key))
	}
	return cmd
}

func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *app.Runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	rt, err := app.Build(ctx, path)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, rt, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
