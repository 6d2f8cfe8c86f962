package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/bistroledger/internal/infrastructure/config"
	"github.com/iho/bistroledger/internal/infrastructure/postgres"
)

// options are the persistent flags shared by every API command.
type options struct {
	baseURL string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "bistroledger-cli",
		Short:         "BistroLedger CLI tool",
		Long:          `A command line interface for operating the BistroLedger API and database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the BistroLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(newLedgerCmd(opts), newCurrencyCmd(opts), newStockCmd(opts), newMigrateCmd())
	return rootCmd
}

func newLedgerCmd(opts *options) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	ledgerCmd.AddCommand(
		&cobra.Command{
			Use:   "consistency",
			Short: "Check running balances and linked groups",
			RunE: func(cmd *cobra.Command, args []string) error {
				status, body, err := opts.do(http.MethodGet, "/api/v1/ledger/consistency", nil)
				if err != nil {
					return err
				}
				if status == http.StatusConflict {
					printJSON(cmd.OutOrStdout(), body)
					return fmt.Errorf("consistency check FAILED")
				}
				if status != http.StatusOK {
					return apiError(status, body)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Consistency check PASSED")
				return nil
			},
		},
		&cobra.Command{
			Use:   "tail",
			Short: "Print the current tail balance",
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.print(cmd, http.MethodGet, "/api/v1/ledger/tail", nil)
			},
		},
		&cobra.Command{
			Use:   "rebuild",
			Short: "Recompute every running balance from the first entry",
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.print(cmd, http.MethodPost, "/api/v1/ledger/rebuild", nil)
			},
		},
	)

	var from, to string
	var limit int
	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "List entries in ledger order",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/entries/?limit=%d", limit)
			if from != "" {
				path += "&from=" + from
			}
			if to != "" {
				path += "&to=" + to
			}
			return opts.print(cmd, http.MethodGet, path, nil)
		},
	}
	entriesCmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD)")
	entriesCmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD)")
	entriesCmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	ledgerCmd.AddCommand(entriesCmd)

	return ledgerCmd
}

func newCurrencyCmd(opts *options) *cobra.Command {
	currencyCmd := &cobra.Command{
		Use:   "currency",
		Short: "Currency operations",
	}

	currencyCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List currencies",
			RunE: func(cmd *cobra.Command, args []string) error {
				status, body, err := opts.do(http.MethodGet, "/api/v1/currencies/", nil)
				if err != nil {
					return err
				}
				if status != http.StatusOK {
					return apiError(status, body)
				}
				var currencies []struct {
					Code         string `json:"code"`
					Name         string `json:"name"`
					ExchangeRate string `json:"exchange_rate"`
					IsBase       bool   `json:"is_base"`
					IsActive     bool   `json:"is_active"`
				}
				if err := json.Unmarshal(body, &currencies); err != nil {
					return fmt.Errorf("parse response: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-5s %-20s %-14s %s\n", "CODE", "NAME", "RATE", "FLAGS")
				for _, c := range currencies {
					var flags []string
					if c.IsBase {
						flags = append(flags, "base")
					}
					if !c.IsActive {
						flags = append(flags, "inactive")
					}
					fmt.Fprintf(out, "%-5s %-20s %-14s %s\n", c.Code, truncate(c.Name, 20), c.ExchangeRate, strings.Join(flags, ","))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Fetch fresh exchange rates from the feed",
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.print(cmd, http.MethodPost, "/api/v1/currencies/refresh", nil)
			},
		},
		&cobra.Command{
			Use:   "set-rate CODE RATE",
			Short: "Set a currency's rate to the base currency",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				payload := map[string]string{"exchange_rate": args[1]}
				return opts.print(cmd, http.MethodPut, "/api/v1/currencies/"+strings.ToUpper(args[0])+"/rate", payload)
			},
		},
	)

	return currencyCmd
}

func newStockCmd(opts *options) *cobra.Command {
	var limit int
	movementsCmd := &cobra.Command{
		Use:   "movements ITEM",
		Short: "List stock movements of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.print(cmd, http.MethodGet, fmt.Sprintf("/api/v1/stock/items/%s/movements?limit=%d", args[0], limit), nil)
		},
	}
	movementsCmd.Flags().IntVar(&limit, "limit", 50, "Page size")

	stockCmd := &cobra.Command{
		Use:   "stock",
		Short: "Inventory operations",
	}
	stockCmd.AddCommand(movementsCmd)
	return stockCmd
}

// migrator is satisfied by postgres.Migrator.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
}

var newMigrator = func() (migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	return postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log), nil
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations (reads DATABASE_URL and MIGRATIONS_PATH)",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newMigrator()
				if err != nil {
					return err
				}
				return m.Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newMigrator()
				if err != nil {
					return err
				}
				return m.Down()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newMigrator()
				if err != nil {
					return err
				}
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %v\n", version, dirty)
				return nil
			},
		},
	)

	return migrateCmd
}

func (o *options) do(method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(o.baseURL, "/")+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// print sends the request and pretty-prints a 2xx JSON body.
func (o *options) print(cmd *cobra.Command, method, path string, payload any) error {
	status, body, err := o.do(method, path, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return apiError(status, body)
	}
	printJSON(cmd.OutOrStdout(), body)
	return nil
}

func apiError(status int, body []byte) error {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		if e.Message != "" {
			return fmt.Errorf("API error (status %d): %s: %s", status, e.Error, e.Message)
		}
		return fmt.Errorf("API error (status %d): %s", status, e.Error)
	}
	return fmt.Errorf("API error (status %d): %s", status, truncate(strings.TrimSpace(string(body)), 200))
}

func printJSON(out io.Writer, raw []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintln(out, string(raw))
		return
	}
	fmt.Fprintln(out, buf.String())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
