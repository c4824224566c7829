package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// bcryptGenerate is swapped in tests.
var bcryptGenerate = bcrypt.GenerateFromPassword

type options struct {
	baseURL string
	token   string
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
		Use:           "cashledger-cli",
		Short:         "CashLedger CLI tool",
		Long:          `A command line interface for operating the CashLedger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("CASHLEDGER_URL", "http://localhost:8080"), "Base URL of the CashLedger API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("CASHLEDGER_TOKEN"), "Operator bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		loginCmd(opts),
		movementCmd(opts),
		entryCmd(opts),
		accountCmd(opts),
		rateCmd(opts),
		ledgerCmd(opts),
		hashPasswordCmd(),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// apiError is returned for every non-2xx response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, strings.TrimSpace(e.Body))
}

// do sends body as JSON and decodes the response into out. Extra headers
// are given as key/value pairs.
func (o *options) do(ctx context.Context, method, path string, body, out any, headers ...string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(o.baseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// call performs a request and prints the decoded response.
func call(cmd *cobra.Command, opts *options, method, path string, body any, headers ...string) error {
	var out any
	if err := opts.do(cmd.Context(), method, path, body, &out, headers...); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func loginCmd(opts *options) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange operator credentials for a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Token string `json:"token"`
			}
			if err := opts.do(cmd.Context(), http.MethodPost, "/api/v1/auth/login", map[string]string{
				"email":    email,
				"password": password,
			}, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Operator email")
	cmd.Flags().StringVar(&password, "password", "", "Operator password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func movementCmd(opts *options) *cobra.Command {
	movementCmd := &cobra.Command{
		Use:   "movement",
		Short: "Movement operations",
	}

	var (
		kind, family                         string
		originType, originPartner, originID  string
		destType, destPartner, destID        string
		amount, currency, destCurrency       string
		coin, coinQuantity, description, key string
		feeConfirmed                         bool
	)

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a movement",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = uuid.NewString()
			}
			body := map[string]any{
				"kind":   strings.ToUpper(kind),
				"family": strings.ToUpper(family),
				"origin": map[string]string{
					"type":       strings.ToUpper(originType),
					"partner_id": originPartner,
					"account_id": originID,
				},
				"destination": map[string]string{
					"type":       strings.ToUpper(destType),
					"partner_id": destPartner,
					"account_id": destID,
				},
				"origin_amount":        amount,
				"origin_currency":      currency,
				"destination_currency": destCurrency,
				"coin_symbol":          coin,
				"coin_quantity":        coinQuantity,
				"fee_confirmed":        feeConfirmed,
				"description":          description,
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Idempotency-Key: %s\n", key)
			return call(cmd, opts, http.MethodPost, "/api/v1/movements", body, "Idempotency-Key", key)
		},
	}

	flags := submitCmd.Flags()
	flags.StringVar(&kind, "kind", "", "DEPOSIT, WITHDRAWAL, TRANSFER, CAPITAL_CONTRIBUTION or CAPITAL_SETTLEMENT")
	flags.StringVar(&family, "family", "", "FIAT or CRYPTO")
	flags.StringVar(&originType, "origin-type", "", "Origin account type")
	flags.StringVar(&originPartner, "origin-partner", "", "Origin partner ID")
	flags.StringVar(&originID, "origin-account", "", "Origin account ID")
	flags.StringVar(&destType, "dest-type", "", "Destination account type")
	flags.StringVar(&destPartner, "dest-partner", "", "Destination partner ID")
	flags.StringVar(&destID, "dest-account", "", "Destination account ID")
	flags.StringVar(&amount, "amount", "", "Origin amount")
	flags.StringVar(&currency, "currency", "", "Origin currency")
	flags.StringVar(&destCurrency, "dest-currency", "", "Destination currency")
	flags.StringVar(&coin, "coin", "", "Coin symbol for crypto movements")
	flags.StringVar(&coinQuantity, "coin-quantity", "", "Coin quantity")
	flags.StringVar(&description, "description", "", "Free text description")
	flags.StringVar(&key, "idempotency-key", "", "Idempotency key (random when empty)")
	flags.BoolVar(&feeConfirmed, "fee-confirmed", false, "Post the bank fee together with the movement")
	_ = submitCmd.MarkFlagRequired("kind")
	_ = submitCmd.MarkFlagRequired("amount")

	movementCmd.AddCommand(submitCmd)
	return movementCmd
}

func entryCmd(opts *options) *cobra.Command {
	entryCmd := &cobra.Command{
		Use:   "entry",
		Short: "Entry operations",
	}

	getCmd := &cobra.Command{
		Use:   "get <entry-id>",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodGet, "/api/v1/entries/"+args[0], nil)
		},
	}

	var received, reason string
	confirmCmd := &cobra.Command{
		Use:   "confirm <entry-id>",
		Short: "Confirm a pending entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if received != "" {
				body["received_amount"] = received
			}
			if reason != "" {
				body["reason"] = reason
			}
			return call(cmd, opts, http.MethodPost, "/api/v1/entries/"+args[0]+"/confirm", body)
		},
	}
	confirmCmd.Flags().StringVar(&received, "received", "", "Amount actually received, when it differs from the estimate")
	confirmCmd.Flags().StringVar(&reason, "reason", "", "Reason for the variance")

	var decline bool
	feeCmd := &cobra.Command{
		Use:   "fee <entry-id>",
		Short: "Accept or decline the bank fee of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodPost, "/api/v1/entries/"+args[0]+"/fee", map[string]bool{"accept": !decline})
		},
	}
	feeCmd.Flags().BoolVar(&decline, "decline", false, "Decline the fee instead of posting it")

	adjustmentsCmd := &cobra.Command{
		Use:   "adjustments <entry-id>",
		Short: "List adjustments referencing an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodGet, "/api/v1/entries/"+args[0]+"/adjustments", nil)
		},
	}

	entryCmd.AddCommand(getCmd, confirmCmd, feeCmd, adjustmentsCmd)
	return entryCmd
}

func accountCmd(opts *options) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	balancesCmd := &cobra.Command{
		Use:   "balances <account-id>",
		Short: "Show account balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodGet, "/api/v1/accounts/"+args[0]+"/balances", nil)
		},
	}

	var asset, realBalance, reason, disposition string
	reconcileCmd := &cobra.Command{
		Use:   "reconcile <account-id>",
		Short: "Attest the real balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodPost, "/api/v1/accounts/"+args[0]+"/reconcile", map[string]string{
				"asset":        asset,
				"real_balance": realBalance,
				"reason":       reason,
				"disposition":  strings.ToUpper(disposition),
			})
		},
	}
	reconcileCmd.Flags().StringVar(&asset, "asset", "", "Currency or coin to reconcile")
	reconcileCmd.Flags().StringVar(&realBalance, "real", "", "Attested real balance")
	reconcileCmd.Flags().StringVar(&reason, "reason", "", "Reason for the adjustment")
	reconcileCmd.Flags().StringVar(&disposition, "disposition", "ADJUST_ONLY", "ADJUST_ONLY, RELEASE or RELEASE_WITH_WITHDRAWAL")
	_ = reconcileCmd.MarkFlagRequired("real")

	accountCmd.AddCommand(balancesCmd, reconcileCmd)
	return accountCmd
}

func rateCmd(opts *options) *cobra.Command {
	rateCmd := &cobra.Command{
		Use:   "rate",
		Short: "Rate feed operations",
	}

	var official bool
	putCmd := &cobra.Command{
		Use:   "put <currency> <rate-to-pivot>",
		Short: "Store the pivot rate of a currency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodPut, "/api/v1/rates/"+strings.ToUpper(args[0]), map[string]any{
				"rate_to_pivot": args[1],
				"is_official":   official,
				"source":        "cli",
			})
		},
	}
	putCmd.Flags().BoolVar(&official, "official", false, "Mark the rate as official")

	var currencies, coins string
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Show the current quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodGet, "/api/v1/rates/snapshot?currencies="+currencies+"&coins="+coins, nil)
		},
	}
	snapshotCmd.Flags().StringVar(&currencies, "currencies", "", "Comma separated currencies")
	snapshotCmd.Flags().StringVar(&coins, "coins", "", "Comma separated coins")

	rateCmd.AddCommand(putCmd, snapshotCmd)
	return rateCmd
}

func ledgerCmd(opts *options) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConsistency(cmd, opts)
		},
	}

	ledgerCmd.AddCommand(consistencyCmd)
	return ledgerCmd
}

func checkConsistency(cmd *cobra.Command, opts *options) error {
	var result struct {
		Consistent bool `json:"consistent"`
		Issues     []struct {
			Kind      string `json:"kind"`
			AccountID string `json:"account_id"`
			Asset     string `json:"asset"`
			Expected  string `json:"expected"`
			Actual    string `json:"actual"`
		} `json:"issues"`
	}

	err := opts.do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil, &result)
	if apiErr, ok := err.(*apiError); ok && apiErr.Status == http.StatusConflict {
		err = json.Unmarshal([]byte(apiErr.Body), &result)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if result.Consistent {
		fmt.Fprintln(w, "Consistency check PASSED")
		return nil
	}

	fmt.Fprintln(w, "Consistency check FAILED")
	for _, issue := range result.Issues {
		fmt.Fprintf(w, "  %-22s %-24s %-6s expected=%s actual=%s\n",
			issue.Kind, issue.AccountID, issue.Asset, issue.Expected, issue.Actual)
	}
	return fmt.Errorf("%d consistency issue(s)", len(result.Issues))
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of an operator password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcryptGenerate([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
