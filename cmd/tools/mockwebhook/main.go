package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pehlione.com/shop/internal/modules/payments"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mockwebhook",
		Short: "Sign and send Paystack-style webhooks to a local server",
	}
	rootCmd.PersistentFlags().String("secret", os.Getenv("PAYSTACK_WEBHOOK_SECRET"), "webhook secret (default $PAYSTACK_WEBHOOK_SECRET)")

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(sendCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the signature header for a payload file (stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretFlag(cmd)
			if err != nil {
				return err
			}

			var body []byte
			if len(args) == 1 {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", payments.SignatureHeader, payments.SignHex(body, secret))
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a signed charge.success event",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretFlag(cmd)
			if err != nil {
				return err
			}
			url, _ := cmd.Flags().GetString("url")
			event, _ := cmd.Flags().GetString("event")
			orderID, _ := cmd.Flags().GetString("order-id")
			reference, _ := cmd.Flags().GetString("reference")
			amount, _ := cmd.Flags().GetInt64("amount")
			currency, _ := cmd.Flags().GetString("currency")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			if orderID == "" {
				return fmt.Errorf("--order-id is required")
			}
			if reference == "" {
				reference = "ref_" + uuid.NewString()[:12]
			}

			body, err := json.Marshal(map[string]any{
				"event": event,
				"data": map[string]any{
					"reference": reference,
					"amount":    amount,
					"currency":  currency,
					"status":    "success",
					"metadata":  map[string]any{"order_id": orderID},
				},
			})
			if err != nil {
				return err
			}
			sig := payments.SignHex(body, secret)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", payments.SignatureHeader, sig)
			fmt.Fprintf(out, "Body: %s\n", body)
			if dryRun {
				fmt.Fprintln(out, "[dry run] not sending")
				return nil
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(payments.SignatureHeader, sig)

			client := &http.Client{Timeout: 15 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			respBody, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(out, "Status: %d\nResponse: %s\n", resp.StatusCode, respBody)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server answered %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().String("url", "http://localhost:8080/webhooks/paystack", "webhook URL")
	cmd.Flags().String("event", payments.EventChargeSuccess, "event type")
	cmd.Flags().String("order-id", "", "order id placed in metadata.order_id")
	cmd.Flags().String("reference", "", "transaction reference (random when empty)")
	cmd.Flags().Int64("amount", 0, "amount in minor units as the gateway reports it")
	cmd.Flags().String("currency", "NGN", "currency")
	cmd.Flags().Bool("dry-run", false, "print the signed request without sending it")
	return cmd
}

func secretFlag(cmd *cobra.Command) ([]byte, error) {
	s, _ := cmd.Flags().GetString("secret")
	if s == "" {
		return nil, fmt.Errorf("--secret not provided and PAYSTACK_WEBHOOK_SECRET not set")
	}
	return []byte(s), nil
}
