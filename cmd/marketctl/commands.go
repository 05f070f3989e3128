package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketplace-backend/internal/connect"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

const defaultStaleAfter = 24 * time.Hour

func verifySessionCmd(open runtimeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-session <session_id>",
		Short: "Reconcile a checkout session and mark its order paid",
		Long: `Looks the session up across connected accounts, the same way the
post-redirect verification endpoint does, and confirms payment when the
session is complete.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.verifier.Verify(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return describe(err)
			}
			return writeJSON(cmd, result)
		},
	}
}

func connectStoreCmd(open runtimeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "connect-store <store_id> <owner_id> <email>",
		Short: "Provision a connected account for a store and print the onboarding link",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid store id %q", args[0])
			}
			ownerID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid owner id %q", args[1])
			}

			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.onboarder.Onboard(cmd.Context(), connect.OnboardInput{
				StoreID: storeID,
				OwnerID: ownerID,
				Email:   strings.TrimSpace(args[2]),
			})
			if err != nil {
				return describe(err)
			}
			return writeJSON(cmd, map[string]any{
				"url":       result.URL,
				"accountId": result.AccountID,
				"created":   result.Created,
			})
		},
	}
}

func pendingOrdersCmd(open runtimeFactory) *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "pending-orders",
		Short: "List orders that have stayed pending past the threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			threshold := olderThan
			if threshold <= 0 {
				threshold = rt.staleAfter
			}
			if threshold <= 0 {
				threshold = defaultStaleAfter
			}
			cutoff := time.Now().UTC().Add(-threshold)

			total, err := rt.pending.CountPendingBefore(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("count pending orders: %w", err)
			}
			rows, err := rt.pending.ListPendingBefore(cmd.Context(), cutoff, limit)
			if err != nil {
				return fmt.Errorf("list pending orders: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tSTORE\tTOTAL\tEMAIL\tCREATED")
			for _, o := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					o.OrderNumber, o.StoreID, o.TotalAmount.StringFixed(2), o.CustomerEmail,
					o.CreatedAt.UTC().Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d pending orders older than %s\n", len(rows), total, threshold)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age threshold (defaults to the configured stale window)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows to print")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe keeps the typed error's code in front of the message and flags
// failures that are worth re-running.
func describe(err error) error {
	te := pkgerrors.As(err)
	if te == nil {
		return err
	}
	if pkgerrors.IsRetryable(err) {
		return fmt.Errorf("%s (transient, safe to retry): %w", te.Code(), err)
	}
	return fmt.Errorf("%s: %w", te.Code(), err)
}
