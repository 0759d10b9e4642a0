package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/tikzstudio/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generations and their cost",
	Long:  `Reads the history database configured by history_db. With the default in-memory database nothing survives between runs.`,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the TikZ code of one recorded generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, store, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		e, err := store.GetByID(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("generation %s: %w", args[0], err)
		}
		if e.Failed() {
			return fmt.Errorf("generation %s failed: %s", e.ID, e.Error)
		}
		fmt.Println(e.Markup)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of entries to show")
	historyCmd.Flags().String("session", "", "only show entries from this session")
	historyCmd.Flags().Bool("failed", false, "only show failed calls")
	historyCmd.Flags().Duration("since", 0, "only show entries newer than this (e.g. 24h)")
	historyCmd.Flags().Bool("summary", false, "print call, token and cost totals instead of entries")
	historyCmd.Flags().Bool("json", false, "print entries as JSON")
	historyCmd.Flags().Duration("prune", 0, "delete entries older than this and exit")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	limit, _ := cmd.Flags().GetInt("limit")
	session, _ := cmd.Flags().GetString("session")
	failed, _ := cmd.Flags().GetBool("failed")
	since, _ := cmd.Flags().GetDuration("since")
	summary, _ := cmd.Flags().GetBool("summary")
	asJSON, _ := cmd.Flags().GetBool("json")
	prune, _ := cmd.Flags().GetDuration("prune")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if prune > 0 {
		n, err := store.DeleteBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d entries older than %s\n", n, prune)
		return nil
	}

	filter := history.Filter{SessionID: session, FailedOnly: failed, Limit: limit}
	if since > 0 {
		t := time.Now().Add(-since)
		filter.Since = &t
	}

	if summary {
		sum, err := store.Summarize(ctx, filter)
		if err != nil {
			return err
		}
		fmt.Println("Generation History")
		fmt.Println("==================")
		fmt.Printf("  Calls:            %d\n", sum.Calls)
		fmt.Printf("  Failures:         %d\n", sum.Failures)
		fmt.Printf("  Input tokens:     %d\n", sum.InputTokens)
		fmt.Printf("  Output tokens:    %d\n", sum.OutputTokens)
		fmt.Printf("  Estimated cost:   $%.4f\n", sum.CostUSD)
		return nil
	}

	entries, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No generations recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tOPERATION\tMODE\tMS\tCOST\tPROMPT")
	for _, e := range entries {
		prompt := strings.Join(strings.Fields(e.Prompt), " ")
		if e.Failed() {
			prompt = "FAILED (" + string(e.ErrorKind) + "): " + prompt
		}
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t$%.4f\t%s\n",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Operation, e.Mode, e.DurationMS, e.CostUSD, prompt)
	}
	return w.Flush()
}
