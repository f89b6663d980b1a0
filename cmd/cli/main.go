package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgermatch-cli",
		Short: "LedgerMatch CLI tool",
		Long:  `A command line interface for operating the LedgerMatch reconciliation API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "api-url", "http://localhost:8080", "Base URL of the LedgerMatch API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	var runAccount, runBatch string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start a matcher run and print its summary",
		Run: func(cmd *cobra.Command, args []string) {
			startRun(runAccount, runBatch)
		},
	}
	runCmd.Flags().StringVar(&runAccount, "account", "", "Limit the run to one source account")
	runCmd.Flags().StringVar(&runBatch, "batch", "", "Limit the run to one statement batch")
	rootCmd.AddCommand(runCmd)

	checksCmd := &cobra.Command{
		Use:   "checks",
		Short: "Consistency check operations",
	}

	checksCmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Run consistency detections now",
		Run: func(cmd *cobra.Command, args []string) {
			scanChecks()
		},
	})

	var checksSeverity string
	checksListCmd := &cobra.Command{
		Use:   "list",
		Short: "List open consistency checks",
		Run: func(cmd *cobra.Command, args []string) {
			listChecks(checksSeverity)
		},
	}
	checksListCmd.Flags().StringVar(&checksSeverity, "severity", "", "Filter by severity (low/medium/high/critical)")
	checksCmd.AddCommand(checksListCmd)
	rootCmd.AddCommand(checksCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "equation",
		Short: "Check the accounting equation",
		Run: func(cmd *cobra.Command, args []string) {
			checkEquation()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance",
		Run: func(cmd *cobra.Command, args []string) {
			trialBalance()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print reconciliation statistics",
		Run: func(cmd *cobra.Command, args []string) {
			showStats()
		},
	})

	return rootCmd
}

func startRun(accountID, batchID string) {
	payload := map[string]any{}
	if accountID != "" {
		payload["account_id"] = accountID
	}
	if batchID != "" {
		payload["batch_id"] = batchID
	}

	var run struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		Processed     int    `json:"processed"`
		AutoAccepted  int    `json:"auto_accepted"`
		PendingReview int    `json:"pending_review"`
		Unmatched     int    `json:"unmatched"`
		Downgraded    int    `json:"downgraded"`
		Skipped       int    `json:"skipped"`
		Errors        int    `json:"errors"`
	}
	doPost("/api/v1/reconciliation/runs", payload, &run)

	fmt.Printf("Run %s: %s\n", run.ID, run.Status)
	fmt.Printf("  processed:      %d\n", run.Processed)
	fmt.Printf("  auto accepted:  %d\n", run.AutoAccepted)
	fmt.Printf("  pending review: %d\n", run.PendingReview)
	fmt.Printf("  unmatched:      %d\n", run.Unmatched)
	fmt.Printf("  downgraded:     %d\n", run.Downgraded)
	fmt.Printf("  skipped:        %d\n", run.Skipped)
	fmt.Printf("  errors:         %d\n", run.Errors)

	if run.Status != "completed" {
		os.Exit(1)
	}
}

func scanChecks() {
	var report struct {
		Opened []struct {
			ID        string `json:"id"`
			CheckType string `json:"check_type"`
			Severity  string `json:"severity"`
			Detail    string `json:"detail"`
		} `json:"opened"`
		Duplicates int `json:"duplicates"`
		Errors     int `json:"errors"`
	}
	doPost("/api/v1/consistency/scan", map[string]any{}, &report)

	fmt.Printf("Scan opened %d checks (%d already tracked, %d detector errors)\n",
		len(report.Opened), report.Duplicates, report.Errors)
	for _, c := range report.Opened {
		fmt.Printf("  [%s] %s %s: %s\n", c.Severity, c.CheckType, c.ID, truncate(c.Detail, 80))
	}
}

func listChecks(severity string) {
	path := "/api/v1/consistency/checks?status=open"
	if severity != "" {
		path += "&severity=" + severity
	}

	var resp struct {
		Checks []struct {
			ID        string `json:"id"`
			CheckType string `json:"check_type"`
			Severity  string `json:"severity"`
			Detail    string `json:"detail"`
		} `json:"checks"`
		Total int64 `json:"total"`
	}
	doGet(path, &resp)

	fmt.Printf("%d open checks\n", resp.Total)
	for _, c := range resp.Checks {
		fmt.Printf("  [%s] %s %s: %s\n", c.Severity, c.CheckType, c.ID, truncate(c.Detail, 80))
	}
}

func checkEquation() {
	var report struct {
		TotalDebits  string `json:"total_debits"`
		TotalCredits string `json:"total_credits"`
		Residual     string `json:"residual"`
		Balanced     bool   `json:"balanced"`
	}
	doGet("/api/v1/ledger/equation", &report)

	fmt.Printf("Total debits:  %s\n", report.TotalDebits)
	fmt.Printf("Total credits: %s\n", report.TotalCredits)
	fmt.Printf("Residual:      %s\n", report.Residual)
	if !report.Balanced {
		fmt.Println("Accounting equation FAILED")
		os.Exit(1)
	}
	fmt.Println("Accounting equation holds")
}

func trialBalance() {
	var report struct {
		Rows []struct {
			AccountID   string `json:"account_id"`
			AccountName string `json:"account_name"`
			AccountType string `json:"account_type"`
			Debits      string `json:"debits"`
			Credits     string `json:"credits"`
			Net         string `json:"net"`
		} `json:"rows"`
		TotalDebits  string `json:"total_debits"`
		TotalCredits string `json:"total_credits"`
	}
	doGet("/api/v1/ledger/trial-balance", &report)

	for _, row := range report.Rows {
		fmt.Printf("%-30s %-10s debit %-14s credit %-14s net %s\n",
			truncate(row.AccountName, 30), row.AccountType, row.Debits, row.Credits, row.Net)
	}
	fmt.Printf("Totals: debit %s credit %s\n", report.TotalDebits, report.TotalCredits)
}

func showStats() {
	var stats map[string]any
	doGet("/api/v1/reconciliation/stats", &stats)
	printJSON(stats)
}

func doGet(path string, out any) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	decodeResponse(resp, out)
}

func doPost(path string, payload any, out any) {
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Error encoding request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) {
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Printf("Request failed (status %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	if err := json.Unmarshal(body, out); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
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
