package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/prodscout/internal/export"
)

var (
	kbCategory string
	kbFormat   string
	kbOutput   string
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Browse and export the knowledge store",
	Long: `Browse committed product records.

Examples:
  prodscout kb                          # List all records
  prodscout kb --category Headphones
  prodscout kb show sony-wh1000xm5 --format yaml
  prodscout kb report -o research.docx
  prodscout kb export -o products.csv`,
	Args: cobra.NoArgs,
	RunE: runKBList,
}

var kbShowCmd = &cobra.Command{
	Use:   "show <product-id>",
	Short: "Show one record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := apiClient.Record(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		out := cmd.OutOrStdout()
		return writeFormatted(out, kbFormat, rec, func(w io.Writer) error { return writeRecord(w, rec) })
	},
}

var kbReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a Word report of the knowledge store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := apiClient.Knowledge(cmd.Context(), kbCategory)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		if len(records) == 0 {
			return fmt.Errorf("no records to report")
		}
		path := kbOutput
		if path == "" {
			path = "product_research.docx"
		}
		if err := export.WriteReport(path, records, time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d products to %s\n", len(records), path)
		return nil
	},
}

var kbExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the knowledge store as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := apiClient.Knowledge(cmd.Context(), kbCategory)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}

		if kbOutput == "" || kbOutput == "-" {
			return export.WriteCSV(cmd.OutOrStdout(), records)
		}
		f, err := os.Create(kbOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", kbOutput, err)
		}
		if err := export.WriteCSV(f, records); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d products to %s\n", len(records), kbOutput)
		return nil
	},
}

func init() {
	kbCmd.PersistentFlags().StringVarP(&kbCategory, "category", "c", "", "only records in this category")
	kbCmd.Flags().StringVarP(&kbFormat, "format", "f", formatText, "output format: text, json, yaml")
	kbShowCmd.Flags().StringVarP(&kbFormat, "format", "f", formatText, "output format: text, json, yaml")
	kbReportCmd.Flags().StringVarP(&kbOutput, "output", "o", "", "report path (default product_research.docx)")
	kbExportCmd.Flags().StringVarP(&kbOutput, "output", "o", "", "CSV path (default stdout)")

	kbCmd.AddCommand(kbShowCmd)
	kbCmd.AddCommand(kbReportCmd)
	kbCmd.AddCommand(kbExportCmd)
}

func runKBList(cmd *cobra.Command, args []string) error {
	records, err := apiClient.Knowledge(cmd.Context(), kbCategory)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	out := cmd.OutOrStdout()
	return writeFormatted(out, kbFormat, records, func(w io.Writer) error {
		if len(records) == 0 {
			fmt.Fprintln(w, "No records found")
			return nil
		}
		writeRecordTable(w, records)
		fmt.Fprintf(w, "\n%d records\n", len(records))
		return nil
	})
}
