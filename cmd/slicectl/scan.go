package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aashish23092/slice-receipts/app"
	"github.com/Aashish23092/slice-receipts/service"
	"github.com/Aashish23092/slice-receipts/utils/totals"
)

func scanCmd() *cobra.Command {
	var opts service.ScanOptions
	cmd := &cobra.Command{
		Use:   "scan <receipt>",
		Short: "Extract items and totals from a receipt image or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, err := readUpload(args[0])
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), loadConfig(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Receipts.ScanReceipt(cmd.Context(), upload, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().BoolVar(&opts.UseHybrid, "hybrid", true, "allow the secondary extractor when quality is low")
	cmd.Flags().BoolVar(&opts.ForceFallback, "force-fallback", false, "always consult the secondary extractor")
	cmd.Flags().BoolVar(&opts.IncludeDebug, "debug", false, "include recognized lines in the output")
	return cmd
}

func totalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals <receipt>",
		Short: "Print the recognized lines and the detected totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, err := readUpload(args[0])
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), loadConfig(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			lines, err := a.Receipts.Lines(cmd.Context(), upload)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, line := range lines {
				fmt.Fprintf(out, "%3d  %s\n", i, line)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(totals.Detect(lines))
		},
	}
}

func readUpload(path string) (service.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return service.Upload{}, fmt.Errorf("failed to read receipt: %w", err)
	}
	return service.Upload{
		Data:        data,
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
	}, nil
}
