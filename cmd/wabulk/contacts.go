package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swatto/wabulk/internal/contacts"
)

func (a *app) templateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an example contacts CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				return contacts.ExampleCSV(cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("template: %w", err)
			}
			if err := contacts.ExampleCSV(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("template: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) previewCmd() *cobra.Command {
	var (
		csvPath string
		message string
		row     int
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the message one contact would receive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := contacts.LoadFile(csvPath)
			if err != nil {
				return err
			}
			selected, err := list.Range(row, row)
			if err != nil {
				return err
			}
			return a.showPreview(cmd.OutOrStdout(), selected[0], message)
		},
	}
	f := cmd.Flags()
	f.StringVar(&csvPath, "csv", "", "contacts CSV with phone_number and name columns")
	f.StringVarP(&message, "message", "m", contacts.DefaultTemplate, "message template, {column} placeholders")
	f.IntVar(&row, "row", 1, "contact to preview, 1-based")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
