package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/HendryAvila/backlog/internal/backlog"
	"github.com/HendryAvila/backlog/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the tasks file as JSON or YAML",
	Long: "Print every issue and task in the tasks file. The file is read under the\n" +
		"same lock the server uses, so the output is a consistent snapshot.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		st := store.NewFileStore(cfg.TasksFile, store.WithLockTimeout(cfg.LockTimeout))
		return st.View(cmd.Context(), func(doc *backlog.Document) error {
			return writeDocument(cmd.OutOrStdout(), doc, format)
		})
	},
}

// writeDocument encodes doc in the requested format.
func writeDocument(w io.Writer, doc *backlog.Document, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: must be json or yaml", format)
	}
}
