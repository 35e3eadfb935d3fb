// cmd/sblite-cli/upload.go
package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <bucket> <file>",
	Short: "Upload a file to a storage bucket",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		file, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open file: %w", err)
		}
		defer file.Close()

		name := filepath.Base(args[1])
		contentType := mime.TypeByExtension(filepath.Ext(name))

		obj, err := client.Storage.Upload(cmd.Context(), args[0], name, file, contentType)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s\n", obj.Key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
