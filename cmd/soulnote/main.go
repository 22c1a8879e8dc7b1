package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "soulnote",
	Short: "soulnote — 记录心情、捕捉灵感、管理待办的陪伴助手",
	Long: `soulnote captures free-form voice and text notes, extracts moods,
inspirations and todos from them, and answers questions grounded in what
you have recorded.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(todosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
