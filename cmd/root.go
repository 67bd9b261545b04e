package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "n1agent",
	Short: "N1 helpdesk triage assistant with lexical retrieval and follow-up tracking",
	Long: `n1agent answers level-1 helpdesk requests from a markdown knowledge
base using BM25 retrieval and an LLM classifier, and tracks every
conversation with timed reminders, nudges and automatic closure when
the requester goes quiet.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".n1agent.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
