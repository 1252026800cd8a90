package main

import "github.com/spf13/cobra"

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "contactminer",
	Short:         "contactminer — extracts and classifies business phone numbers from company websites",
	SilenceErrors: true,
	SilenceUsage:  true,
	Long: `contactminer reads a spreadsheet of companies and candidate URLs,
crawls each site's contact-relevant pages, extracts phone-like
candidates, classifies them with an LLM, consolidates per-site
results, and writes a run-stamped directory of report workbooks.

Homepage: https://github.com/tariktz/contactminer`,
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version of contactminer",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("contactminer", Version)
		},
	})
}

// Execute runs the root command. It is the single entry point called by main.
func Execute() error {
	return rootCmd.Execute()
}
