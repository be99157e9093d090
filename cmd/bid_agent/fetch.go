package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/bid-pilot/internal/fetch"
)

var (
	fetchUseBrowser bool
	fetchVerbose    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a posting page and print the extracted text",
	Long:  `Fetches a public posting page, detects the marketplace, strips navigation and bid-form noise, and prints the extracted posting text. Useful for inspecting what the scorer would see for a posting found outside the API.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchUseBrowser, "use-browser", false, "Use headless browser for JS-rendered posting pages (requires Chrome)")
	fetchCmd.Flags().BoolVarP(&fetchVerbose, "verbose", "v", false, "Print fetch details")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(_ *cobra.Command, args []string) error {
	urlStr := args[0]

	fetcher := fetch.NewPageFetcher(&fetch.PageFetcherConfig{
		UseBrowser: fetchUseBrowser,
		Verbose:    fetchVerbose,
	})

	result, err := fetcher.FetchPosting(context.Background(), urlStr)
	if err != nil {
		return fmt.Errorf("failed to fetch posting page: %w", err)
	}

	if fetchVerbose {
		fmt.Printf("Platform: %s\n", fetch.DetectPlatform(urlStr))
		fmt.Printf("Status:   %d\n", result.StatusCode)
		fmt.Printf("Length:   %d characters\n\n", len(result.Text))
	}

	fmt.Println(result.Text)
	return nil
}
