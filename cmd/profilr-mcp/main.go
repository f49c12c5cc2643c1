package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/profilr/api/handler"
)

func main() {
	apiURL := os.Getenv("PROFILR_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PROFILR_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PROFILR_API_KEY is required")
		os.Exit(1)
	}

	// Scrapes are serialized server-side behind humanized delays, so a call
	// can wait on the ones queued before it.
	api := newAPIClient(apiURL, apiKey, 5*time.Minute)

	s := server.NewMCPServer(
		"profilr",
		handler.Version,
		server.WithToolCapabilities(false),
	)
	registerTools(s, api)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func registerTools(s *server.MCPServer, api *apiClient) {
	scrapeProfileTool := mcp.NewTool("scrape_profile",
		mcp.WithDescription("Scrape a LinkedIn profile page with the server's logged-in browser session and return its structured record: name, headline, location, about, up to 5 experiences, up to 3 education entries and up to 10 skills. Missing fields are null."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Profile URL of the form https://www.linkedin.com/in/<handle>/"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the record on the server so get_saved_profile can return it later (default: false)"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached record younger than this many milliseconds instead of scraping again (default: 0, always scrape)"),
		),
	)
	s.AddTool(scrapeProfileTool, handleScrapeProfile(api))

	getSavedProfileTool := mcp.NewTool("get_saved_profile",
		mcp.WithDescription("Return a previously saved profile record without opening the browser."),
		mcp.WithString("handle",
			mcp.Required(),
			mcp.Description("Profile handle, the path segment after /in/ (e.g. 'ada-lovelace'), or a full profile URL"),
		),
	)
	s.AddTool(getSavedProfileTool, handleGetSavedProfile(api))
}
