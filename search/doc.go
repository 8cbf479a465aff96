// Package search provides search provider implementations for the sift
// pipeline.
//
// Available providers:
//
//   - DuckDuckGo: free, no API key required (scrapes lite.duckduckgo.com)
//   - Brave: requires an API key via X-Subscription-Token header
//   - Tavily: requires an API key, supports basic/advanced depth modes
//
// All providers populate RawResult.Source and Timestamp; relevance scoring
// is left to the dispatcher.
//
// # DuckDuckGo Example
//
//	provider := search.NewDuckDuckGo()
//	results, err := provider.Search(ctx, "golang web frameworks")
//
// # Custom Providers
//
// Implement the sift.SearchProvider interface to add your own backend:
//
//	type SearchProvider interface {
//	    Search(ctx context.Context, query string) ([]sift.RawResult, error)
//	}
package search
