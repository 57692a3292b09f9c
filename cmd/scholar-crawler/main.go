// Package main provides the entry point for the scholar-crawler CLI.
//
// scholar-crawler walks the Google Scholar co-authorship graph outwards
// from a set of seed author searches or profile identifiers and
// persists what it finds as a resumable crawl.
//
// Usage:
//
//	scholar-crawler crawl "jane doe" --max-depth 2
//	scholar-crawler export graph.zip
//
// See --help for all available options.
package main

func main() {
	Execute()
}
