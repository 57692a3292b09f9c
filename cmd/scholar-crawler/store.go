package main

import (
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
	"github.com/jamespreed/scholar-crawler/authorgraph/store/cdb"
	memgraph "github.com/jamespreed/scholar-crawler/authorgraph/store/memory"
)

// getAuthorGraph returns a suitable author graph implementation for the
// provided URI.
func getAuthorGraph(graphURI string, logger *logrus.Entry) (graph.Graph, error) {
	if graphURI == "" {
		return nil, fmt.Errorf("author graph URI must be specified with --graph-uri")
	}

	parsed, err := url.Parse(graphURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse author graph URI: %w", err)
	}

	switch parsed.Scheme {
	case "in-memory":
		logger.Info("using in-memory author graph store")

		return memgraph.NewInMemoryGraph(), nil
	case "postgresql":
		logger.Info("using CDB author graph store")

		return cdb.NewCockroachDBGraph(graphURI)
	default:
		return nil, fmt.Errorf("unsupported author graph URI scheme: %q", parsed.Scheme)
	}
}
