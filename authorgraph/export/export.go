/*
	export package writes a co-authorship graph as a zip archive of three
	CSV files:
		- edge_list.csv : node key to node key connections
		- edge_attrs.csv : the edge attributes (evidence, timestamps)
		- node_attrs.csv : the author node attributes
*/

package export

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
)

var (
	edgeListHeader = []string{"node1_key", "node2_key", "edge_id"}

	edgeAttrsHeader = []string{"edge_id", "evidence", "first_seen_at", "updated_at"}

	nodeAttrsHeader = []string{
		"key", "site_id", "name", "profile_url", "affiliation",
		"email_domain", "interests", "cited_by", "ambiguous", "first_seen_at",
	}
)

// Write streams the full contents of the provided graph to w as a zip
// archive of CSV files.
func Write(g graph.Graph, w io.Writer) error {
	archive := zip.NewWriter(w)

	if err := writeEdgeFiles(g, archive); err != nil {
		return err
	}

	if err := writeNodeAttrs(g, archive); err != nil {
		return err
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	return nil
}

func writeEdgeFiles(g graph.Graph, archive *zip.Writer) error {
	it, err := g.Edges()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer it.Close()

	listFile, err := archive.Create("edge_list.csv")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	// The archive writer only supports one open file at a time, so the
	// edge attribute rows are buffered while streaming the edge list.
	listWriter := csv.NewWriter(listFile)
	if err := listWriter.Write(edgeListHeader); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	attrRows := [][]string{edgeAttrsHeader}

	for it.Next() {
		edge := it.Edge()

		if err := listWriter.Write([]string{edge.A, edge.B, edge.ID.String()}); err != nil {
			return fmt.Errorf("export: %w", err)
		}

		attrRows = append(attrRows, []string{
			edge.ID.String(),
			strings.Join(edge.Evidence, "|"),
			edge.FirstSeenAt.UTC().Format(time.RFC3339),
			edge.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	if err := it.Error(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	listWriter.Flush()
	if err := listWriter.Error(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	attrsFile, err := archive.Create("edge_attrs.csv")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	attrsWriter := csv.NewWriter(attrsFile)
	if err := attrsWriter.WriteAll(attrRows); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	return nil
}

func writeNodeAttrs(g graph.Graph, archive *zip.Writer) error {
	it, err := g.Authors()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer it.Close()

	file, err := archive.Create("node_attrs.csv")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(nodeAttrsHeader); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	for it.Next() {
		a := it.Author()

		err := writer.Write([]string{
			a.Key,
			a.SiteID,
			a.Name,
			a.ProfileURL,
			a.Affiliation,
			a.EmailDomain,
			strings.Join(a.Interests, "|"),
			strconv.Itoa(a.CitedBy),
			strconv.FormatBool(a.Ambiguous),
			a.FirstSeenAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	if err := it.Error(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	return nil
}
