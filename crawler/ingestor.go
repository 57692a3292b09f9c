package crawler

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
	"github.com/jamespreed/scholar-crawler/authorindex/index"
	"github.com/jamespreed/scholar-crawler/dedup"
	"github.com/jamespreed/scholar-crawler/scholar"
)

// discovery is a crawlable profile revealed while ingesting a page.
// Name-only co-authors become graph nodes but never discoveries since
// there is no profile page to fetch for them.
type discovery struct {
	key    string
	siteID string
	url    string
}

// ingestor writes interpreted page data into the author graph and the
// optional author index.
type ingestor struct {
	graph  GraphAPI
	index  IndexAPI
	logger *logrus.Entry
}

// ingestProfile upserts the profile's author node, stub nodes for each
// co-author and the undirected edges between them. It returns the
// profile's canonical key and the co-author profiles that can be
// crawled next.
func (ing *ingestor) ingestProfile(
	profile *scholar.AuthorProfile, hints []scholar.CoauthorHint, now time.Time,
) (string, []discovery, error) {

	profileKey, idErr := dedup.CanonicalKey(dedup.Identity{
		SiteID:      profile.SiteID,
		Name:        profile.Name,
		Affiliation: profile.Affiliation,
		ProfileURL:  profile.ProfileURL,
	})

	author := &graph.Author{
		Key:         profileKey,
		SiteID:      profile.SiteID,
		Name:        profile.Name,
		ProfileURL:  profile.ProfileURL,
		Affiliation: profile.Affiliation,
		EmailDomain: profile.EmailDomain,
		Interests:   profile.Interests,
		CitedBy:     profile.CitedBy,
		Ambiguous:   errors.Is(idErr, dedup.ErrAmbiguousIdentity),
		FirstSeenAt: now,
		UpdatedAt:   now,
	}

	if err := ing.graph.UpsertAuthor(author); err != nil {
		return profileKey, nil, fmt.Errorf("ingest profile: %w", err)
	}

	if err := ing.indexProfile(author); err != nil {
		return profileKey, nil, fmt.Errorf("ingest profile: %w", err)
	}

	var discoveries []discovery

	for _, hint := range hints {
		hintKey, idErr := dedup.CanonicalKey(dedup.Identity{
			SiteID:      hint.SiteID,
			Name:        hint.Name,
			Affiliation: hint.Affiliation,
			ProfileURL:  hint.ProfileURL,
		})

		// Abbreviated publication-row names can collide with the
		// profile's own identity.
		if hintKey == profileKey {
			continue
		}

		stub := &graph.Author{
			Key:         hintKey,
			SiteID:      hint.SiteID,
			Name:        hint.Name,
			ProfileURL:  hint.ProfileURL,
			Affiliation: hint.Affiliation,
			Ambiguous:   errors.Is(idErr, dedup.ErrAmbiguousIdentity),
			FirstSeenAt: now,
			UpdatedAt:   now,
		}

		if err := ing.graph.UpsertAuthor(stub); err != nil {
			return profileKey, nil, fmt.Errorf("ingest co-author: %w", err)
		}

		err := ing.graph.UpsertEdge(&graph.Edge{
			A:           profileKey,
			B:           hintKey,
			Evidence:    hint.Evidence,
			FirstSeenAt: now,
			UpdatedAt:   now,
		})
		if err != nil {
			if errors.Is(err, graph.ErrSelfEdge) {
				continue
			}

			return profileKey, nil, fmt.Errorf("ingest co-author edge: %w", err)
		}

		if hint.SiteID != "" {
			discoveries = append(discoveries, discovery{
				key:    hintKey,
				siteID: hint.SiteID,
				url:    hint.ProfileURL,
			})
		}
	}

	return profileKey, discoveries, nil
}

// ingestSearchHint upserts the author node for a search-results entry
// and returns its crawlable discovery when the entry links a profile.
func (ing *ingestor) ingestSearchHint(
	hint scholar.AuthorHint, now time.Time,
) (*discovery, error) {

	key, idErr := dedup.CanonicalKey(dedup.Identity{
		SiteID:      hint.SiteID,
		Name:        hint.Name,
		Affiliation: hint.Affiliation,
		ProfileURL:  hint.ProfileURL,
	})

	author := &graph.Author{
		Key:         key,
		SiteID:      hint.SiteID,
		Name:        hint.Name,
		ProfileURL:  hint.ProfileURL,
		Affiliation: hint.Affiliation,
		EmailDomain: hint.EmailDomain,
		Interests:   hint.Interests,
		CitedBy:     hint.CitedBy,
		Ambiguous:   errors.Is(idErr, dedup.ErrAmbiguousIdentity),
		FirstSeenAt: now,
		UpdatedAt:   now,
	}

	if err := ing.graph.UpsertAuthor(author); err != nil {
		return nil, fmt.Errorf("ingest search hint: %w", err)
	}

	if err := ing.indexProfile(author); err != nil {
		return nil, fmt.Errorf("ingest search hint: %w", err)
	}

	if hint.SiteID == "" {
		return nil, nil
	}

	return &discovery{key: key, siteID: hint.SiteID, url: hint.ProfileURL}, nil
}

func (ing *ingestor) indexProfile(author *graph.Author) error {
	if ing.index == nil {
		return nil
	}

	return ing.index.Index(&index.Document{
		Key:         author.Key,
		SiteID:      author.SiteID,
		Name:        author.Name,
		Affiliation: author.Affiliation,
		EmailDomain: author.EmailDomain,
		Interests:   author.Interests,
		CitedBy:     author.CitedBy,
	})
}
