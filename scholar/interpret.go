package scholar

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Phrases scholar embeds in its bot-detection interstitials. Any one of
// them marks the whole document as a challenge page.
var challengeMarkers = []string{
	"Our systems have detected unusual traffic from your computer network",
	"Please show you're not a robot",
	"Sorry, we can't verify that you're not a robot",
	"really you sending the requests, and not a robot",
}

// isChallenge reports whether the document body contains a known
// bot-detection marker.
func isChallenge(content []byte) bool {
	for _, marker := range challengeMarkers {
		if bytes.Contains(content, []byte(marker)) {
			return true
		}
	}

	return false
}

// InterpretSearchResults parses an author-search page into the authors
// it lists and the link to the next page of results, when one exists.
func InterpretSearchResults(doc *Document) (*SearchResults, error) {
	if isChallenge(doc.Content) {
		return nil, ErrChallengeDetected
	}

	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Content))
	if err != nil {
		return nil, ErrMalformedPage
	}

	// The results container is present even for searches with no hits.
	// Its absence means we are not looking at a search page at all.
	container := root.Find("#gsc_sa_ccl")
	if container.Length() == 0 {
		return nil, ErrMalformedPage
	}

	results := new(SearchResults)

	container.Find("div.gs_ai_t").Each(func(_ int, entry *goquery.Selection) {
		hint := AuthorHint{}

		link := entry.Find("h3.gs_ai_name a").First()
		hint.Name = cleanText(link.Text())

		if href, exists := link.Attr("href"); exists {
			hint.SiteID = siteIDFromHref(href)
			hint.ProfileURL = resolveRef(href)
		}

		hint.Affiliation = cleanText(entry.Find("div.gs_ai_aff").First().Text())
		hint.EmailDomain = emailDomain(entry.Find("div.gs_ai_eml").First().Text())
		hint.CitedBy = citationCount(entry.Find("div.gs_ai_cby").First().Text())

		entry.Find("a.gs_ai_one_int").Each(func(_ int, interest *goquery.Selection) {
			if text := cleanText(interest.Text()); text != "" {
				hint.Interests = append(hint.Interests, text)
			}
		})

		if hint.Name != "" {
			results.Authors = append(results.Authors, hint)
		}
	})

	nextBtn := root.Find("button.gs_btnPR[onclick]").First()
	if onclick, exists := nextBtn.Attr("onclick"); exists {
		results.NextPageURL = nextPageRef(onclick)
	}

	return results, nil
}

// InterpretProfile parses an author's profile page into the author's
// own fields and the co-author relationships the page reveals, both
// from the listed co-author sidebar and from the author strings of
// publication rows.
func InterpretProfile(doc *Document) (*AuthorProfile, []CoauthorHint, error) {
	if isChallenge(doc.Content) {
		return nil, nil, ErrChallengeDetected
	}

	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Content))
	if err != nil {
		return nil, nil, ErrMalformedPage
	}

	nameDiv := root.Find("#gsc_prf_in")
	if nameDiv.Length() == 0 {
		return nil, nil, ErrMalformedPage
	}

	profile := &AuthorProfile{
		SiteID:      siteIDFromHref(doc.URL),
		Name:        cleanText(nameDiv.First().Text()),
		Affiliation: cleanText(root.Find("div.gsc_prf_il").First().Text()),
		EmailDomain: emailDomain(root.Find("#gsc_prf_ivh").First().Text()),
		ProfileURL:  doc.URL,
	}

	root.Find("#gsc_prf_int a").Each(func(_ int, interest *goquery.Selection) {
		if text := cleanText(interest.Text()); text != "" {
			profile.Interests = append(profile.Interests, text)
		}
	})

	// The citation stats table lists all-time counts in its first
	// column: citations, then h-index, then i10-index.
	profile.CitedBy = citationCount(root.Find("td.gsc_rsb_std").First().Text())

	hints := newCoauthorAccumulator(profile.SiteID)

	// Listed co-authors from the sidebar.
	root.Find("#gsc_rsb_co a[href*='user=']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")

		hints.add(CoauthorHint{
			SiteID:      siteIDFromHref(href),
			Name:        cleanText(link.Text()),
			Affiliation: cleanText(link.Parent().Find("span.gsc_rsb_a_ext").First().Text()),
			ProfileURL:  resolveRef(href),
			Evidence:    []string{EvidenceListedCoauthor},
		})
	})

	// Co-authors from publication rows, keyed by the publication's
	// citation id so repeated collaborations accumulate evidence.
	root.Find("tr.gsc_a_tr").Each(func(_ int, row *goquery.Selection) {
		titleCell := row.Find("td.gsc_a_t")

		href, _ := titleCell.Find("a").First().Attr("href")
		pubID := citationIDFromHref(href)
		if pubID == "" {
			return
		}

		authorsLine := titleCell.Find("div.gs_gray").First().Text()
		for _, name := range splitAuthorList(authorsLine) {
			if isSelfName(name, profile.Name) {
				continue
			}

			hints.add(CoauthorHint{
				Name:     name,
				Evidence: []string{pubID},
			})
		}
	})

	return profile, hints.list(), nil
}

// coauthorAccumulator merges repeated observations of the same
// co-author, preferring site ids as merge keys and falling back to
// case-folded names.
type coauthorAccumulator struct {
	selfID string
	order  []string
	hints  map[string]*CoauthorHint
}

func newCoauthorAccumulator(selfID string) *coauthorAccumulator {
	return &coauthorAccumulator{
		selfID: selfID,
		hints:  make(map[string]*CoauthorHint),
	}
}

func (a *coauthorAccumulator) add(hint CoauthorHint) {
	if hint.Name == "" && hint.SiteID == "" {
		return
	}
	if hint.SiteID != "" && hint.SiteID == a.selfID {
		return
	}

	key := "id:" + hint.SiteID
	if hint.SiteID == "" {
		key = "name:" + strings.ToLower(hint.Name)
	}

	existing, ok := a.hints[key]
	if !ok {
		a.hints[key] = &hint
		a.order = append(a.order, key)
		return
	}

	if existing.Affiliation == "" {
		existing.Affiliation = hint.Affiliation
	}
	if existing.ProfileURL == "" {
		existing.ProfileURL = hint.ProfileURL
	}
	existing.Evidence = append(existing.Evidence, hint.Evidence...)
}

func (a *coauthorAccumulator) list() []CoauthorHint {
	if len(a.order) == 0 {
		return nil
	}

	list := make([]CoauthorHint, 0, len(a.order))
	for _, key := range a.order {
		list = append(list, *a.hints[key])
	}

	return list
}

// nextPageRef decodes the target of the next-page button. The button's
// onclick navigates to a hex-escaped relative URL, for example:
//
//	window.location='/citations\x3fview_op\x3dsearch_authors...'
func nextPageRef(onclick string) string {
	i := strings.IndexByte(onclick, '\'')
	if i < 0 {
		return ""
	}

	ref := strings.Trim(onclick[i:], "'")
	ref = strings.ReplaceAll(ref, `\x`, "%")

	if unescaped, err := url.QueryUnescape(ref); err == nil {
		ref = unescaped
	}

	return resolveRef(ref)
}

// citationIDFromHref extracts the citation_for_view identifier from a
// publication link.
func citationIDFromHref(href string) string {
	i := strings.IndexByte(href, '?')
	if i < 0 {
		return ""
	}

	values, err := url.ParseQuery(href[i+1:])
	if err != nil {
		return ""
	}

	return values.Get("citation_for_view")
}

// emailDomain extracts the domain from a "Verified email at xxx" label.
func emailDomain(text string) string {
	text = cleanText(text)

	i := strings.Index(text, " at ")
	if i < 0 {
		return ""
	}

	domain := text[i+len(" at "):]
	if j := strings.IndexByte(domain, ' '); j >= 0 {
		domain = domain[:j]
	}

	return strings.Trim(domain, ".-")
}

// citationCount extracts the trailing integer from labels such as
// "Cited by 12345" or a bare count cell.
func citationCount(text string) int {
	fields := strings.Fields(cleanText(text))
	if len(fields) == 0 {
		return 0
	}

	count, err := strconv.Atoi(strings.ReplaceAll(fields[len(fields)-1], ",", ""))
	if err != nil || count < 0 {
		return 0
	}

	return count
}

// isSelfName reports whether a publication-row author name refers to
// the profile owner. Row names are abbreviated to a first initial plus
// the remaining name parts ("Jane Doe" appears as "J Doe"), so both the
// full and the abbreviated form count as a match.
func isSelfName(name, profileName string) bool {
	if profileName == "" {
		return false
	}
	if strings.EqualFold(name, profileName) {
		return true
	}

	parts := strings.Fields(profileName)
	if len(parts) < 2 {
		return false
	}

	abbreviated := parts[0][:1] + " " + strings.Join(parts[1:], " ")

	return strings.EqualFold(name, abbreviated)
}

// splitAuthorList splits a publication row's author line into names.
// Scholar truncates long lists with an ellipsis which is dropped along
// with initials-only fragments too short to identify anyone.
func splitAuthorList(line string) []string {
	line = strings.ReplaceAll(line, "…", "")
	line = strings.ReplaceAll(line, " ", " ")

	var names []string
	for _, part := range strings.Split(line, ",") {
		name := cleanText(part)
		if len(name) > 2 {
			names = append(names, name)
		}
	}

	return names
}

// cleanText collapses runs of whitespace and trims the result.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
