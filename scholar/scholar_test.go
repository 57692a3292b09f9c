package scholar

import (
	"errors"
	"strings"
	"testing"

	check "gopkg.in/check.v1"
)

// Initialize and register an instance of the interpreterTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(interpreterTestSuite))

// Test registers the [check] library with the go testing library and enables
// the running of the test suite using the go testing library.
func Test(t *testing.T) {
	check.TestingT(t)
}

type interpreterTestSuite struct{}

const searchPageHTML = `<!DOCTYPE html>
<html><body>
<div id="gsc_sa_ccl">
  <div class="gs_ai gs_scl">
    <div class="gs_ai_t">
      <h3 class="gs_ai_name"><a href="/citations?hl=en&amp;user=AbCdEf123456">Jane Doe</a></h3>
      <div class="gs_ai_aff">Stanford University</div>
      <div class="gs_ai_eml">Verified email at stanford.edu</div>
      <div class="gs_ai_cby">Cited by 15210</div>
      <div class="gs_ai_int">
        <a class="gs_ai_one_int" href="#">Machine Learning</a>
        <a class="gs_ai_one_int" href="#">Robotics</a>
      </div>
    </div>
  </div>
  <div class="gs_ai gs_scl">
    <div class="gs_ai_t">
      <h3 class="gs_ai_name"><a href="/citations?hl=en&amp;user=ZyXwVu654321">John Roe</a></h3>
      <div class="gs_ai_aff">MIT</div>
      <div class="gs_ai_cby"></div>
    </div>
  </div>
</div>
<button class="gs_btnPR gs_in_ib" onclick="window.location='/citations\x3fview_op\x3dsearch_authors\x26mauthors\x3ddoe\x26after_author\x3dXYZ'">
</button>
</body></html>`

const searchPageLastHTML = `<!DOCTYPE html>
<html><body>
<div id="gsc_sa_ccl">
  <div class="gs_ai_t">
    <h3 class="gs_ai_name"><a href="/citations?user=AbCdEf123456">Jane Doe</a></h3>
  </div>
</div>
<button class="gs_btnPR gs_in_ib" disabled></button>
</body></html>`

const profilePageHTML = `<!DOCTYPE html>
<html><body>
<div id="gsc_prf_in">Jane  Doe</div>
<div class="gsc_prf_il">Professor of Computer Science, Stanford University</div>
<div id="gsc_prf_ivh">Verified email at stanford.edu - <a href="#">Homepage</a></div>
<div id="gsc_prf_int">
  <a href="#">Machine Learning</a>
  <a href="#">Robotics</a>
</div>
<table id="gsc_rsb_st">
  <tr><td class="gsc_rsb_std">15210</td><td class="gsc_rsb_std">9100</td></tr>
  <tr><td class="gsc_rsb_std">54</td><td class="gsc_rsb_std">40</td></tr>
</table>
<ul id="gsc_rsb_co">
  <li>
    <span class="gsc_rsb_a_desc">
      <a href="/citations?user=ZyXwVu654321&amp;hl=en">John Roe</a><br>
      <span class="gsc_rsb_a_ext">MIT</span>
    </span>
  </li>
</ul>
<table>
  <tr class="gsc_a_tr">
    <td class="gsc_a_t">
      <a href="/citations?view_op=view_citation&amp;user=AbCdEf123456&amp;citation_for_view=AbCdEf123456:pub001">Learning to Crawl</a>
      <div class="gs_gray">J Doe, J Roe, A Nguyen</div>
      <div class="gs_gray">Journal of Examples, 2021</div>
    </td>
  </tr>
  <tr class="gsc_a_tr">
    <td class="gsc_a_t">
      <a href="/citations?view_op=view_citation&amp;user=AbCdEf123456&amp;citation_for_view=AbCdEf123456:pub002">Crawling Deeper</a>
      <div class="gs_gray">J Doe, J Roe</div>
      <div class="gs_gray">Conference on Samples, 2022</div>
    </td>
  </tr>
</table>
</body></html>`

const challengePageHTML = `<!DOCTYPE html>
<html><body>
<div>Our systems have detected unusual traffic from your computer network.
Please show you're not a robot.</div>
</body></html>`

func (s *interpreterTestSuite) TestInterpretSearchResults(c *check.C) {
	results, err := InterpretSearchResults(&Document{
		URL:     SearchURL("jane doe"),
		Content: []byte(searchPageHTML),
	})
	c.Assert(err, check.IsNil)
	c.Assert(results.Authors, check.HasLen, 2)

	jane := results.Authors[0]
	c.Assert(jane.Name, check.Equals, "Jane Doe")
	c.Assert(jane.SiteID, check.Equals, "AbCdEf123456")
	c.Assert(jane.Affiliation, check.Equals, "Stanford University")
	c.Assert(jane.EmailDomain, check.Equals, "stanford.edu")
	c.Assert(jane.CitedBy, check.Equals, 15210)
	c.Assert(jane.Interests, check.DeepEquals, []string{"Machine Learning", "Robotics"})
	c.Assert(
		strings.HasPrefix(jane.ProfileURL, "https://scholar.google.com/citations?"),
		check.Equals,
		true,
	)

	// Optional fields missing from the second entry stay zero-valued.
	john := results.Authors[1]
	c.Assert(john.Name, check.Equals, "John Roe")
	c.Assert(john.EmailDomain, check.Equals, "")
	c.Assert(john.CitedBy, check.Equals, 0)

	c.Assert(
		results.NextPageURL,
		check.Equals,
		"https://scholar.google.com/citations?view_op=search_authors&mauthors=doe&after_author=XYZ",
	)
}

func (s *interpreterTestSuite) TestInterpretSearchResultsLastPage(c *check.C) {
	results, err := InterpretSearchResults(&Document{
		Content: []byte(searchPageLastHTML),
	})
	c.Assert(err, check.IsNil)
	c.Assert(results.Authors, check.HasLen, 1)
	c.Assert(results.NextPageURL, check.Equals, "")
}

func (s *interpreterTestSuite) TestInterpretSearchResultsMalformed(c *check.C) {
	_, err := InterpretSearchResults(&Document{
		Content: []byte("<html><body><p>nothing here</p></body></html>"),
	})
	c.Assert(errors.Is(err, ErrMalformedPage), check.Equals, true)
}

func (s *interpreterTestSuite) TestInterpretSearchResultsChallenge(c *check.C) {
	_, err := InterpretSearchResults(&Document{
		Content: []byte(challengePageHTML),
	})
	c.Assert(errors.Is(err, ErrChallengeDetected), check.Equals, true)
}

func (s *interpreterTestSuite) TestInterpretProfile(c *check.C) {
	profile, hints, err := InterpretProfile(&Document{
		URL:     ProfileURL("AbCdEf123456"),
		Content: []byte(profilePageHTML),
	})
	c.Assert(err, check.IsNil)

	c.Assert(profile.SiteID, check.Equals, "AbCdEf123456")
	c.Assert(profile.Name, check.Equals, "Jane Doe")
	c.Assert(
		profile.Affiliation,
		check.Equals,
		"Professor of Computer Science, Stanford University",
	)
	c.Assert(profile.EmailDomain, check.Equals, "stanford.edu")
	c.Assert(profile.Interests, check.DeepEquals, []string{"Machine Learning", "Robotics"})
	c.Assert(profile.CitedBy, check.Equals, 15210)

	// John Roe appears in the sidebar and in both publication rows: the
	// observations merge into a single hint with accumulated evidence.
	c.Assert(hints, check.HasLen, 3)

	byName := make(map[string]CoauthorHint, len(hints))
	for _, hint := range hints {
		byName[hint.Name] = hint
	}

	john := byName["John Roe"]
	c.Assert(john.SiteID, check.Equals, "ZyXwVu654321")
	c.Assert(john.Affiliation, check.Equals, "MIT")
	c.Assert(john.Evidence, check.DeepEquals, []string{EvidenceListedCoauthor})

	// "J Roe" from the publication rows has no site id so it remains a
	// distinct name-only hint with per-publication evidence.
	jRoe := byName["J Roe"]
	c.Assert(jRoe.SiteID, check.Equals, "")
	c.Assert(jRoe.Evidence, check.DeepEquals, []string{
		"AbCdEf123456:pub001",
		"AbCdEf123456:pub002",
	})

	nguyen := byName["A Nguyen"]
	c.Assert(nguyen.Evidence, check.DeepEquals, []string{"AbCdEf123456:pub001"})

	// The profile's own name never appears as a co-author hint.
	_, found := byName["J Doe"]
	c.Assert(found, check.Equals, false)
}

func (s *interpreterTestSuite) TestInterpretProfilePartial(c *check.C) {
	profile, hints, err := InterpretProfile(&Document{
		URL:     ProfileURL("AbCdEf123456"),
		Content: []byte(`<html><body><div id="gsc_prf_in">Jane Doe</div></body></html>`),
	})
	c.Assert(err, check.IsNil)
	c.Assert(profile.Name, check.Equals, "Jane Doe")
	c.Assert(profile.Affiliation, check.Equals, "")
	c.Assert(profile.EmailDomain, check.Equals, "")
	c.Assert(profile.Interests, check.IsNil)
	c.Assert(profile.CitedBy, check.Equals, 0)
	c.Assert(hints, check.IsNil)
}

func (s *interpreterTestSuite) TestInterpretProfileMalformed(c *check.C) {
	_, _, err := InterpretProfile(&Document{
		Content: []byte("<html><body><p>not a profile</p></body></html>"),
	})
	c.Assert(errors.Is(err, ErrMalformedPage), check.Equals, true)
}

func (s *interpreterTestSuite) TestInterpretProfileChallenge(c *check.C) {
	_, _, err := InterpretProfile(&Document{
		Content: []byte(challengePageHTML),
	})
	c.Assert(errors.Is(err, ErrChallengeDetected), check.Equals, true)
}

func (s *interpreterTestSuite) TestSearchURL(c *check.C) {
	c.Assert(
		SearchURL("josé garcía"),
		check.Equals,
		"https://scholar.google.com/citations?hl=en&mauthors=jos%C3%A9+garc%C3%ADa&view_op=search_authors",
	)
}

func (s *interpreterTestSuite) TestProfileURL(c *check.C) {
	c.Assert(
		ProfileURL("AbCdEf123456"),
		check.Equals,
		"https://scholar.google.com/citations?hl=en&user=AbCdEf123456&view_op=list_works",
	)
}
