package scholar

import (
	"net/url"
	"strings"
)

const baseURL = "https://scholar.google.com"

// SearchURL builds the author-search URL for the provided query string.
func SearchURL(query string) string {
	values := url.Values{}
	values.Set("hl", "en")
	values.Set("view_op", "search_authors")
	values.Set("mauthors", query)

	return baseURL + "/citations?" + values.Encode()
}

// ProfileURL builds the profile URL for the provided site identifier.
func ProfileURL(siteID string) string {
	values := url.Values{}
	values.Set("hl", "en")
	values.Set("user", siteID)
	values.Set("view_op", "list_works")

	return baseURL + "/citations?" + values.Encode()
}

// siteIDFromHref extracts the value of the "user" query parameter from
// a profile link. It returns an empty string when the link carries no
// such parameter.
func siteIDFromHref(href string) string {
	i := strings.IndexByte(href, '?')
	if i < 0 {
		return ""
	}

	values, err := url.ParseQuery(href[i+1:])
	if err != nil {
		return ""
	}

	return values.Get("user")
}

// resolveRef resolves a possibly relative link against the scholar host.
func resolveRef(ref string) string {
	if ref == "" {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return base.ResolveReference(parsed).String()
}
