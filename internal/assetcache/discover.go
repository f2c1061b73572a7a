package assetcache

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// discoverRefs returns the same-origin stylesheets, scripts and images an
// HTML page references, as request URIs resolved against the page.
func discoverRefs(pageURI string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURI)
	if err != nil {
		return nil
	}

	refs := []string{}
	doc.Find("link[href], script[src], img[src]").Each(func(i int, s *goquery.Selection) {
		attr := "src"
		if goquery.NodeName(s) == "link" {
			attr = "href"
		}
		v, exists := s.Attr(attr)
		v = strings.TrimSpace(v)
		if !exists || v == "" {
			return
		}

		ref, err := url.Parse(v)
		if err != nil || ref.Scheme != "" || ref.Host != "" {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		refs = append(refs, resolved.RequestURI())
	})
	return refs
}
