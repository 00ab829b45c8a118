package fileio

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/fileio-go/pkg/httpclient"
)

const maxPageBytes = 1 << 20 // 1 MiB

// pageMessage enriches fallback with the title of an HTML error page, which
// file.io serves for some failures instead of JSON.
func pageMessage(resp httpclient.Response, fallback string) string {
	if !strings.Contains(strings.ToLower(resp.Header().Get("Content-Type")), "html") {
		return fallback
	}
	body := resp.Body()
	if len(body) > maxPageBytes {
		body = body[:maxPageBytes]
	}
	summary := pageSummary(body)
	if summary == "" {
		return fallback
	}
	return fallback + ": " + summary
}

func pageSummary(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return firstNonEmpty(
		extract(`meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
		extract(`meta[name="description"]`),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
