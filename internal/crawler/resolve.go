package crawler

import (
	"net/url"
	"strings"
)

const schemeSeparator = "://"

// Resolve turns a possibly relative reference into an absolute locator using
// base. References that already carry a scheme separator are returned as-is.
// Resolve never fails: when either input does not parse, a best-effort string
// is returned and the fetch is left to reject it.
func Resolve(base, reference string) string {
	if strings.Contains(reference, schemeSeparator) {
		return reference
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return joinFallback(base, reference)
	}
	ref, err := url.Parse(reference)
	if err != nil {
		return joinFallback(base, reference)
	}
	return baseURL.ResolveReference(ref).String()
}

func joinFallback(base, reference string) string {
	if i := strings.LastIndex(base, "/"); i >= 0 {
		return base[:i+1] + strings.TrimPrefix(reference, "/")
	}
	return base + "/" + strings.TrimPrefix(reference, "/")
}

// FileName returns the component after the last '/' of a locator.
func FileName(locator string) string {
	return locator[strings.LastIndex(locator, "/")+1:]
}
