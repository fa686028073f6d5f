package mediafetch

import (
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

func URLSafeBase64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// EncodeEntry builds the store's EncodedEntryURI for bucket and key.
func EncodeEntry(bucket, key string) string {
	return URLSafeBase64(bucket + ":" + key)
}

// CanonicalizeURL lower-cases scheme and host, drops the fragment and sorts
// query parameters so equivalent URLs compare equal.
func CanonicalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		query := u.Query()
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			values := query[k]
			sort.Strings(values)
			for _, v := range values {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}

	return u.String()
}
