package usecase

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
)

// KeyRule maps a resource URL to a destination. An empty bucket selects the
// configured default bucket; an empty key is invalid.
type KeyRule func(rawURL string) (bucket, key string)

// KeyStrategy resolves where a resource request is stored.
type KeyStrategy interface {
	Resolve(req ResourceRequest) (domain.Destination, error)
}

// ResourceRequest is one URL of an item, bound to the strategy picked for that item.
type ResourceRequest struct {
	Method   string
	URL      string
	Strategy KeyStrategy
}

// DefaultStrategy stores resources under Prefix + fingerprint.
type DefaultStrategy struct {
	Bucket string
	Prefix string
}

func (s DefaultStrategy) Resolve(req ResourceRequest) (domain.Destination, error) {
	return domain.Destination{
		Bucket: s.Bucket,
		Key:    s.Prefix + Fingerprint(req),
	}, nil
}

// CustomStrategy delegates to a user supplied rule. The key is used verbatim.
type CustomStrategy struct {
	Name   string
	Bucket string
	Rule   KeyRule
}

func (s CustomStrategy) Resolve(req ResourceRequest) (domain.Destination, error) {
	if s.Rule == nil {
		return domain.Destination{}, &domain.InvalidRuleOutputError{URL: req.URL, Rule: s.Name}
	}

	bucket, key := s.Rule(req.URL)
	if key == "" {
		return domain.Destination{}, &domain.InvalidRuleOutputError{URL: req.URL, Rule: s.Name}
	}
	if bucket == "" {
		bucket = s.Bucket
	}

	return domain.Destination{Bucket: bucket, Key: key}, nil
}

// Resolve runs the request's strategy.
func Resolve(req ResourceRequest) (domain.Destination, error) {
	if req.Strategy == nil {
		return domain.Destination{}, &domain.InvalidRuleOutputError{URL: req.URL}
	}
	return req.Strategy.Resolve(req)
}

// Fingerprint is sha1(METHOD || canonical URL || body) with no separators, the
// key format objects were historically stored under. Requests carry no body.
func Fingerprint(req ResourceRequest) string {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	h := sha1.New()
	h.Write([]byte(method))
	h.Write([]byte(mediafetch.CanonicalizeURL(req.URL)))
	return hex.EncodeToString(h.Sum(nil))
}

// KeyRules is the registry items reference by name.
type KeyRules map[string]KeyRule

func BuiltinKeyRules() KeyRules {
	return KeyRules{
		"path":     PathRule,
		"basename": BasenameRule,
	}
}

// PathRule keeps the host and path of the source URL.
func PathRule(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", ""
	}
	p := strings.TrimPrefix(u.EscapedPath(), "/")
	if p == "" {
		return "", ""
	}
	return "", strings.ToLower(u.Host) + "/" + p
}

// BasenameRule keeps only the last path segment.
func BasenameRule(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "", ""
	}
	return "", base
}
