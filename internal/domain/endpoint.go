package domain

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Product string

const (
	ProductTrack      Product = "track"
	ProductReplay     Product = "replay"
	ProductCompliance Product = "compliance"
	ProductSearch     Product = "search"
)

const (
	DefaultStreamBaseURL     = "https://stream.gnip.com"
	DefaultComplianceBaseURL = "https://compliance.gnip.com"
	DefaultSearchBaseURL     = "https://search.gnip.com"
	DefaultAPIBaseURL        = "https://api.gnip.com:443"

	AcceptEncodingGzip = "gzip"
)

// Endpoints holds the base URL of every product host.
type Endpoints struct {
	Stream     string
	Compliance string
	Search     string
	API        string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Stream:     DefaultStreamBaseURL,
		Compliance: DefaultComplianceBaseURL,
		Search:     DefaultSearchBaseURL,
		API:        DefaultAPIBaseURL,
	}
}

// ConnectionDescriptor is everything a stream session needs to open its
// connection. It is not modified after construction.
type ConnectionDescriptor struct {
	Product        Product
	AccountName    string
	URL            string
	Method         string
	Credentials    Credentials
	AcceptEncoding string
	KeepAlive      bool
}

func (d ConnectionDescriptor) Validate() error {
	if err := ValidateIdentity(d.AccountName, d.Credentials); err != nil {
		return err
	}
	if d.URL == "" {
		return configError("url", "is required")
	}
	return nil
}

// TrackDescriptor builds the PowerTrack stream connection.
func (e Endpoints) TrackDescriptor(p Profile, creds Credentials) ConnectionDescriptor {
	p.ApplyDefaults()
	return ConnectionDescriptor{
		Product:        ProductTrack,
		AccountName:    p.AccountName,
		URL:            joinURL(e.Stream, "accounts", p.AccountName, "publishers", p.Platform, "streams", "track", p.StreamName+".json"),
		Method:         http.MethodGet,
		Credentials:    creds,
		AcceptEncoding: AcceptEncodingGzip,
		KeepAlive:      true,
	}
}

func (e Endpoints) ReplayDescriptor(p Profile, creds Credentials, q ReplayQuery) (ConnectionDescriptor, error) {
	p.ApplyDefaults()
	values, err := q.Values()
	if err != nil {
		return ConnectionDescriptor{}, err
	}
	base := joinURL(e.Stream, "accounts", p.AccountName, "publishers", p.Platform, "replay", "track", p.StreamName+".json")
	return ConnectionDescriptor{
		Product:        ProductReplay,
		AccountName:    p.AccountName,
		URL:            withQuery(base, values),
		Method:         http.MethodGet,
		Credentials:    creds,
		AcceptEncoding: AcceptEncodingGzip,
		KeepAlive:      true,
	}, nil
}

// ComplianceDescriptor always targets the twitter publisher, the only one the
// compliance firehose serves.
func (e Endpoints) ComplianceDescriptor(p Profile, creds Credentials, q ComplianceQuery, now time.Time) (ConnectionDescriptor, error) {
	values, err := q.Values(now)
	if err != nil {
		return ConnectionDescriptor{}, err
	}
	base := joinURL(e.Compliance, "accounts", p.AccountName, "publishers", DefaultPlatform) + "/"
	return ConnectionDescriptor{
		Product:        ProductCompliance,
		AccountName:    p.AccountName,
		URL:            withQuery(base, values),
		Method:         http.MethodGet,
		Credentials:    creds,
		AcceptEncoding: AcceptEncodingGzip,
	}, nil
}

func (e Endpoints) SearchDescriptor(p Profile, creds Credentials, q SearchQuery, now time.Time) (ConnectionDescriptor, error) {
	p.ApplyDefaults()
	values, err := q.Values(now)
	if err != nil {
		return ConnectionDescriptor{}, err
	}
	base := joinURL(e.Search, "accounts", p.AccountName, "publishers", p.Platform, "search", p.StreamName+".json")
	return ConnectionDescriptor{
		Product:        ProductSearch,
		AccountName:    p.AccountName,
		URL:            withQuery(base, values),
		Method:         http.MethodGet,
		Credentials:    creds,
		AcceptEncoding: AcceptEncodingGzip,
	}, nil
}

// RulesURL is the rules collection of the profile's track stream.
func (e Endpoints) RulesURL(p Profile) string {
	p.ApplyDefaults()
	return joinURL(e.API, "accounts", p.AccountName, "publishers", p.Platform, "streams", "track", p.StreamName, "rules.json")
}

func (e Endpoints) Validate() error {
	for name, raw := range map[string]string{
		"endpoints.stream":     e.Stream,
		"endpoints.compliance": e.Compliance,
		"endpoints.search":     e.Search,
		"endpoints.api":        e.API,
	} {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must use http or https", name)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s host is required", name)
		}
	}
	return nil
}

func joinURL(base string, segments ...string) string {
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, strings.TrimRight(base, "/"))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return strings.Join(escaped, "/")
}

func withQuery(base string, values url.Values) string {
	if len(values) == 0 {
		return base
	}
	return base + "?" + values.Encode()
}
