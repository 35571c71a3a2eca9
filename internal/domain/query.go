package domain

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the fixed 12-character YYYYMMDDHHMM form the APIs accept.
const DateLayout = "200601021504"

const (
	complianceMinLag    = 5 * time.Minute
	complianceMaxWindow = 10 * time.Minute
	complianceDefaultTo = 5 * time.Minute
	complianceDefaultFr = 15 * time.Minute

	searchMaxWindow     = 30 * 24 * time.Hour
	searchMinMaxResults = 10
	searchMaxMaxResults = 500

	defaultSearchPublisher = "twitter"
)

var datePattern = regexp.MustCompile(`^\d{12}$`)

// ParseDate reads a YYYYMMDDHHMM value as UTC.
func ParseDate(field string, raw string) (time.Time, error) {
	if !datePattern.MatchString(raw) {
		return time.Time{}, configError(field, "must use the 12-character YYYYMMDDHHMM form, got %q", raw)
	}
	parsed, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, configError(field, "invalid date %q: %v", raw, err)
	}
	return parsed, nil
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ReplayQuery selects the historical range a replay stream delivers.
type ReplayQuery struct {
	FromDate string
	ToDate   string
}

func (q ReplayQuery) Values() (url.Values, error) {
	if q.FromDate == "" || q.ToDate == "" {
		return nil, configError("query", "replay requires fromDate and toDate to specify the range to replay")
	}
	if _, err := ParseDate("fromDate", q.FromDate); err != nil {
		return nil, err
	}
	if _, err := ParseDate("toDate", q.ToDate); err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("fromDate", q.FromDate)
	values.Set("toDate", q.ToDate)
	return values, nil
}

// ComplianceQuery covers at most ten minutes ending at least five minutes ago.
// Empty dates default to the window [now-15m, now-5m].
type ComplianceQuery struct {
	FromDate string
	ToDate   string
}

func (q ComplianceQuery) Values(now time.Time) (url.Values, error) {
	if q.FromDate == "" {
		q.FromDate = FormatDate(now.Add(-complianceDefaultFr))
	}
	if q.ToDate == "" {
		q.ToDate = FormatDate(now.Add(-complianceDefaultTo))
	}

	from, err := ParseDate("fromDate", q.FromDate)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate("toDate", q.ToDate)
	if err != nil {
		return nil, err
	}

	if to.After(now.Add(-complianceMinLag)) {
		return nil, configError("toDate", "minimum toDate: compliance requests need a toDate at least 5 minutes in the past")
	}
	if from.After(to) {
		return nil, configError("fromDate", "fromDate must not be after toDate")
	}
	if to.Sub(from) > complianceMaxWindow {
		return nil, configError("toDate", "max requested time period: the max time period allowed per request is 10 minutes")
	}

	values := url.Values{}
	values.Set("fromDate", q.FromDate)
	values.Set("toDate", q.ToDate)
	return values, nil
}

// SearchQuery is one page request against the search API. Query must hold the
// whole rule including operators.
type SearchQuery struct {
	Query      string
	FromDate   string
	ToDate     string
	MaxResults int
	Next       string
	Publisher  string
}

// WithNext returns the query for the page after the one that produced cursor.
func (q SearchQuery) WithNext(cursor string) (SearchQuery, error) {
	if strings.TrimSpace(cursor) == "" {
		return SearchQuery{}, configError("next", "you must include the next page cursor value")
	}
	q.Next = cursor
	return q, nil
}

func (q SearchQuery) Values(now time.Time) (url.Values, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, configError("query", "the query parameter is required and must hold the whole rule, operators included")
	}

	if q.FromDate != "" {
		from, err := ParseDate("fromDate", q.FromDate)
		if err != nil {
			return nil, err
		}
		to := now
		if q.ToDate != "" {
			to, err = ParseDate("toDate", q.ToDate)
			if err != nil {
				return nil, err
			}
		}
		if from.After(to) {
			return nil, configError("fromDate", "fromDate must not be after toDate")
		}
		if to.Sub(from) > searchMaxWindow {
			return nil, configError("fromDate", "max requested time period: the max time period allowed per request is 30 days")
		}
	} else if q.ToDate != "" {
		if _, err := ParseDate("toDate", q.ToDate); err != nil {
			return nil, err
		}
	}

	if q.MaxResults != 0 {
		if q.MaxResults < searchMinMaxResults {
			return nil, configError("maxResults", "must be greater than or equal to %d", searchMinMaxResults)
		}
		if q.MaxResults > searchMaxMaxResults {
			return nil, configError("maxResults", "must be less than or equal to %d", searchMaxMaxResults)
		}
	}

	publisher := q.Publisher
	if publisher == "" {
		publisher = defaultSearchPublisher
	}

	values := url.Values{}
	values.Set("publisher", publisher)
	values.Set("query", q.Query)
	if q.FromDate != "" {
		values.Set("fromDate", q.FromDate)
	}
	if q.ToDate != "" {
		values.Set("toDate", q.ToDate)
	}
	if q.MaxResults != 0 {
		values.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	if q.Next != "" {
		values.Set("next", q.Next)
	}
	return values, nil
}
