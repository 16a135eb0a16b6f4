package filter

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Keys of the shareable representation.
const (
	KeyScoreMin = "scoreMin"
	KeyScoreMax = "scoreMax"
	KeySort     = "sort"
	KeyTab      = "tab"
	KeyClient   = "client"
)

// ErrInvalidFilter matches every *InvalidFilterError.
var ErrInvalidFilter = errors.New("invalid filter")

// InvalidFilterError lists the fields that were rejected and replaced by
// their defaults. It is advisory: the filter returned next to it is usable.
type InvalidFilterError struct {
	Fields []string
}

func (e *InvalidFilterError) Error() string {
	return "invalid filter: " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is(err, ErrInvalidFilter) match.
func (e *InvalidFilterError) Is(target error) bool {
	return target == ErrInvalidFilter
}

// Encode converts f into its flat form, omitting keys equal to their defaults.
func Encode(f Filter) url.Values {
	v := url.Values{}
	if f.ScoreMin != DefaultScoreMin {
		v.Set(KeyScoreMin, strconv.Itoa(f.ScoreMin))
	}
	if f.ScoreMax != DefaultScoreMax {
		v.Set(KeyScoreMax, strconv.Itoa(f.ScoreMax))
	}
	if f.Sort != DefaultSort {
		v.Set(KeySort, string(f.Sort))
	}
	if f.Tab != DefaultTab {
		v.Set(KeyTab, string(f.Tab))
	}
	if f.ClientName != "" {
		v.Set(KeyClient, f.ClientName)
	}
	return v
}

// Decode builds a filter from its flat form. Missing keys take defaults.
// Malformed fields are reset to their defaults and reported through an
// *InvalidFilterError; when scoreMin exceeds scoreMax both bounds are reset.
// The returned filter is always valid.
func Decode(v url.Values) (Filter, error) {
	f := Default()
	var bad []string

	minOK, maxOK := true, true
	if raw, ok := lookup(v, KeyScoreMin); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || !validScore(n) {
			bad = append(bad, KeyScoreMin)
			minOK = false
		} else {
			f.ScoreMin = n
		}
	}
	if raw, ok := lookup(v, KeyScoreMax); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || !validScore(n) {
			bad = append(bad, KeyScoreMax)
			maxOK = false
		} else {
			f.ScoreMax = n
		}
	}
	if minOK && maxOK && f.ScoreMin > f.ScoreMax {
		bad = append(bad, KeyScoreMin+">"+KeyScoreMax)
		f.ScoreMin, f.ScoreMax = DefaultScoreMin, DefaultScoreMax
	}

	if raw, ok := lookup(v, KeySort); ok {
		if s := SortKey(raw); s.Valid() {
			f.Sort = s
		} else {
			bad = append(bad, KeySort)
		}
	}
	if raw, ok := lookup(v, KeyTab); ok {
		if t := Tab(raw); t.Valid() {
			f.Tab = t
		} else {
			bad = append(bad, KeyTab)
		}
	}
	// The client name is free text and is kept verbatim.
	f.ClientName = v.Get(KeyClient)

	if len(bad) > 0 {
		return f, &InvalidFilterError{Fields: bad}
	}
	return f, nil
}

// Parse decodes a query string such as "scoreMin=30&sort=score_desc".
// A leading '?' is ignored.
func Parse(raw string) (Filter, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	v, err := url.ParseQuery(raw)
	if err != nil {
		return Default(), &InvalidFilterError{Fields: []string{"query"}}
	}
	return Decode(v)
}

// String returns the query-string form of f.
func (f Filter) String() string {
	return Encode(f).Encode()
}

// ShareURL embeds f into base as its query string. Existing query
// parameters on base that belong to the filter are replaced.
func ShareURL(base string, f Filter) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for _, k := range []string{KeyScoreMin, KeyScoreMax, KeySort, KeyTab, KeyClient} {
		q.Del(k)
	}
	for k, vs := range Encode(f) {
		for _, s := range vs {
			q.Add(k, s)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// lookup returns the first non-empty value for key. An empty value counts
// as absent so "sort=" behaves like a missing key.
func lookup(v url.Values, key string) (string, bool) {
	raw := strings.TrimSpace(v.Get(key))
	return raw, raw != ""
}
