// Package listing turns request query parameters into MongoDB filter, sort and
// pagination settings from a per-entity whitelist, and runs the resulting query.
package listing

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Parameter names shared by every listing.
const (
	ParamSearch  = "search"
	ParamSort    = "sort"
	ParamPage    = "page"
	ParamPerPage = "per_page"
)

// Filter turns one parameter value into a match clause. ok=false means the
// value is not meaningful for the filter and is ignored.
type Filter func(value string) (clause bson.M, ok bool)

type Spec struct {
	Entity         string
	Filters        map[string]Filter
	SearchFields   []string
	Sorts          map[string]bson.D
	DefaultSort    string
	DefaultPerPage int
	MaxPerPage     int
}

// WithFilter returns a copy of s with key bound to f.
func (s Spec) WithFilter(key string, f Filter) Spec {
	filters := make(map[string]Filter, len(s.Filters)+1)
	for k, v := range s.Filters {
		filters[k] = v
	}
	filters[key] = f
	s.Filters = filters
	return s
}

// WithMaxPerPage returns a copy of s with a different page size cap.
func (s Spec) WithMaxPerPage(max int) Spec {
	s.MaxPerPage = max
	return s
}

type Query struct {
	Match    bson.M
	Sort     bson.D
	SortName string
	Page     int
	PerPage  int
}

func (q Query) Skip() int64 {
	return int64(q.Page-1) * int64(q.PerPage)
}

// Build composes base, every recognized filter and the search term with AND
// semantics. Unknown parameters are ignored and an unknown sort falls back to
// the default; ties are always broken by _id ascending.
func Build(spec Spec, params url.Values, base bson.M) Query {
	clauses := make([]bson.M, 0, len(spec.Filters)+2)
	if len(base) > 0 {
		clauses = append(clauses, base)
	}

	for _, key := range sortedKeys(spec.Filters) {
		value := strings.TrimSpace(params.Get(key))
		if value == "" {
			continue
		}
		if clause, ok := spec.Filters[key](value); ok && len(clause) > 0 {
			clauses = append(clauses, clause)
		}
	}

	if term := strings.TrimSpace(params.Get(ParamSearch)); term != "" && len(spec.SearchFields) > 0 {
		clauses = append(clauses, SearchClause(spec.SearchFields, term))
	}

	var match bson.M
	switch len(clauses) {
	case 0:
		match = bson.M{}
	case 1:
		match = clauses[0]
	default:
		match = bson.M{"$and": clauses}
	}

	sortName := resolveSort(spec, params.Get(ParamSort))
	page, perPage := resolvePage(spec, params)

	return Query{
		Match:    match,
		Sort:     withTieBreaker(spec.Sorts[sortName]),
		SortName: sortName,
		Page:     page,
		PerPage:  perPage,
	}
}

// SearchClause matches term as a case-insensitive substring of any field.
func SearchClause(fields []string, term string) bson.M {
	pattern := regexp.QuoteMeta(term)
	or := make(bson.A, 0, len(fields))
	for _, field := range fields {
		or = append(or, bson.M{field: bson.M{"$regex": pattern, "$options": "i"}})
	}
	return bson.M{"$or": or}
}

// Signature is a canonical encoding of the recognized parameters, independent
// of their order in the request. Each filter value is keyed by the clause it
// produces, so featured=1 and featured=true share a signature and values a
// filter rejects leave no trace. Search is case-insensitive and so is its key.
func Signature(spec Spec, params url.Values) string {
	canon := url.Values{}
	for key, filter := range spec.Filters {
		value := strings.TrimSpace(params.Get(key))
		if value == "" {
			continue
		}
		if clause, ok := filter(value); ok && len(clause) > 0 {
			// fmt prints map keys sorted, which keeps nested clauses stable.
			canon.Set(key, fmt.Sprint(clause))
		}
	}
	if len(spec.SearchFields) > 0 {
		if term := strings.TrimSpace(params.Get(ParamSearch)); term != "" {
			canon.Set(ParamSearch, strings.ToLower(term))
		}
	}
	if sortName := resolveSort(spec, params.Get(ParamSort)); sortName != "" {
		canon.Set(ParamSort, sortName)
	}
	page, perPage := resolvePage(spec, params)
	canon.Set(ParamPage, strconv.Itoa(page))
	canon.Set(ParamPerPage, strconv.Itoa(perPage))
	return canon.Encode()
}

func resolveSort(spec Spec, requested string) string {
	requested = strings.TrimSpace(requested)
	if _, ok := spec.Sorts[requested]; ok {
		return requested
	}
	return spec.DefaultSort
}

func resolvePage(spec Spec, params url.Values) (int, int) {
	page, err := strconv.Atoi(strings.TrimSpace(params.Get(ParamPage)))
	if err != nil || page < 1 {
		page = 1
	}

	maxPer := spec.MaxPerPage
	if maxPer < 1 {
		maxPer = 100
	}
	defPer := spec.DefaultPerPage
	if defPer < 1 {
		defPer = 15
	}
	if defPer > maxPer {
		defPer = maxPer
	}

	perPage, err := strconv.Atoi(strings.TrimSpace(params.Get(ParamPerPage)))
	if err != nil {
		perPage = defPer
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > maxPer {
		perPage = maxPer
	}
	return page, perPage
}

func withTieBreaker(order bson.D) bson.D {
	out := make(bson.D, 0, len(order)+1)
	for _, e := range order {
		if e.Key == "_id" {
			return append(out, order[len(out):]...)
		}
		out = append(out, e)
	}
	return append(out, bson.E{Key: "_id", Value: 1})
}

func sortedKeys(filters map[string]Filter) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equals matches field against the raw value. On array fields this matches
// documents whose array holds the value.
func Equals(field string) Filter {
	return func(value string) (bson.M, bool) {
		return bson.M{field: value}, true
	}
}

// Bool accepts 1/0, true/false, yes/no and on/off.
func Bool(field string) Filter {
	return func(value string) (bson.M, bool) {
		b, ok := ParseBool(value)
		if !ok {
			return nil, false
		}
		return bson.M{field: b}, true
	}
}

// OneOf matches field only when value is one of allowed.
func OneOf(field string, allowed ...string) Filter {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(value string) (bson.M, bool) {
		value = strings.ToLower(value)
		if _, ok := set[value]; !ok {
			return nil, false
		}
		return bson.M{field: value}, true
	}
}

// DateFrom matches field on or after the start of the given day (YYYY-MM-DD).
func DateFrom(field string, loc *time.Location) Filter {
	return func(value string) (bson.M, bool) {
		day, ok := parseDay(value, loc)
		if !ok {
			return nil, false
		}
		return bson.M{field: bson.M{"$gte": day}}, true
	}
}

// DateTo matches field up to the end of the given day (YYYY-MM-DD).
func DateTo(field string, loc *time.Location) Filter {
	return func(value string) (bson.M, bool) {
		day, ok := parseDay(value, loc)
		if !ok {
			return nil, false
		}
		return bson.M{field: bson.M{"$lt": day.AddDate(0, 0, 1)}}, true
	}
}

func ParseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func parseDay(value string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
