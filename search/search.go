// Package search builds the unified contact projection and runs free-text and
// structured queries over it. It only reads the snapshot it is given.
package search

import (
	"encoding/json"
	"sort"
	"strings"

	"gigbook-backend/models"
	"gigbook-backend/views"

	"github.com/tidwall/gjson"
)

const (
	unnamedOrganization = "Unnamed organization"
	unnamedPerson       = "Unnamed person"
)

// Engine applies configured defaults to every search
type Engine struct {
	locale string
	limit  int
}

// NewEngine creates an engine using the configured locale and result limit
func NewEngine(cfg *models.Config) *Engine {
	e := &Engine{locale: models.DefaultLocale, limit: models.DefaultSearchLimit}
	if cfg != nil {
		if cfg.SearchLocale != "" {
			e.locale = cfg.SearchLocale
		}
		if cfg.DefaultSearchLimit > 0 {
			e.limit = cfg.DefaultSearchLimit
		}
	}
	return e
}

// Search runs params against r, filling unset locale and limit from the engine
func (e *Engine) Search(r views.Reader, params models.SearchParams) models.SearchResult {
	if params.Locale == "" {
		params.Locale = e.locale
	}
	if params.Limit <= 0 {
		params.Limit = e.limit
	}
	return Search(r, params)
}

// Project builds one record per organization and per unaffiliated person, plus one per
// affiliated person when params.IncludeAffiliated is set. Records are ordered by kind then id.
func Project(r views.Reader, params models.SearchParams) []models.SearchRecord {
	records := []models.SearchRecord{}
	if !params.ExcludeOrganizations {
		for _, org := range r.Organizations() {
			records = append(records, organizationRecord(r, org))
		}
	}
	for _, p := range r.Persons() {
		unaffiliated := views.IsUnaffiliated(r, p.ID)
		if unaffiliated && params.ExcludeUnaffiliated {
			continue
		}
		if !unaffiliated && !params.IncludeAffiliated {
			continue
		}
		records = append(records, personRecord(r, p, unaffiliated))
	}
	return records
}

func organizationRecord(r views.Reader, org models.Organization) models.SearchRecord {
	roles := []string{}
	seen := map[string]bool{}
	for _, link := range r.LinksByOrganization(org.ID) {
		if !link.Active || link.Role == "" || seen[link.Role] {
			continue
		}
		seen[link.Role] = true
		roles = append(roles, link.Role)
	}
	sort.Strings(roles)

	display := org.Name
	if display == "" {
		display = unnamedOrganization
	}
	tags := append([]string{}, org.Tags...)

	return models.SearchRecord{
		ID:          org.ID,
		Kind:        models.KindOrganization,
		DisplayName: display,
		Name:        org.Name,
		Email:       org.Email,
		Phone:       org.Phone1,
		City:        org.Address.City,
		Tags:        tags,
		IsClient:    org.IsClient,
		Roles:       roles,
		Organization: &models.OrganizationSummary{
			Name:     org.Name,
			Type:     org.Type,
			Email:    org.Email,
			City:     org.Address.City,
			IsClient: org.IsClient,
		},
		CreatedAt:  org.CreatedAt,
		UpdatedAt:  org.UpdatedAt,
		SearchText: blob(append([]string{org.Name, org.Email, org.Phone1, org.Address.City}, append(tags, roles...)...)),
	}
}

func personRecord(r views.Reader, p models.Person, unaffiliated bool) models.SearchRecord {
	tags := append([]string{}, p.Tags...)
	if unaffiliated && !containsFold(tags, models.UnaffiliatedTag) {
		tags = append(tags, models.UnaffiliatedTag)
	}

	display := p.FullName()
	if p.FamilyName == "" {
		display = unnamedPerson
	}

	parts := []string{p.GivenName, p.FamilyName, p.Email, p.Phone, p.Address.City}
	var affiliations []models.AffiliationSummary
	var roles []string
	if !unaffiliated {
		for _, link := range r.LinksByPerson(p.ID) {
			if !link.Active {
				continue
			}
			org, ok := r.Organization(link.OrganizationID)
			if !ok {
				continue
			}
			affiliations = append(affiliations, models.AffiliationSummary{
				OrganizationID: org.ID,
				Name:           org.Name,
				Role:           link.Role,
			})
			parts = append(parts, org.Name, link.Role)
			if link.Role != "" {
				roles = append(roles, link.Role)
			}
		}
	}

	return models.SearchRecord{
		ID:           p.ID,
		Kind:         models.KindPerson,
		Unaffiliated: unaffiliated,
		DisplayName:  display,
		Name:         p.FamilyName,
		GivenName:    p.GivenName,
		Email:        p.Email,
		Phone:        p.Phone,
		City:         p.Address.City,
		Tags:         tags,
		Roles:        roles,
		Person: &models.PersonSummary{
			GivenName:  p.GivenName,
			FamilyName: p.FamilyName,
			Email:      p.Email,
			Phone:      p.Phone,
			City:       p.Address.City,
		},
		Affiliations: affiliations,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		SearchText:   blob(append(parts, tags...)),
	}
}

func blob(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}

// candidate pairs a record with its JSON form, which field paths are evaluated on
type candidate struct {
	record models.SearchRecord
	raw    []byte
}

// Search projects r, then applies the free-text query, the structured filters, the sort
// and the limit, in that order.
func Search(r views.Reader, params models.SearchParams) models.SearchResult {
	records := Project(r, params)
	result := models.SearchResult{Total: len(records), Items: []models.SearchRecord{}}

	query := strings.ToLower(params.Query)
	useQuery := len([]rune(params.Query)) >= models.MinQueryLength

	candidates := make([]candidate, 0, len(records))
	for _, rec := range records {
		if useQuery && !strings.Contains(rec.SearchText, query) && !strings.Contains(strings.ToLower(rec.DisplayName), query) {
			continue
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		c := candidate{record: rec, raw: raw}
		if !matchFilters(c, params.Filters) {
			continue
		}
		candidates = append(candidates, c)
	}
	result.Matched = len(candidates)

	sortCandidates(candidates, params)

	limit := params.Limit
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for _, c := range candidates {
		result.Items = append(result.Items, c.record)
	}
	return result
}

func matchFilters(c candidate, f models.SearchFilters) bool {
	if len(f.Tags) > 0 {
		matched := false
		for _, tag := range f.Tags {
			if containsFold(c.record.Tags, tag) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.IsClient != nil && c.record.IsClient != *f.IsClient {
		return false
	}

	for path, want := range f.Fields {
		if want == "" {
			continue
		}
		if !matchPath(c.raw, path, want) {
			return false
		}
	}
	return true
}

// matchPath compares the value at path with want: arrays by membership, scalars by
// case-insensitive equality
func matchPath(raw []byte, path, want string) bool {
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return false
	}
	if res.IsArray() {
		for _, elem := range res.Array() {
			if strings.EqualFold(elem.String(), want) {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(res.String(), want)
}

func sortCandidates(candidates []candidate, params models.SearchParams) {
	field := params.SortField
	if field == "" {
		field = models.DefaultSortField
	}
	descending := params.Direction == models.SortDescending
	col := views.NewCollator(params.Locale)

	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = gjson.GetBytes(c.raw, field).String()
	}

	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if cmp := col.CompareString(keys[ia], keys[ib]); cmp != 0 {
			if descending {
				return cmp > 0
			}
			return cmp < 0
		}
		ra, rb := candidates[ia].record, candidates[ib].record
		if ra.ID != rb.ID {
			return ra.ID < rb.ID
		}
		return ra.Kind < rb.Kind
	})

	sorted := make([]candidate, len(candidates))
	for i, j := range idx {
		sorted[i] = candidates[j]
	}
	copy(candidates, sorted)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
