package http

import (
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trafficlens/internal/analytics"
)

type CountryResponse struct {
	Name       string `json:"name"`
	Visitors   int    `json:"visitors"`
	Percentage int    `json:"percentage"`
}

type TrafficSourceResponse struct {
	Name     string `json:"name"`
	Visitors int    `json:"visitors"`
	Icon     string `json:"icon"`
}

type PopularPageResponse struct {
	PageURL    string  `json:"pageUrl"`
	PageTitle  string  `json:"pageTitle"`
	Views      int     `json:"views"`
	AvgTime    string  `json:"avgTime"`
	BounceRate float64 `json:"bounceRate"`
}

// countryName turns ISO alpha-2/alpha-3 codes into common names. Anything else is
// assumed to already be a name.
func (h *Handlers) countryName(value string) string {
	if len(value) != 2 && len(value) != 3 {
		return value
	}
	country, err := h.countries.FindCountryByAlpha(value)
	if err != nil {
		return value
	}
	return country.Name.Common
}

// presentCountries renames country codes. Rows that end up with the same name are merged.
func (h *Handlers) presentCountries(items []analytics.BreakdownItem) []analytics.BreakdownItem {
	result := make([]analytics.BreakdownItem, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		name := h.countryName(item.Name)
		if i, ok := index[name]; ok {
			result[i].Count += item.Count
			result[i].Percentage += item.Percentage
			continue
		}
		index[name] = len(result)
		result = append(result, analytics.BreakdownItem{Name: name, Count: item.Count, Percentage: item.Percentage})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result
}

func presentDevices(items []analytics.BreakdownItem) []analytics.BreakdownItem {
	caser := cases.Title(language.AmericanEnglish)

	result := make([]analytics.BreakdownItem, len(items))
	for i, item := range items {
		result[i] = analytics.BreakdownItem{
			Name:       caser.String(item.Name),
			Count:      item.Count,
			Percentage: item.Percentage,
		}
	}
	return result
}

func countryResponses(items []analytics.BreakdownItem) []CountryResponse {
	result := make([]CountryResponse, len(items))
	for i, item := range items {
		result[i] = CountryResponse{Name: item.Name, Visitors: item.Count, Percentage: item.Percentage}
	}
	return result
}

func trafficSourceResponses(sources []analytics.TrafficSource) []TrafficSourceResponse {
	result := make([]TrafficSourceResponse, len(sources))
	for i, source := range sources {
		result[i] = TrafficSourceResponse{Name: source.Name, Visitors: source.Visitors, Icon: source.Icon}
	}
	return result
}

func popularPageResponses(pages []analytics.PageMetric) []PopularPageResponse {
	result := make([]PopularPageResponse, len(pages))
	for i, page := range pages {
		result[i] = PopularPageResponse{
			PageURL:    page.PageURL,
			PageTitle:  page.PageTitle,
			Views:      page.Views,
			AvgTime:    analytics.FormatAvgTime(page.AvgTime),
			BounceRate: page.BounceRate,
		}
	}
	return result
}
