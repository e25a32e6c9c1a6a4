package dexcom

import (
	"fmt"
	"strings"
)

// Region selects the Dexcom Share deployment an account lives in
type Region int

// Known regions
const (
	RegionUS Region = iota
	RegionJP
	RegionOther
)

// Profile holds the per-region endpoints and application id
type Profile struct {
	Code          string
	Name          string
	BaseURL       string
	AccountURL    string
	ApplicationID string
}

// Regions returns every known region
func Regions() []Region {
	return []Region{RegionUS, RegionJP, RegionOther}
}

// ParseRegion resolves a region name such as "US", "jp" or "OTHER"
func ParseRegion(name string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "US":
		return RegionUS, nil
	case "JP":
		return RegionJP, nil
	case "OTHER":
		return RegionOther, nil
	}
	return 0, &ConfigurationError{
		Message: fmt.Sprintf("invalid region %q, supported regions are: US, JP, OTHER", name),
	}
}

// String returns the configuration name of the region
func (r Region) String() string {
	switch r {
	case RegionUS:
		return "US"
	case RegionJP:
		return "JP"
	case RegionOther:
		return "OTHER"
	default:
		return fmt.Sprintf("Region(%d)", int(r))
	}
}

// Profile returns the server profile for the region
func (r Region) Profile() (Profile, error) {
	switch r {
	case RegionUS:
		return Profile{
			Code:          "us",
			Name:          "United States",
			AccountURL:    "https://uam1.dexcom.com",
			BaseURL:       "https://share2.dexcom.com",
			ApplicationID: "d89443d2-327c-4a6f-89e5-496bbb0317db",
		}, nil
	case RegionJP:
		return Profile{
			Code:          "jp",
			Name:          "Japan",
			AccountURL:    "https://uam.dexcom.jp",
			BaseURL:       "https://share.dexcom.jp",
			ApplicationID: "d8665ade-9673-4e27-9ff6-92db4ce13d13",
		}, nil
	case RegionOther:
		return Profile{
			Code:          "ous",
			Name:          "Outside United States",
			AccountURL:    "https://uam.dexcom.com",
			BaseURL:       "https://shareous1.dexcom.com",
			ApplicationID: "d89443d2-327c-4a6f-89e5-496bbb0317db",
		}, nil
	}
	return Profile{}, &ConfigurationError{Message: fmt.Sprintf("unknown region %d", int(r))}
}
