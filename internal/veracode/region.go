package veracode

import (
	"strings"
)

type Region string

const (
	RegionGlobal  Region = "global"
	RegionEU      Region = "eu"
	RegionFedRAMP Region = "fedramp"
)

var (
	apiURL = map[Region]string{
		RegionGlobal:  "https://api.veracode.com",
		RegionEU:      "https://api.veracode.eu",
		RegionFedRAMP: "https://api.veracode.us",
	}
	scaURL = map[Region]string{
		RegionGlobal:  "https://sca-api.veracode.com",
		RegionEU:      "https://sca-api.veracode.eu",
		RegionFedRAMP: "https://sca-api.veracode.us",
	}
)

// RegionOf derives the region from the prefix of the API key ID.
func RegionOf(keyID string) Region {
	prefix, _, ok := strings.Cut(keyID, "-")
	if !ok {
		return RegionGlobal
	}
	switch strings.ToLower(prefix) {
	case "vera01ei":
		return RegionEU
	case "vera01es":
		return RegionFedRAMP
	default:
		return RegionGlobal
	}
}

func (r Region) APIURL() string {
	return apiURL[r]
}

// SCAURL is the endpoint the composition analysis agent talks to.
func (r Region) SCAURL() string {
	return scaURL[r]
}
