package riot

import (
	"fmt"
	"strings"
)

// Regional routing values for account-v1 and match-v5
const (
	RegionAmericas = "americas"
	RegionEurope   = "europe"
	RegionAsia     = "asia"
	RegionSEA      = "sea"
)

var platformRegions = map[string]string{
	"na1":  RegionAmericas,
	"br1":  RegionAmericas,
	"la1":  RegionAmericas,
	"la2":  RegionAmericas,
	"euw1": RegionEurope,
	"eun1": RegionEurope,
	"tr1":  RegionEurope,
	"ru":   RegionEurope,
	"kr":   RegionAsia,
	"jp1":  RegionAsia,
	"oc1":  RegionSEA,
	"ph2":  RegionSEA,
	"sg2":  RegionSEA,
	"th2":  RegionSEA,
	"tw2":  RegionSEA,
	"vn2":  RegionSEA,
}

// RegionFor returns the regional routing value of a platform
func RegionFor(platform string) (string, error) {
	region, ok := platformRegions[strings.ToLower(platform)]
	if !ok {
		return "", fmt.Errorf("unknown platform %q", platform)
	}
	return region, nil
}

// accountRegion is the routing value for account-v1, which has no SEA cluster
func accountRegion(region string) string {
	if region == RegionSEA {
		return RegionAsia
	}
	return region
}

func platformBaseURL(platform string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com", strings.ToLower(platform))
}

func regionalBaseURL(region string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com", region)
}
