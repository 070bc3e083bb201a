package referrers

import "strings"

// Icons attached to traffic sources.
const (
	IconGlobe     = "globe"
	IconSearch    = "search"
	IconTwitter   = "twitter"
	IconFacebook  = "facebook"
	IconInstagram = "instagram"
	IconReddit    = "reddit"
	IconYouTube   = "youtube"
)

type rule struct {
	needles []string
	name    string
	icon    string
}

// Checked in order; matching is case-sensitive substring containment.
var knownSources = []rule{
	{needles: []string{"google"}, name: "Google", icon: IconSearch},
	{needles: []string{"bing"}, name: "Bing", icon: IconSearch},
	{needles: []string{"duckduckgo"}, name: "DuckDuckGo", icon: IconSearch},
	{needles: []string{"twitter", "x.com"}, name: "Twitter", icon: IconTwitter},
	{needles: []string{"facebook"}, name: "Facebook", icon: IconFacebook},
	{needles: []string{"instagram"}, name: "Instagram", icon: IconInstagram},
	{needles: []string{"reddit"}, name: "Reddit", icon: IconReddit},
	{needles: []string{"youtube"}, name: "YouTube", icon: IconYouTube},
}

// Classify maps a referrer (or "Direct") to a display name and an icon tag.
// Unknown referrers keep their name and get the globe icon.
func Classify(source string) (name, icon string) {
	for _, r := range knownSources {
		for _, needle := range r.needles {
			if strings.Contains(source, needle) {
				return r.name, r.icon
			}
		}
	}
	return source, IconGlobe
}
