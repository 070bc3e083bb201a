package user_agent

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device classes reported by Parse.
const (
	Mobile  = "Mobile"
	Tablet  = "Tablet"
	Desktop = "Desktop"
	Bot     = "Bot"
)

type UserAgent struct {
	UserAgent string
	Rule      string // name of the matching rule, empty when the fallback decided
	Device    string
	Mobile    bool
	Tablet    bool
	Desktop   bool
	Bot       bool
}

// Embed the database files
//
//go:embed database/devices.yml
var databaseFiles embed.FS

// DeviceEntry is one rule in database/devices.yml.
type DeviceEntry struct {
	Name   string `yaml:"name"`
	Device string `yaml:"device"`
	Regex  string `yaml:"regex"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

var (
	parser *DeviceParser
	once   sync.Once
)

// DeviceParser matches user agents against the embedded rule table.
type DeviceParser struct {
	devices    []DeviceEntry
	regexCache *RegexCache
}

// NewDeviceParser builds a parser from YAML rules.
func NewDeviceParser(rules []byte) (*DeviceParser, error) {
	p := &DeviceParser{regexCache: newRegexCache()}
	if err := yaml.Unmarshal(rules, &p.devices); err != nil {
		return nil, fmt.Errorf("error parsing device rules: %w", err)
	}
	for _, entry := range p.devices {
		if _, err := p.regexCache.get(entry.Regex); err != nil {
			return nil, fmt.Errorf("invalid regex for rule %q: %w", entry.Name, err)
		}
	}
	return p, nil
}

func getParser() *DeviceParser {
	once.Do(func() {
		data, err := databaseFiles.ReadFile("database/devices.yml")
		if err == nil {
			parser, err = NewDeviceParser(data)
		}
		if err != nil {
			fmt.Printf("Error loading devices.yml: %v\n", err)
			parser = &DeviceParser{regexCache: newRegexCache()}
		}
	})
	return parser
}

// Parse classifies a user agent string.
func (p *DeviceParser) Parse(userAgent string) UserAgent {
	result := UserAgent{UserAgent: userAgent}

	for _, entry := range p.devices {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil || !regex.MatchString(userAgent) {
			continue
		}
		result.Rule = entry.Name
		return classify(result, entry.Device)
	}

	return fallback(result)
}

func classify(result UserAgent, deviceType string) UserAgent {
	switch deviceType {
	case "bot":
		result.Device, result.Bot = Bot, true
	case "tablet":
		result.Device, result.Tablet = Tablet, true
	case "smartphone", "feature phone", "phablet":
		result.Device, result.Mobile = Mobile, true
	default:
		result.Device, result.Desktop = Desktop, true
	}
	return result
}

// fallback applies plain substring checks when no rule matched.
func fallback(result UserAgent) UserAgent {
	ua := strings.ToLower(result.UserAgent)

	// Tablet indicators first, they often contain "mobile" too
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return classify(result, "tablet")
	}

	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") ||
		strings.Contains(ua, "iphone") || strings.Contains(ua, "ipod") ||
		strings.Contains(ua, "blackberry") || strings.Contains(ua, "windows phone") {
		return classify(result, "smartphone")
	}

	return classify(result, "desktop")
}

// ParseUserAgent classifies userAgent with the embedded rule table.
func ParseUserAgent(userAgent string) UserAgent {
	return getParser().Parse(userAgent)
}

// DeviceClass returns Mobile, Tablet or Desktop for real browsers and an empty string
// for empty input and crawlers.
func DeviceClass(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	parsed := ParseUserAgent(userAgent)
	if parsed.Bot {
		return ""
	}
	return parsed.Device
}
