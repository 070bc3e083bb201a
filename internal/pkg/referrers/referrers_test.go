package referrers

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		source       string
		expectedName string
		expectedIcon string
	}{
		// Search engines
		{"https://www.google.com/search?q=analytics", "Google", IconSearch},
		{"google.co.uk", "Google", IconSearch},
		{"https://www.bing.com", "Bing", IconSearch},
		{"duckduckgo.com", "DuckDuckGo", IconSearch},

		// Social
		{"https://twitter.com/someone", "Twitter", IconTwitter},
		{"https://x.com/someone", "Twitter", IconTwitter},
		{"m.facebook.com", "Facebook", IconFacebook},
		{"instagram.com", "Instagram", IconInstagram},
		{"https://old.reddit.com/r/golang", "Reddit", IconReddit},
		{"youtube.com/watch", "YouTube", IconYouTube},

		// Direct and unknown keep their name
		{"Direct", "Direct", IconGlobe},
		{"news.ycombinator.com", "news.ycombinator.com", IconGlobe},

		// Matching is case-sensitive
		{"GOOGLE.COM", "GOOGLE.COM", IconGlobe},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			name, icon := Classify(tt.source)
			if name != tt.expectedName || icon != tt.expectedIcon {
				t.Errorf("Classify(%q) = (%q, %q), want (%q, %q)",
					tt.source, name, icon, tt.expectedName, tt.expectedIcon)
			}
		})
	}
}
