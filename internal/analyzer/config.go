package analyzer

// Config controls how markup is turned into Metrics.
type Config struct {
	// SiteURL is the site's own origin. Links resolving to its host are
	// internal. When empty only relative links count as internal.
	SiteURL string `json:"site_url,omitempty" mapstructure:"site_url"`

	// ExcludeShortcodes removes [tag]...[/tag] spans before counting words.
	ExcludeShortcodes bool `json:"exclude_shortcodes" mapstructure:"exclude_shortcodes"`

	// ExcludeNofollowLinks skips anchors carrying rel="nofollow".
	ExcludeNofollowLinks bool `json:"exclude_nofollow_links" mapstructure:"exclude_nofollow_links"`
}
