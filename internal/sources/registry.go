package sources

import (
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/config"
)

// FromConfig builds the enabled discovery providers named in the configuration
func FromConfig(cfg *config.Config) []Source {
	var all []Source
	for _, name := range cfg.DiscoveryProviders {
		var source Source
		switch name {
		case "hackernews":
			source = NewHackerNewsSource()
		case "stackoverflow":
			source = NewStackOverflowSource()
		case "reddit":
			source = NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret)
		case "youtube":
			source = NewYouTubeSource(cfg.YouTubeAPIKey)
		case "medium":
			source = NewMediumSource()
		case "websearch":
			source = NewWebSearchSource(cfg.WebSearchURL, cfg.WebSearchAPIKey)
		default:
			logrus.Warnf("Unknown discovery provider %q ignored", name)
			continue
		}

		if !source.IsEnabled() {
			logrus.Infof("Discovery provider %s disabled - missing credentials", name)
			continue
		}
		all = append(all, source)
	}
	return all
}
