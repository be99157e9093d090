package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known freelance marketplace.
type Platform string

const (
	// PlatformFreelancer is freelancer.com
	PlatformFreelancer Platform = "freelancer"
	// PlatformUpwork is upwork.com
	PlatformUpwork Platform = "upwork"
	// PlatformGuru is guru.com
	PlatformGuru Platform = "guru"
	// PlatformPeoplePerHour is peopleperhour.com
	PlatformPeoplePerHour Platform = "peopleperhour"
	// PlatformUnknown is an unrecognized marketplace
	PlatformUnknown Platform = "unknown"
)

var platformHosts = map[string]Platform{
	"freelancer.com":    PlatformFreelancer,
	"upwork.com":        PlatformUpwork,
	"guru.com":          PlatformGuru,
	"peopleperhour.com": PlatformPeoplePerHour,
}

// DetectPlatform identifies the marketplace from a posting URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Host)
	for domain, platform := range platformHosts {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform
		}
	}
	return PlatformUnknown
}

// PostingSelectors returns generic selectors for marketplace project
// pages, used when the platform is not recognized.
func PostingSelectors() []string {
	return []string{
		".project-description",
		".project-details",
		"#project-description",
		"[data-testid='project-description']",
		".job-description",
		"main",
		"article",
		".content",
		"#content",
	}
}

// PlatformContentSelectors returns content selectors optimized for a specific marketplace.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformFreelancer:
		return []string{
			".PageProjectViewLogout-detail",
			".PageProjectViewLogout-projectInfo",
			".project-description",
			"#project-description",
			".content",
		}
	case PlatformUpwork:
		return []string{
			"[data-test='Description']",
			".job-description",
			".up-card-section",
			".content",
		}
	case PlatformGuru:
		return []string{
			".projectDetail",
			".project-description",
			"#projectDetail",
			".content",
		}
	case PlatformPeoplePerHour:
		return []string{
			".project-detail",
			".job-detail__description",
			".content",
		}
	default:
		return PostingSelectors()
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a specific marketplace.
func PlatformNoiseSelectors(platform Platform) []string {
	// Common noise selectors for all marketplaces
	common := []string{
		// Bid and signup forms
		"form",
		".bid-form",
		".place-bid",
		".signup-prompt",
		".login-wall",
		"[data-testid='bid-form']",

		// Other bidders
		".bid-list",
		".proposals-list",
		".freelancer-list",

		// Social and share buttons
		".social-share",
		".share-buttons",
		".social-links",

		// Cookie and GDPR
		".cookie-banner",
		".cookie-consent",
		".gdpr-notice",
	}

	switch platform {
	case PlatformFreelancer:
		return append(common,
			".PageProjectViewLogout-header",
			".BidFormCard",
			".similar-projects",
		)
	case PlatformUpwork:
		return append(common,
			".up-modal",
			".apply-section",
			"[data-test='SimilarJobs']",
		)
	case PlatformGuru:
		return append(common,
			".quote-form",
			".related-projects",
		)
	default:
		return common
	}
}
