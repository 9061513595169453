package utils

import (
	"fmt"
	"net/url"
	"strings"

	"mediafetch/internal"
)

// classifierRule maps URL substrings to a platform. Rules are checked in order.
type classifierRule struct {
	platform internal.Platform
	needles  []string
}

// classifierRules is ordered by priority; the first rule with a matching needle wins
var classifierRules = []classifierRule{
	{internal.PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{internal.PlatformInstagram, []string{"instagram.com"}},
	{internal.PlatformReddit, []string{"reddit.com"}},
	{internal.PlatformPornhub, []string{"pornhub.com"}},
	{internal.PlatformRedtube, []string{"redtube.com"}},
	{internal.PlatformNhentai, []string{"nhentai.net"}},
	{internal.PlatformLuscious, []string{"luscious.net"}},
	{internal.PlatformNutaku, []string{"nutaku.net"}},
	{internal.PlatformCosplaytele, []string{"cosplaytele"}},
	{internal.PlatformImhentai, []string{"imhentai.xxx"}},
	{internal.PlatformSpotify, []string{"spotify.com", "open.spotify.com"}},
}

// Classify returns the platform a URL belongs to. It never fails: any input,
// including the empty string, that matches no rule is PlatformUnknown.
func Classify(rawURL string) internal.Platform {
	lower := strings.ToLower(rawURL)
	for _, rule := range classifierRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.platform
			}
		}
	}
	return internal.PlatformUnknown
}

// PlatformClassifier is the substring classifier as an internal.Classifier
type PlatformClassifier struct{}

// Classify implements internal.Classifier
func (PlatformClassifier) Classify(rawURL string) internal.Platform {
	return Classify(rawURL)
}

// ResolvePlatform returns the explicit override when one is given,
// otherwise the classified platform of rawURL
func ResolvePlatform(rawURL, override string) internal.Platform {
	override = strings.TrimSpace(override)
	if override == "" || strings.EqualFold(override, internal.PlatformAuto) {
		return Classify(rawURL)
	}
	return internal.ParsePlatform(override)
}

// URLValidator checks user-supplied media URLs before they are sent to the backend
type URLValidator struct {
	allowedSchemes []string
}

// NewURLValidator creates a new URL validator accepting http and https links
func NewURLValidator() *URLValidator {
	return &URLValidator{allowedSchemes: []string{"http", "https"}}
}

// ValidateURL trims rawURL and rejects empty input or a non-web scheme.
// Scheme-less input such as "youtu.be/abc" is accepted; the backend decides
// whether it can handle it.
func (v *URLValidator) ValidateURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", internal.NewValidationError("url", "URL cannot be empty").
			WithSuggestion("Paste a link to a video, post or gallery")
	}

	if strings.ContainsAny(trimmed, " \t\r\n") {
		return "", internal.NewValidationErrorWithValue("url", "URL must not contain whitespace", trimmed)
	}

	if !strings.Contains(trimmed, "://") {
		return trimmed, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", internal.NewValidationErrorWithValue("url", fmt.Sprintf("invalid URL format: %v", err), trimmed)
	}

	if !v.isAllowedScheme(parsed.Scheme) {
		return "", internal.NewValidationErrorWithValue("url", "URL must use http or https", trimmed).
			WithContext("scheme", parsed.Scheme)
	}

	if parsed.Host == "" {
		return "", internal.NewValidationErrorWithValue("url", "URL has no host", trimmed)
	}

	return trimmed, nil
}

func (v *URLValidator) isAllowedScheme(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// IsWebURL reports whether s parses as an absolute http(s) URL
func IsWebURL(s string) bool {
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
