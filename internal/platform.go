package internal

import "strings"

// Platform identifies the external site a URL belongs to
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformInstagram   Platform = "instagram"
	PlatformReddit      Platform = "reddit"
	PlatformPornhub     Platform = "pornhub"
	PlatformRedtube     Platform = "redtube"
	PlatformNhentai     Platform = "nhentai"
	PlatformLuscious    Platform = "luscious"
	PlatformNutaku      Platform = "nutaku"
	PlatformCosplaytele Platform = "cosplaytele"
	PlatformImhentai    Platform = "imhentai"
	PlatformSpotify     Platform = "spotify"
	PlatformUnknown     Platform = "unknown"
)

// PlatformAuto asks the backend to detect the platform itself
const PlatformAuto = "auto"

// AuthKind describes which credential shape a platform accepts
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthUserPassword
	AuthClientSecret
)

// PlatformProfile holds the client-side knowledge about one platform
type PlatformProfile struct {
	Platform        Platform
	DisplayName     string
	Auth            AuthKind
	SupportsQuality bool
}

var allPlatforms = []Platform{
	PlatformYouTube,
	PlatformInstagram,
	PlatformReddit,
	PlatformPornhub,
	PlatformRedtube,
	PlatformNhentai,
	PlatformLuscious,
	PlatformNutaku,
	PlatformCosplaytele,
	PlatformImhentai,
	PlatformSpotify,
	PlatformUnknown,
}

// profiles must hold an entry for every value in allPlatforms
var profiles = map[Platform]PlatformProfile{
	PlatformYouTube:     {PlatformYouTube, "YouTube", AuthNone, true},
	PlatformInstagram:   {PlatformInstagram, "Instagram", AuthUserPassword, false},
	PlatformReddit:      {PlatformReddit, "Reddit", AuthClientSecret, false},
	PlatformPornhub:     {PlatformPornhub, "Pornhub", AuthNone, true},
	PlatformRedtube:     {PlatformRedtube, "RedTube", AuthNone, true},
	PlatformNhentai:     {PlatformNhentai, "nhentai", AuthNone, false},
	PlatformLuscious:    {PlatformLuscious, "Luscious", AuthNone, false},
	PlatformNutaku:      {PlatformNutaku, "Nutaku", AuthNone, false},
	PlatformCosplaytele: {PlatformCosplaytele, "CosplayTele", AuthNone, false},
	PlatformImhentai:    {PlatformImhentai, "IMHentai", AuthNone, false},
	PlatformSpotify:     {PlatformSpotify, "Spotify", AuthNone, false},
	PlatformUnknown:     {PlatformUnknown, "Unknown", AuthNone, false},
}

// AllPlatforms returns every platform tag in classifier priority order, unknown last
func AllPlatforms() []Platform {
	out := make([]Platform, len(allPlatforms))
	copy(out, allPlatforms)
	return out
}

// ParsePlatform maps a backend or user supplied string to a Platform.
// Anything not in the closed set becomes PlatformUnknown.
func ParsePlatform(s string) Platform {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[p]; ok {
		return p
	}
	return PlatformUnknown
}

// ProfileFor returns the profile of p, falling back to the unknown profile
func ProfileFor(p Platform) PlatformProfile {
	if profile, ok := profiles[p]; ok {
		return profile
	}
	return profiles[PlatformUnknown]
}

// DisplayName returns the human readable name of the platform
func (p Platform) DisplayName() string {
	return ProfileFor(p).DisplayName
}

// String returns the wire form of the platform tag
func (p Platform) String() string {
	return string(p)
}
