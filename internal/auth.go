package internal

import (
	"fmt"
	"strings"
)

// Credential is the platform-specific configuration submitted to the backend.
// Implementations exist only for platforms whose profile declares an AuthKind.
type Credential interface {
	Platform() Platform
	Validate() error
	authConfig() AuthConfigRequest
}

// AuthConfigRequest is the wire body of POST /api/auth/configure
type AuthConfigRequest struct {
	Platform     string `json:"platform"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// InstagramCredential is a username/password login
type InstagramCredential struct {
	Username string
	Password string
}

// Platform implements Credential
func (c InstagramCredential) Platform() Platform { return PlatformInstagram }

// Validate implements Credential
func (c InstagramCredential) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return NewValidationError("username", "username is required for Instagram")
	}
	if c.Password == "" {
		return NewValidationError("password", "password is required for Instagram")
	}
	return nil
}

func (c InstagramCredential) authConfig() AuthConfigRequest {
	return AuthConfigRequest{
		Platform: string(PlatformInstagram),
		Username: strings.TrimSpace(c.Username),
		Password: c.Password,
	}
}

// RedditCredential is an OAuth application with an optional user login
type RedditCredential struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Platform implements Credential
func (c RedditCredential) Platform() Platform { return PlatformReddit }

// Validate implements Credential
func (c RedditCredential) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return NewValidationError("client_id", "client_id is required for Reddit")
	}
	if c.ClientSecret == "" {
		return NewValidationError("client_secret", "client_secret is required for Reddit")
	}
	if (c.Username == "") != (c.Password == "") {
		return NewValidationError("username", "username and password must be given together").
			WithSuggestion("Leave both empty to use application-only access")
	}
	return nil
}

func (c RedditCredential) authConfig() AuthConfigRequest {
	return AuthConfigRequest{
		Platform:     string(PlatformReddit),
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: c.ClientSecret,
		Username:     strings.TrimSpace(c.Username),
		Password:     c.Password,
	}
}

// CredentialFields is the loose form used by the CLI and bridge to build a Credential
type CredentialFields struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// NewCredential builds the Credential variant matching the platform's AuthKind
func NewCredential(platform Platform, fields CredentialFields) (Credential, error) {
	var cred Credential

	switch ProfileFor(platform).Auth {
	case AuthUserPassword:
		cred = InstagramCredential{Username: fields.Username, Password: fields.Password}
	case AuthClientSecret:
		cred = RedditCredential{
			ClientID:     fields.ClientID,
			ClientSecret: fields.ClientSecret,
			Username:     fields.Username,
			Password:     fields.Password,
		}
	default:
		return nil, NewValidationErrorWithValue("platform",
			fmt.Sprintf("%s does not accept credentials", platform.DisplayName()), string(platform))
	}

	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

// ToAuthConfig returns the wire body for a credential
func ToAuthConfig(c Credential) AuthConfigRequest {
	return c.authConfig()
}

// AuthPlatforms returns the platforms that accept credentials
func AuthPlatforms() []Platform {
	var out []Platform
	for _, p := range allPlatforms {
		if ProfileFor(p).Auth != AuthNone {
			out = append(out, p)
		}
	}
	return out
}
