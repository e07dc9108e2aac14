// Package digitalocean validates DigitalOcean API tokens by fetching
// the account the token belongs to.
package digitalocean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

var _ driven.Validator = (*Validator)(nil)

var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validator checks DigitalOcean personal access tokens.
type Validator struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithBaseURL points API calls at an alternate endpoint. Used in tests.
func WithBaseURL(baseURL string) Option {
	return func(v *Validator) { v.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) { v.httpClient = client }
}

// NewValidator creates a DigitalOcean validator.
func NewValidator(logger *slog.Logger, opts ...Option) *Validator {
	v := &Validator{logger: logger.With(slog.String("validator", "digitalocean"))}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Provider implements driven.Validator.
func (v *Validator) Provider() model.CloudProvider {
	return model.ProviderDigitalOcean
}

// ValidateFormat checks the token shape without any network calls.
func (v *Validator) ValidateFormat(config map[string]string) model.ValidationResult {
	token := config["apiToken"]
	if token == "" {
		return model.FailureResult("Missing required field", "apiToken is required")
	}
	if len(token) < 20 {
		return model.FailureResult("Invalid token format", "apiToken is too short")
	}
	if !tokenPattern.MatchString(token) {
		return model.FailureResult("Invalid token format",
			"apiToken contains characters outside [a-zA-Z0-9_-]")
	}

	return model.SuccessResult("Format valid", "")
}

// Validate fetches the account behind the token.
func (v *Validator) Validate(ctx context.Context, config map[string]string) model.ValidationResult {
	if res := v.ValidateFormat(config); !res.Valid {
		return res
	}

	client, err := v.newClient(ctx, config["apiToken"])
	if err != nil {
		return model.FailureResult("DigitalOcean client setup failed", err.Error())
	}

	acct, _, err := client.Account.Get(ctx)
	if err != nil {
		v.logger.Debug("account probe failed", slog.Any("error", err))
		return classifyError(err)
	}

	return model.SuccessResult("DigitalOcean credentials validated",
		fmt.Sprintf("token belongs to account %s", acct.Email))
}

func (v *Validator) newClient(ctx context.Context, token string) (*godo.Client, error) {
	if v.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	}
	oauthClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	var opts []godo.ClientOpt
	if v.baseURL != "" {
		opts = append(opts, godo.SetBaseURL(v.baseURL))
	}
	return godo.New(oauthClient, opts...)
}

// classifyError maps an account probe failure onto a result the owner
// can act on.
func classifyError(err error) model.ValidationResult {
	var respErr *godo.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case 401:
			return model.FailureResult("Authentication failed",
				"the API token was rejected; it may be revoked or mistyped")
		case 403:
			return model.FailureResult("Insufficient permissions",
				"the token authenticated but cannot read account details")
		case 429:
			return model.FailureResult("Rate limited",
				"DigitalOcean throttled the validation request; try again later")
		}
		return model.FailureResult("DigitalOcean validation failed", respErr.Message)
	}

	return model.FailureResult("DigitalOcean connection failed", err.Error())
}
