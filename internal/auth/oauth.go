package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Identity is a verified federated identity as reported by the provider.
type Identity struct {
	Email             string
	Name              string
	AvatarURL         string
	Provider          string
	ProviderAccountID string
}

// Exchanger turns an authorization code into a verified identity. The
// concrete implementation talks to the provider; tests substitute a stub.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// GoogleExchanger implements Exchanger against Google's OAuth 2.0 endpoints.
type GoogleExchanger struct {
	config *oauth2.Config
}

// NewGoogleExchanger builds the Google authorization-code flow client.
func NewGoogleExchanger(clientID, clientSecret, redirectURL string) *GoogleExchanger {
	return &GoogleExchanger{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthCodeURL returns the provider consent page URL for the given state.
func (g *GoogleExchanger) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange redeems the authorization code and fetches the userinfo document.
func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchange code: %w", err)
	}

	client := g.config.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("auth: fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: userinfo status %d", resp.StatusCode)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("auth: decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("auth: provider returned no email")
	}

	return &Identity{
		Email:             info.Email,
		Name:              info.Name,
		AvatarURL:         info.Picture,
		Provider:          "google",
		ProviderAccountID: info.ID,
	}, nil
}

var _ Exchanger = (*GoogleExchanger)(nil)

const (
	stateKeyPrefix = "oauth:state:"
	stateTTL       = 10 * time.Minute
)

// ErrStateMismatch indicates the callback carried an unknown or replayed
// state value.
var ErrStateMismatch = errors.New("auth: oauth state mismatch")

// StateStore issues single-use CSRF state values for the authorization-code
// flow, backed by redis so the callback can land on any instance.
type StateStore struct {
	rdb *redis.Client
}

// NewStateStore builds a redis-backed state store.
func NewStateStore(rdb *redis.Client) *StateStore {
	return &StateStore{rdb: rdb}
}

// Issue mints a random state value valid for a short window.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.rdb.Set(ctx, stateKeyPrefix+state, "1", stateTTL).Err(); err != nil {
		return "", fmt.Errorf("auth: store state: %w", err)
	}
	return state, nil
}

// Consume validates and invalidates a state value. Each state is good for
// exactly one callback.
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrStateMismatch
	}
	deleted, err := s.rdb.Del(ctx, stateKeyPrefix+state).Result()
	if err != nil {
		return fmt.Errorf("auth: consume state: %w", err)
	}
	if deleted == 0 {
		return ErrStateMismatch
	}
	return nil
}
