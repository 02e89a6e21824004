package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const stateCookie = "storefront_oauth_state"

// Provider runs the OAuth2 authorization-code login against an external
// identity provider and turns the result into a local session.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	users       UserStore
	sessions    *Sessions
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

func NewProvider(cfg *config.AuthConfig, users UserStore, sessions *Sessions, logger *zap.Logger) *Provider {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		userInfoURL: cfg.UserInfoURL,
		users:       users,
		sessions:    sessions,
		adminEmails: admins,
		logger:      logger.Named("auth"),
	}
}

// Login redirects to the provider with a fresh state value.
func (p *Provider) Login(c *gin.Context) {
	state := uuid.NewString()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusFound, p.oauth.AuthCodeURL(state))
}

type userInfo struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (u userInfo) names() (string, string) {
	if u.GivenName != "" || u.FamilyName != "" {
		return u.GivenName, u.FamilyName
	}
	first, last, _ := strings.Cut(strings.TrimSpace(u.Name), " ")
	return first, strings.TrimSpace(last)
}

// Callback completes the flow started by Login.
func (p *Provider) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	cookie, err := c.Request.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.Query("state") {
		Abort(c, apperr.New(apperr.Validation, "invalid login state"))
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	if e := c.Query("error"); e != "" {
		Abort(c, apperr.Newf(apperr.Unauthorized, "login failed: %s", e))
		return
	}

	token, err := p.oauth.Exchange(ctx, c.Query("code"))
	if err != nil {
		p.logger.Warn("Code exchange failed", zap.Error(err))
		Abort(c, apperr.Wrap(apperr.Unauthorized, err, "login failed"))
		return
	}

	info, err := p.fetchUserInfo(c, token)
	if err != nil {
		p.logger.Error("Failed to fetch user info", zap.Error(err))
		Abort(c, err)
		return
	}

	first, last := info.names()
	_, admin := p.adminEmails[strings.ToLower(info.Email)]
	user, err := p.users.UpsertUser(ctx, &models.User{
		ID:              info.Sub,
		Email:           info.Email,
		FirstName:       first,
		LastName:        last,
		ProfileImageURL: info.Picture,
		IsAdmin:         admin,
	})
	if err != nil {
		p.logger.Error("Failed to upsert user", zap.String("user_id", info.Sub), zap.Error(err))
		Abort(c, err)
		return
	}

	session, expires, err := p.sessions.Issue(user)
	if err != nil {
		Abort(c, err)
		return
	}
	p.sessions.SetCookie(c, session, expires)

	p.logger.Info("User logged in", zap.String("user_id", user.ID), zap.Bool("admin", user.IsAdmin))
	c.Redirect(http.StatusFound, "/")
}

func (p *Provider) fetchUserInfo(c *gin.Context, token *oauth2.Token) (*userInfo, error) {
	resp, err := p.oauth.Client(c.Request.Context(), token).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.Unauthorized, "userinfo returned %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, apperr.New(apperr.Unauthorized, "userinfo has no subject")
	}
	return &info, nil
}

// Logout drops the session cookie and sends the browser home.
func (p *Provider) Logout(c *gin.Context) {
	p.sessions.ClearCookie(c)
	c.Redirect(http.StatusFound, "/")
}
