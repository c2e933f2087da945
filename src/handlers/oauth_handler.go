package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/username/boxshift/backend/src/config"
	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
)

var (
	githubOauthConfig *oauth2.Config
	oauthStateString  string
)

func InitializeGitHubOAuthConfig() {
	githubOauthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.AppURL + "/api/auth/github/callback",
		ClientID:     config.Cfg.GitHubClientID,
		ClientSecret: config.Cfg.GitHubClientSecret,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}
	state, err := generateRandomToken()
	if err != nil {
		logger.L.Error("Failed to generate OAuth state", "error", err)
		state = "boxshift-oauth-state"
	}
	oauthStateString = state
}

func (h *UserHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	url := githubOauthConfig.AuthCodeURL(oauthStateString)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("state") != oauthStateString {
		logger.L.Warn("Invalid OAuth state from GitHub callback")
		http.Redirect(w, r, "/signin?error=invalid_state", http.StatusTemporaryRedirect)
		return
	}

	code := r.FormValue("code")
	token, err := githubOauthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.L.Error("Failed to exchange code for token", "error", err)
		http.Redirect(w, r, "/signin?error=token_exchange_failed", http.StatusTemporaryRedirect)
		return
	}

	githubUser, err := fetchGitHubUser(r.Context(), token)
	if err != nil {
		logger.L.Error("Failed to get user info from GitHub", "error", err)
		http.Redirect(w, r, "/signin?error=userinfo_failed", http.StatusTemporaryRedirect)
		return
	}
	if githubUser.Email == "" {
		http.Redirect(w, r, "/signin?error=no_verified_email", http.StatusTemporaryRedirect)
		return
	}

	user, err := models.GetUserByGitHubID(database.DB, githubUser.ID)
	if err != nil {
		// No GitHub-linked account yet. Refuse to absorb an existing local
		// account with the same email, otherwise create one.
		if existing, emailErr := models.GetUserByEmail(database.DB, githubUser.Email); emailErr == nil {
			if existing.AuthProvider == "local" || existing.Password != "" {
				logger.L.Warn("GitHub login attempt for existing local account", "email", githubUser.Email)
				http.Redirect(w, r, "/signin?error=email_already_exists_local", http.StatusTemporaryRedirect)
				return
			}
			user = existing
		} else {
			name := githubUser.Name
			if name == "" {
				name = githubUser.Login
			}
			newUser := &models.User{
				Email:          githubUser.Email,
				Name:           name,
				Password:       "",
				AuthProvider:   "github",
				GitHubID:       githubUser.ID,
				GitHubUsername: githubUser.Login,
			}
			userID, createErr := models.CreateUser(database.DB, newUser)
			if createErr != nil {
				logger.L.Error("Failed to create GitHub user", "error", createErr)
				http.Redirect(w, r, "/signin?error=user_creation_failed", http.StatusTemporaryRedirect)
				return
			}
			newUser.ID = userID
			user = newUser
			if err := models.MarkLeadConverted(database.DB, githubUser.Email); err != nil {
				logger.L.Warn("Failed to mark lead converted", "email", githubUser.Email, "error", err)
			}
		}
	}

	appToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", user.ID))
	if err != nil {
		logger.L.Error("Failed to generate app token for GitHub user", "error", err)
		http.Redirect(w, r, "/signin?error=token_generation_failed", http.StatusTemporaryRedirect)
		return
	}

	redirectURL := fmt.Sprintf("%s/auth/github/callback?token=%s", config.Cfg.AppURL, appToken)
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

type githubUserInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func fetchGitHubUser(ctx context.Context, token *oauth2.Token) (*githubUserInfo, error) {
	client := githubOauthConfig.Client(ctx, token)

	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return nil, fmt.Errorf("fetching github user: %w", err)
	}
	defer resp.Body.Close()

	contents, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading github user response: %w", err)
	}

	var user githubUserInfo
	if err := json.Unmarshal(contents, &user); err != nil {
		return nil, fmt.Errorf("parsing github user response: %w", err)
	}

	// The profile email can be private. In that case ask the emails endpoint
	// for the primary verified address.
	if user.Email == "" {
		emailResp, err := client.Get("https://api.github.com/user/emails")
		if err != nil {
			return nil, fmt.Errorf("fetching github emails: %w", err)
		}
		defer emailResp.Body.Close()

		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := json.NewDecoder(emailResp.Body).Decode(&emails); err != nil {
			return nil, fmt.Errorf("parsing github emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				user.Email = e.Email
				break
			}
		}
	}
	return &user, nil
}
