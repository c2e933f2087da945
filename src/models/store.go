package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// GetUserByID loads one user. Returns ErrNotFound when absent.
func GetUserByID(db *sql.DB, id int64) (*User, error) {
	var u User
	var githubID sql.NullInt64
	var githubUsername, password sql.NullString
	err := db.QueryRow(`
		SELECT id, email, name, password, auth_provider, github_id, github_username,
		       broker, situation, vermogen_estimate, onboarded, created_at, updated_at
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Email, &u.Name, &password, &u.AuthProvider, &githubID, &githubUsername,
		&u.Broker, &u.Situation, &u.VermogenEstimate, &u.Onboarded, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %d: %w", id, err)
	}
	u.Password = password.String
	u.GitHubID = githubID.Int64
	u.GitHubUsername = githubUsername.String
	return &u, nil
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	var id int64
	err := db.QueryRow("SELECT id FROM users WHERE email = ?", email).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return GetUserByID(db, id)
}

func GetUserByGitHubID(db *sql.DB, githubID int64) (*User, error) {
	var id int64
	err := db.QueryRow("SELECT id FROM users WHERE github_id = ?", githubID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by github id: %w", err)
	}
	return GetUserByID(db, id)
}

// CreateUser inserts a user and returns its id.
func CreateUser(db *sql.DB, u *User) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO users (email, name, password, auth_provider, github_id, github_username, broker, situation, vermogen_estimate, onboarded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.Name, u.Password, u.AuthProvider,
		nullableInt64(u.GitHubID), nullableString(u.GitHubUsername),
		defaultString(u.Broker, "degiro"), defaultString(u.Situation, "particulier"),
		u.VermogenEstimate, u.Onboarded)
	if err != nil {
		return 0, fmt.Errorf("inserting user: %w", err)
	}
	return res.LastInsertId()
}

func UpdateUserOnboarding(db *sql.DB, u *User) error {
	_, err := db.Exec(`
		UPDATE users SET name = ?, broker = ?, situation = ?, vermogen_estimate = ?,
		       onboarded = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		u.Name, u.Broker, u.Situation, u.VermogenEstimate, u.ID)
	if err != nil {
		return fmt.Errorf("updating user %d: %w", u.ID, err)
	}
	return nil
}

func CreateSession(db *sql.DB, s *Session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Token, s.RefreshToken, s.UserAgent, s.ClientIP, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	var s Session
	err := db.QueryRow(`
		SELECT id, user_id, token, refresh_token, is_blocked, expires_at, created_at
		FROM sessions WHERE refresh_token = ?`, refreshToken).Scan(
		&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.IsBlocked, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

func UpdateSessionToken(db *sql.DB, sessionID int64, token string) error {
	_, err := db.Exec("UPDATE sessions SET token = ? WHERE id = ?", token, sessionID)
	if err != nil {
		return fmt.Errorf("updating session %d: %w", sessionID, err)
	}
	return nil
}

func DeleteSessionsForUser(db *sql.DB, userID int64) error {
	_, err := db.Exec("DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("deleting sessions for user %d: %w", userID, err)
	}
	return nil
}

// GetCompanyByUserID returns the user's BV. Returns ErrNotFound when the user
// has not been onboarded yet.
func GetCompanyByUserID(db *sql.DB, userID int64) (*Company, error) {
	var c Company
	var kvk sql.NullString
	var founded sql.NullTime
	err := db.QueryRow(`
		SELECT id, user_id, name, kvk_number, status, founded_at
		FROM companies WHERE user_id = ?`, userID).Scan(
		&c.ID, &c.UserID, &c.Name, &kvk, &c.Status, &founded)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying company for user %d: %w", userID, err)
	}
	c.KvKNumber = kvk.String
	c.FoundedAt = founded.Time
	return &c, nil
}

func CreateCompany(db *sql.DB, c *Company) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO companies (user_id, name, kvk_number, status) VALUES (?, ?, ?, ?)`,
		c.UserID, c.Name, nullableString(c.KvKNumber), defaultString(c.Status, "pending"))
	if err != nil {
		return 0, fmt.Errorf("inserting company: %w", err)
	}
	return res.LastInsertId()
}

// CreateLead records a waitlist signup and returns the lead's position (its
// rank by signup order). Re-signing the same email returns the current count
// with created false.
func CreateLead(db *sql.DB, email string) (position int, created bool, err error) {
	var existing int64
	err = db.QueryRow("SELECT id FROM leads WHERE email = ?", email).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.Exec("INSERT INTO leads (email) VALUES (?)", email); err != nil {
			return 0, false, fmt.Errorf("inserting lead: %w", err)
		}
		created = true
	case err != nil:
		return 0, false, fmt.Errorf("querying lead: %w", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM leads").Scan(&count); err != nil {
		return 0, false, fmt.Errorf("counting leads: %w", err)
	}
	return count, created, nil
}

// MarkLeadConverted flips a lead to converted once its email becomes a user.
func MarkLeadConverted(db *sql.DB, email string) error {
	_, err := db.Exec("UPDATE leads SET status = 'converted' WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("updating lead: %w", err)
	}
	return nil
}

// ListTransactions returns a company's transactions, newest first, optionally
// filtered by type and/or year.
func ListTransactions(db *sql.DB, companyID int64, txType string, year int) ([]Transaction, error) {
	query := `
		SELECT id, company_id, date, type, ticker, description, quantity, price,
		       amount, currency, broker_ref, realized_gain, processed
		FROM transactions WHERE company_id = ?`
	args := []interface{}{companyID}
	if txType != "" {
		query += " AND type = ?"
		args = append(args, txType)
	}
	if year != 0 {
		query += " AND CAST(strftime('%Y', date) AS INTEGER) = ?"
		args = append(args, year)
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		var dateStr string
		var ticker, brokerRef sql.NullString
		var quantity, price sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.CompanyID, &dateStr, &t.Type, &ticker, &t.Description,
			&quantity, &price, &t.Amount, &t.Currency, &brokerRef, &t.RealizedGain, &t.Processed); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		t.Date, _ = time.Parse("2006-01-02", dateStr)
		t.Ticker = ticker.String
		t.BrokerRef = brokerRef.String
		t.Quantity = quantity.Float64
		t.Price = price.Float64
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// TransactionYears returns the distinct years present in a company's ledger,
// newest first.
func TransactionYears(db *sql.DB, companyID int64) ([]int, error) {
	rows, err := db.Query(`
		SELECT DISTINCT CAST(strftime('%Y', date) AS INTEGER) AS y
		FROM transactions WHERE company_id = ? ORDER BY y DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying transaction years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scanning year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(i int64) interface{} {
	if i == 0 {
		return nil
	}
	return i
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
