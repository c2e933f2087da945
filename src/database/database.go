package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/boxshift/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		status TEXT DEFAULT 'new',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password TEXT,
		auth_provider TEXT DEFAULT 'local',
		github_id INTEGER,
		github_username TEXT,
		broker TEXT DEFAULT 'degiro',
		situation TEXT DEFAULT 'particulier',
		vermogen_estimate INTEGER DEFAULT 0,
		onboarded BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS companies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		kvk_number TEXT,
		status TEXT DEFAULT 'pending',
		founded_at DATE,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		ticker TEXT,
		description TEXT NOT NULL,
		quantity REAL,
		price REAL,
		amount REAL NOT NULL,
		currency TEXT DEFAULT 'EUR',
		broker_ref TEXT,
		realized_gain REAL DEFAULT 0,
		processed BOOLEAN DEFAULT FALSE,
		FOREIGN KEY(company_id) REFERENCES companies(id)
	);

	CREATE TABLE IF NOT EXISTS holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		ticker TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity REAL DEFAULT 0,
		avg_cost_price REAL DEFAULT 0,
		total_cost REAL DEFAULT 0,
		FOREIGN KEY(company_id) REFERENCES companies(id),
		UNIQUE(company_id, ticker)
	);

	CREATE TABLE IF NOT EXISTS annual_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		balans TEXT,
		winst_verlies TEXT,
		status TEXT DEFAULT 'draft',
		generated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(company_id) REFERENCES companies(id),
		UNIQUE(company_id, year)
	);

	CREATE TABLE IF NOT EXISTS vpb_filings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		taxable_profit REAL DEFAULT 0,
		vpb_amount REAL DEFAULT 0,
		status TEXT DEFAULT 'draft',
		FOREIGN KEY(company_id) REFERENCES companies(id),
		UNIQUE(company_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_company_date ON transactions(company_id, date);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	migrateTransactionsTable()

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTransactionsTable backfills columns added after the first release.
func migrateTransactionsTable() {
	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'transactions'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'transactions': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'transactions'", "error", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'transactions'", "error", err)
		}
		return
	}

	if _, ok := columnExists["realized_gain"]; !ok {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN realized_gain REAL DEFAULT 0"); err != nil {
			logger.L.Error("Error adding 'realized_gain' column to 'transactions' table", "error", err)
		} else {
			logger.L.Info("Added 'realized_gain' column to 'transactions' table")
		}
	}
}
