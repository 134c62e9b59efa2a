package service

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"fairaudit/internal/state"
)

// DataSourceConfig holds connection details for a table-backed corpus.
type DataSourceConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require"
}

// DataSource loads corpus datasets from a database instead of CSV files.
// Each table becomes one dataset, the table name its id.
type DataSource interface {
	Connect(config DataSourceConfig) error
	Close() error
	ListTables() ([]string, error)
	LoadTable(tableName string, limit int) (*state.DataFrame, error)
}

// PostgresDataSource implements DataSource for PostgreSQL.
type PostgresDataSource struct {
	db *sql.DB
}

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (p *PostgresDataSource) Connect(config DataSourceConfig) error {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	p.db = db
	return nil
}

func (p *PostgresDataSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresDataSource) ListTables() ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	rows, err := p.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// LoadTable reads up to limit rows of a table into a DataFrame. The table
// name must be a plain identifier; anything else is rejected before it
// reaches the query.
func (p *PostgresDataSource) LoadTable(tableName string, limit int) (*state.DataFrame, error) {
	if !validTableName.MatchString(tableName) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrInvalidInput, tableName)
	}
	if limit <= 0 {
		limit = 10000
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", tableName, limit)
	rows, err := p.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	df := &state.DataFrame{
		ID:      tableName,
		Headers: columns,
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make([]string, len(columns))
		for i, val := range values {
			row[i] = stringifyValue(val)
		}
		df.Rows = append(df.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	df.Target = state.InferTarget(df.Headers)
	return df, nil
}

func stringifyValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", v)
	}
}
