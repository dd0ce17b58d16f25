package sqlite

// table describes one memory table of the local store.
// Columns lists the searchable metadata columns, excluding id, embedding and created_at.
type table struct {
	Name    string
	Columns []string
	DDL     string
}

var tables = []table{
	{
		Name:    "sessions",
		Columns: []string{"date", "session_number", "title", "content", "file_path"},
		DDL: `CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT,
			session_number INTEGER,
			title TEXT,
			content TEXT,
			embedding TEXT,
			file_path TEXT UNIQUE,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		Name:    "case_studies",
		Columns: []string{"case_id", "title", "content", "file_path", "code"},
		DDL: `CREATE TABLE IF NOT EXISTS case_studies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id TEXT UNIQUE,
			title TEXT,
			content TEXT,
			embedding TEXT,
			file_path TEXT UNIQUE,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			code TEXT
		)`,
	},
	{
		Name:    "protocols",
		Columns: []string{"protocol_id", "title", "content", "file_path", "code"},
		DDL: `CREATE TABLE IF NOT EXISTS protocols (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			protocol_id TEXT UNIQUE,
			title TEXT,
			content TEXT,
			embedding TEXT,
			file_path TEXT UNIQUE,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			code TEXT
		)`,
	},
	{
		Name:    "capabilities",
		Columns: []string{"name", "content", "file_path"},
		DDL: `CREATE TABLE IF NOT EXISTS capabilities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			content TEXT,
			embedding TEXT,
			file_path TEXT UNIQUE,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		Name:    "system_docs",
		Columns: []string{"filename", "doc_type", "content", "file_path"},
		DDL: `CREATE TABLE IF NOT EXISTS system_docs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT,
			doc_type TEXT,
			content TEXT,
			embedding TEXT,
			file_path TEXT UNIQUE,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}

// TableNames returns the names of all tables in the local store.
func TableNames() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

func lookupTable(name string) (table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return table{}, false
}

func (t table) hasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}
