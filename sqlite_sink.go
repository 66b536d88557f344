package synthpop

import (
	"database/sql"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink is an optional durable per-step statistics sink, alongside
// the CSV writer: kentwait-contagion ships a SQLiteLogger next to its
// CSVLogger for the same per-run statistics, and this package follows
// that "one struct per output format, same data" shape rather than
// making CSV the only option.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if absent) a SQLite database at path
// and creates the statistics table if it doesn't already exist.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "synthpop: opening sqlite sink %s", path)
	}
	const stmt = `create table if not exists statistics (
		step integer not null primary key,
		susceptible integer not null,
		exposed integer not null,
		infected integer not null,
		recovered integer not null,
		vaccinated integer not null,
		public_transport_exposures integer not null
	)`
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "synthpop: creating statistics table")
	}
	return &SQLiteSink{db: db}, nil
}

// Write inserts one step's global counts as a row.
func (s *SQLiteSink) Write(stats Statistics) error {
	const stmt = `insert into statistics
		(step, susceptible, exposed, infected, recovered, vaccinated, public_transport_exposures)
		values (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(stmt,
		stats.Step, stats.Susceptible, stats.Exposed, stats.Infected,
		stats.Recovered, stats.Vaccinated, stats.PublicTransportExposures)
	if err != nil {
		return errors.Wrapf(err, "synthpop: writing statistics row for step %d", stats.Step)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }
