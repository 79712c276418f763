package postgresql

import (
	"database/sql"
	"sync"

	_ "github.com/lib/pq"

	"github.com/stagepass/sp-ticketing/config"
)

var (
	db   *sql.DB
	once sync.Once
)

// GetDatabase returns the shared PostgreSQL connection pool.
func GetDatabase() *sql.DB {
	once.Do(func() {
		c := config.Get()

		var err error
		db, err = sql.Open("postgres", c.Postgres.DSN)
		if err != nil {
			panic(err)
		}

		db.SetMaxOpenConns(c.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(c.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(c.Postgres.ConnMaxLifetime)
	})

	return db
}
