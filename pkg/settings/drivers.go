package settings

// Database driver imports for side-effect registration with database/sql.
// These drivers back the postgres and mysql settings drivers.

import (
	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
)
