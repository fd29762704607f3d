package postgres

// PostgreSQL caps the number of bind parameters in a single statement at 65535
// (the extended protocol encodes the count as uint16). A multi-row INSERT uses
// one parameter per column per row, so the largest user batch that fits in one
// statement is bounded by the column count.
const (
	maxBindParameters = 65535

	// userInsertColumns is the number of bound columns per user row:
	// username, email, created_at.
	userInsertColumns = 3
)

// MaxUsersPerStatement is the largest number of users InsertBatch accepts.
// 21845 users * 3 params = 65535 parameters.
const MaxUsersPerStatement = maxBindParameters / userInsertColumns

// insertUserSQL is the single-row statement used by InsertOne and queued by
// batch sessions.
const insertUserSQL = `INSERT INTO users (username, email, created_at) VALUES ($1, $2, $3)`
