// ledger/schema.go
package ledger

const Schema = `
CREATE TABLE IF NOT EXISTS entries (
	portfolio TEXT NOT NULL,
	date TEXT NOT NULL,
	id INTEGER NOT NULL,
	this_action TEXT NOT NULL,
	positions TEXT NOT NULL,
	PRIMARY KEY (portfolio, id)
);

CREATE INDEX IF NOT EXISTS idx_entries_portfolio_date ON entries(portfolio, date);
`
