package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: currencies and users must be created BEFORE accounts due to
// foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL,
    disabled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS currencies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    short_code TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    currency_id TEXT NOT NULL,
    balance INTEGER NOT NULL DEFAULT 0,
    blocked INTEGER NOT NULL DEFAULT 0,
    disabled INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (currency_id) REFERENCES currencies(id)
);

CREATE TABLE IF NOT EXISTS account_owners (
    account_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (account_id, user_id),
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transfers (
    id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    actor_user_id TEXT,
    source_account_id TEXT NOT NULL,
    dest_account_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    is_rollback INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (source_account_id) REFERENCES accounts(id),
    FOREIGN KEY (dest_account_id) REFERENCES accounts(id)
);

CREATE TABLE IF NOT EXISTS duties (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    last_settlement INTEGER NOT NULL,
    payer_account_id TEXT,
    owner_account_id TEXT NOT NULL,
    period_seconds INTEGER NOT NULL,
    tax_amount INTEGER NOT NULL DEFAULT 0,
    blocked INTEGER NOT NULL DEFAULT 0,
    disabled INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (owner_account_id) REFERENCES accounts(id)
);

CREATE TABLE IF NOT EXISTS boxes (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    world TEXT NOT NULL,
    x INTEGER NOT NULL,
    y INTEGER NOT NULL,
    z INTEGER NOT NULL,
    last_settlement INTEGER NOT NULL,
    payer_account_id TEXT NOT NULL,
    owner_account_id TEXT NOT NULL,
    period_seconds INTEGER NOT NULL,
    tax_amount INTEGER NOT NULL,
    item_id TEXT NOT NULL,
    item_tag TEXT NOT NULL,
    stock INTEGER NOT NULL DEFAULT 0,
    buy_price INTEGER,
    sell_price INTEGER,
    blocked INTEGER NOT NULL DEFAULT 0,
    disabled INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (payer_account_id) REFERENCES accounts(id),
    FOREIGN KEY (owner_account_id) REFERENCES accounts(id)
);

CREATE TABLE IF NOT EXISTS box_logs (
    id TEXT PRIMARY KEY,
    transfer_id TEXT NOT NULL,
    box_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    unit_price INTEGER NOT NULL,
    is_rollback INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (transfer_id) REFERENCES transfers(id),
    FOREIGN KEY (box_id) REFERENCES boxes(id)
);

CREATE INDEX IF NOT EXISTS idx_account_owners_user_id ON account_owners(user_id);
CREATE INDEX IF NOT EXISTS idx_transfers_timestamp ON transfers(timestamp);
CREATE INDEX IF NOT EXISTS idx_transfers_source ON transfers(source_account_id);
CREATE INDEX IF NOT EXISTS idx_transfers_actor ON transfers(actor_user_id);
CREATE INDEX IF NOT EXISTS idx_boxes_payer ON boxes(payer_account_id);
CREATE INDEX IF NOT EXISTS idx_boxes_coords ON boxes(world, x, y, z);
CREATE INDEX IF NOT EXISTS idx_box_logs_transfer ON box_logs(transfer_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
