// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation and initialization
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	phones TEXT NOT NULL DEFAULT '[]',
	emails TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	mutuality INTEGER,
	cadence_days INTEGER,
	first_seen_at DATETIME NOT NULL,
	first_engagement_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id, name);

CREATE TABLE IF NOT EXISTS interaction_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	card_id TEXT,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_interaction_events_user ON interaction_events(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_interaction_events_card ON interaction_events(card_id);

CREATE TABLE IF NOT EXISTS interaction_contacts (
	event_id TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	PRIMARY KEY (event_id, contact_id),
	FOREIGN KEY (event_id) REFERENCES interaction_events(id)
);

CREATE INDEX IF NOT EXISTS idx_interaction_contacts_contact ON interaction_contacts(contact_id);

CREATE TABLE IF NOT EXISTS action_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	action_id TEXT NOT NULL,
	category TEXT NOT NULL,
	base_points REAL NOT NULL,
	multipliers TEXT,
	total_multiplier REAL NOT NULL DEFAULT 1,
	freshness_bonus REAL NOT NULL DEFAULT 0,
	final_points REAL NOT NULL,
	channel TEXT,
	customization TEXT,
	is_multi_contact INTEGER NOT NULL DEFAULT 0,
	metadata TEXT,
	dedupe_key TEXT UNIQUE,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_action_events_contact ON action_events(user_id, contact_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_action_events_action ON action_events(user_id, contact_id, action_id);

CREATE TABLE IF NOT EXISTS outcome_notes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	sentiment TEXT NOT NULL CHECK(sentiment IN ('positive', 'neutral', 'negative')),
	note TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcome_notes_contact ON outcome_notes(user_id, contact_id);
CREATE INDEX IF NOT EXISTS idx_outcome_notes_created ON outcome_notes(user_id, created_at);

CREATE TABLE IF NOT EXISTS deck_cards (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	channel TEXT NOT NULL,
	reason TEXT NOT NULL,
	score REAL NOT NULL,
	is_fresh INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	opened_at DATETIME,
	completed_at DATETIME,
	UNIQUE (user_id, date, contact_id)
);

CREATE INDEX IF NOT EXISTS idx_deck_cards_user_date ON deck_cards(user_id, date, position);

CREATE TABLE IF NOT EXISTS deck_history (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	is_premium INTEGER NOT NULL DEFAULT 0,
	total_cards INTEGER NOT NULL,
	completed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	snoozed INTEGER NOT NULL,
	pending INTEGER NOT NULL,
	active INTEGER NOT NULL,
	channel_counts TEXT NOT NULL DEFAULT '{}',
	fresh_shown INTEGER NOT NULL,
	fresh_engaged INTEGER NOT NULL,
	positive_outcomes INTEGER NOT NULL,
	neutral_outcomes INTEGER NOT NULL,
	negative_outcomes INTEGER NOT NULL,
	first_opened_at DATETIME,
	last_completed_at DATETIME,
	completion_rate INTEGER NOT NULL,
	average_score INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (user_id, date)
);

CREATE INDEX IF NOT EXISTS idx_deck_history_user_date ON deck_history(user_id, date);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
