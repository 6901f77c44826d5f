package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func Connect() (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "drillcoach_user")
	password := getEnv("DB_PASSWORD", "drillcoach_password")
	dbname := getEnv("DB_NAME", "drillcoach")
	sslmode := getEnv("DB_SSLMODE", "disable")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func Migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		skill_level VARCHAR(20) NOT NULL DEFAULT '',
		password VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS drills (
		id               BIGSERIAL PRIMARY KEY,
		category         VARCHAR(50) NOT NULL,
		title            VARCHAR(255) NOT NULL,
		summary          TEXT NOT NULL DEFAULT '',
		difficulty_score REAL NOT NULL CHECK (difficulty_score >= 0 AND difficulty_score <= 95),
		tags             TEXT[] NOT NULL DEFAULT '{}',
		duration_minutes INT NOT NULL DEFAULT 15,
		created_at       TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_drills_category ON drills(category, difficulty_score);

	CREATE TABLE IF NOT EXISTS user_progression (
		user_id          BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		total_xp         BIGINT NOT NULL DEFAULT 0,
		current_streak   INT NOT NULL DEFAULT 0,
		longest_streak   INT NOT NULL DEFAULT 0,
		last_active_date DATE,
		freeze_tokens    INT NOT NULL DEFAULT 0,
		created_at       TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at       TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS user_confidence (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category   VARCHAR(50) NOT NULL,
		confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(user_id, category)
	);

	CREATE TABLE IF NOT EXISTS attempt_history (
		id               BIGSERIAL PRIMARY KEY,
		user_id          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		drill_id         BIGINT NOT NULL,
		category         VARCHAR(50) NOT NULL,
		outcome          VARCHAR(10) NOT NULL,
		difficulty_score REAL NOT NULL,
		tags             TEXT[] NOT NULL DEFAULT '{}',
		attempted_at     TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempt_history(user_id, id);
	CREATE INDEX IF NOT EXISTS idx_attempts_user_category ON attempt_history(user_id, category);

	CREATE TABLE IF NOT EXISTS reinforcement_queue (
		id       BIGSERIAL PRIMARY KEY,
		user_id  BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category VARCHAR(50) NOT NULL,
		drill_id BIGINT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		UNIQUE(user_id, category, drill_id)
	);

	CREATE INDEX IF NOT EXISTS idx_reinforcement_user ON reinforcement_queue(user_id, category, position);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id        UUID PRIMARY KEY,
		user_id           BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category          VARCHAR(50) NOT NULL,
		assigned_drill_id BIGINT NOT NULL,
		is_reinforcement  BOOLEAN NOT NULL DEFAULT FALSE,
		duration_minutes  INT NOT NULL DEFAULT 0,
		status            VARCHAR(20) NOT NULL DEFAULT 'open',
		started_at        TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		completed_at      TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return seedDrills(db)
}

// seedDrills loads a starter catalog so a fresh deploy can assign
// immediately. A non-empty drills table is left untouched.
func seedDrills(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM drills`).Scan(&count); err != nil {
		return fmt.Errorf("count drills: %w", err)
	}
	if count > 0 {
		return nil
	}

	seed := []struct {
		category string
		title    string
		summary  string
		score    float64
		tags     string
		minutes  int
	}{
		{"shooting", "Form Shooting Close Range", "One-hand form shots from five feet, focus on follow-through.", 10, "{form,release,footwork}", 10},
		{"shooting", "Spot Shooting: Elbows", "Alternating elbow jumpers off the catch.", 25, "{catch_and_shoot,midrange}", 15},
		{"shooting", "Free Throw Ladder", "Sets of free throws with consequence resets.", 35, "{free_throw,routine}", 15},
		{"shooting", "Off-Dribble Pull-Ups", "Pull-up jumpers off one and two dribbles from the wing.", 50, "{off_dribble,midrange,footwork}", 20},
		{"shooting", "Corner Three Circuit", "Catch-and-shoot threes from both corners under a shot clock.", 62, "{catch_and_shoot,three_point}", 20},
		{"shooting", "Step-Back Three Series", "Step-back threes off a live dribble against a closeout dummy.", 78, "{off_dribble,three_point,separation}", 25},
		{"shooting", "Contested Movement Threes", "Relocation threes at game speed with a contesting defender.", 90, "{three_point,movement,contested}", 25},
		{"passing", "Wall Pass Fundamentals", "Two-hand chest and bounce passes against a wall.", 8, "{chest_pass,bounce_pass,form}", 10},
		{"passing", "Partner Outlet Passes", "Long outlet passes off a rebound with a partner.", 28, "{outlet,accuracy}", 15},
		{"passing", "Pick-and-Roll Reads", "Hitting the roller or the corner shooter out of a live screen.", 55, "{pick_and_roll,vision,decision}", 20},
		{"passing", "One-Hand Skip Passes", "Cross-court skips off the dribble with either hand.", 68, "{skip_pass,off_hand,accuracy}", 20},
		{"passing", "Full-Speed Transition Feeds", "Hit-ahead passes to sprinting wings in transition.", 82, "{transition,vision,timing}", 25},
		{"dribbling", "Stationary Two-Ball Pound", "Pound dribbles with two balls at varying heights.", 12, "{two_ball,control}", 10},
		{"dribbling", "Cone Weave Crossovers", "Crossover and between-the-legs moves through a cone line.", 32, "{crossover,change_of_direction}", 15},
		{"dribbling", "Pressure Escape Series", "Retreat and re-attack dribbles against token pressure.", 58, "{pressure,retreat,control}", 20},
		{"dribbling", "Full-Court Combo Attack", "Chained combo moves at speed finishing at the rim.", 75, "{combo,speed,finishing}", 25},
		{"defense", "Closeout Technique", "Sprint-to-chop closeouts with high hands.", 18, "{closeout,footwork}", 10},
		{"defense", "Lane Slides Circuit", "Defensive slides corner to corner holding a stance.", 38, "{slides,conditioning,stance}", 15},
		{"defense", "Live One-on-One Containment", "Containing a live ballhandler for three consecutive stops.", 65, "{containment,one_on_one}", 20},
		{"defense", "Shell Rotations Under Fire", "Four-player shell with skip passes forcing rotations.", 85, "{rotations,help_defense,communication}", 25},
		{"conditioning", "Baseline Touch Runs", "Timed baseline-to-baseline touch runs.", 15, "{sprint,endurance}", 10},
		{"conditioning", "Defensive Stance Intervals", "Stance holds alternated with slide bursts.", 42, "{stance,intervals}", 15},
		{"conditioning", "Suicides With Finishes", "Suicide sprints each ending in a layup at speed.", 70, "{sprint,finishing,fatigue}", 20},
	}

	for _, d := range seed {
		_, err := db.Exec(
			`INSERT INTO drills (category, title, summary, difficulty_score, tags, duration_minutes)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			d.category, d.title, d.summary, d.score, d.tags, d.minutes,
		)
		if err != nil {
			return fmt.Errorf("seed drill %q: %w", d.title, err)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
