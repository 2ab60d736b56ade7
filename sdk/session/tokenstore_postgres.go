package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSessionTable = "gateway_sessions"
	// SessionCookieName carries the server-side session ID when tokens live in Postgres.
	SessionCookieName = "sid"

	postgresWriteTimeout = 5 * time.Second
)

// PostgresTokenStoreConfig captures what is needed to open the session table.
type PostgresTokenStoreConfig struct {
	DSN    string
	Schema string
	Table  string
}

// PostgresTokenStore keeps token pairs in PostgreSQL keyed by session ID, so several
// gateway replicas can share sessions while browsers only hold an opaque ID.
type PostgresTokenStore struct {
	db  *sql.DB
	cfg PostgresTokenStoreConfig
}

// NewPostgresTokenStore connects to PostgreSQL and verifies the connection.
func NewPostgresTokenStore(ctx context.Context, cfg PostgresTokenStoreConfig) (*PostgresTokenStore, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres token store: DSN is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		cfg.Table = defaultSessionTable
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres token store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres token store: ping database: %w", err)
	}
	return &PostgresTokenStore{db: db, cfg: cfg}, nil
}

// Close releases the database handle.
func (s *PostgresTokenStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the schema (when configured) and the session table.
func (s *PostgresTokenStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres token store: not initialized")
	}
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		if _, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdentifier(schema)); err != nil {
			return fmt.Errorf("postgres token store: create schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.tableName())); err != nil {
		return fmt.Errorf("postgres token store: create session table: %w", err)
	}
	return nil
}

// Load fetches the pair stored for id. Missing rows report ok=false.
func (s *PostgresTokenStore) Load(ctx context.Context, id string) (TokenPair, bool, error) {
	var pair TokenPair
	if s == nil || s.db == nil || id == "" {
		return pair, false, nil
	}
	query := fmt.Sprintf("SELECT access_token, refresh_token FROM %s WHERE id = $1", s.tableName())
	err := s.db.QueryRowContext(ctx, query, id).Scan(&pair.AccessToken, &pair.RefreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return pair, false, nil
	}
	if err != nil {
		return pair, false, fmt.Errorf("postgres token store: load session: %w", err)
	}
	return pair, true, nil
}

// Save upserts the pair for id.
func (s *PostgresTokenStore) Save(ctx context.Context, id string, pair TokenPair) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres token store: not initialized")
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, access_token, refresh_token, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token, updated_at = NOW()
	`, s.tableName())
	if _, err := s.db.ExecContext(ctx, query, id, pair.AccessToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("postgres token store: save session: %w", err)
	}
	return nil
}

// Delete removes the row for id.
func (s *PostgresTokenStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres token store: not initialized")
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName())
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("postgres token store: delete session: %w", err)
	}
	return nil
}

// Session returns a TokenStore view of one session row.
func (s *PostgresTokenStore) Session(id string) *PostgresSession {
	return &PostgresSession{store: s, id: id}
}

// ForRequest resolves the session named by the request's session cookie. When the
// request carries none, an ID is minted and the cookie written on the first token write.
func (s *PostgresTokenStore) ForRequest(w http.ResponseWriter, r *http.Request, opts CookieOptions) *PostgresSession {
	sess := &PostgresSession{store: s, w: w, opts: opts}
	if r != nil {
		if c, err := r.Cookie(SessionCookieName); err == nil {
			if _, errParse := uuid.Parse(c.Value); errParse == nil {
				sess.id = c.Value
			}
		}
	}
	return sess
}

func (s *PostgresTokenStore) tableName() string {
	if strings.TrimSpace(s.cfg.Schema) == "" {
		return quoteIdentifier(s.cfg.Table)
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(s.cfg.Table)
}

func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// PostgresSession implements TokenStore over one session row.
type PostgresSession struct {
	store  *PostgresTokenStore
	w      http.ResponseWriter
	opts   CookieOptions
	mu     sync.Mutex
	id     string
	loaded bool
	pair   TokenPair
}

// ID returns the session ID, empty until one is assigned.
func (p *PostgresSession) ID() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *PostgresSession) SetAccess(token string) {
	p.update(func(pair *TokenPair) { pair.AccessToken = token })
}

func (p *PostgresSession) Access() (string, bool) {
	pair := p.snapshot()
	return pair.AccessToken, pair.AccessToken != ""
}

func (p *PostgresSession) SetRefresh(token string) {
	p.update(func(pair *TokenPair) { pair.RefreshToken = token })
}

func (p *PostgresSession) Refresh() (string, bool) {
	pair := p.snapshot()
	return pair.RefreshToken, pair.RefreshToken != ""
}

func (p *PostgresSession) SetPair(pair TokenPair) {
	p.update(func(current *TokenPair) { *current = pair })
}

func (p *PostgresSession) Clear() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = true
	p.pair = TokenPair{}
	if p.id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresWriteTimeout)
	defer cancel()
	if err := p.store.Delete(ctx, p.id); err != nil {
		log.WithError(err).Warn("postgres session: clear failed")
	}
	p.writeCookieLocked("")
}

func (p *PostgresSession) HasAccess() bool {
	_, ok := p.Access()
	return ok
}

func (p *PostgresSession) snapshot() TokenPair {
	if p == nil {
		return TokenPair{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()
	return p.pair
}

func (p *PostgresSession) update(fn func(*TokenPair)) {
	if p == nil || p.store == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()
	fn(&p.pair)
	if p.id == "" {
		p.id = uuid.NewString()
		p.writeCookieLocked(p.id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresWriteTimeout)
	defer cancel()
	if err := p.store.Save(ctx, p.id, p.pair); err != nil {
		log.WithError(err).Warn("postgres session: save failed")
	}
}

func (p *PostgresSession) loadLocked() {
	if p.loaded {
		return
	}
	p.loaded = true
	if p.id == "" || p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresWriteTimeout)
	defer cancel()
	pair, ok, err := p.store.Load(ctx, p.id)
	if err != nil {
		log.WithError(err).Warn("postgres session: load failed")
		return
	}
	if ok {
		p.pair = pair
	}
}

func (p *PostgresSession) writeCookieLocked(value string) {
	if p.w == nil {
		return
	}
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   p.opts.Domain,
		Secure:   p.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(CookieMaxAge / time.Second)
	}
	http.SetCookie(p.w, cookie)
}
