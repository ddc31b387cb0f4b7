package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var ErrUserNotFound = errors.New("用户不存在")

// Store 对局结果和积分的持久化网关
type Store struct {
	db *sqlx.DB
}

// Open 打开数据库并建表
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT UNIQUE NOT NULL,
			name TEXT,
			first_seen_at TEXT NOT NULL,
			points INTEGER DEFAULT 0,
			total_games INTEGER DEFAULT 0,
			wins INTEGER DEFAULT 0,
			losses INTEGER DEFAULT 0,
			kills INTEGER DEFAULT 0,
			saves INTEGER DEFAULT 0,
			correct_checks INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			winner_side TEXT,
			total_rounds INTEGER DEFAULT 0,
			special_mode INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS game_players (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id INTEGER NOT NULL,
			user_id INTEGER,
			bot_name TEXT,
			role TEXT NOT NULL,
			is_bot INTEGER NOT NULL,
			is_alive INTEGER DEFAULT 1,
			kills INTEGER DEFAULT 0,
			heals INTEGER DEFAULT 0,
			checks INTEGER DEFAULT 0,
			FOREIGN KEY (game_id) REFERENCES games(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("建表失败: %w", err)
		}
	}
	return nil
}

// UserRecord 用户积分和统计
type UserRecord struct {
	ID            int64  `db:"id" json:"id"`
	ExternalID    string `db:"external_id" json:"external_id"`
	Name          string `db:"name" json:"name"`
	FirstSeenAt   string `db:"first_seen_at" json:"first_seen_at"`
	Points        int    `db:"points" json:"points"`
	TotalGames    int    `db:"total_games" json:"total_games"`
	Wins          int    `db:"wins" json:"wins"`
	Losses        int    `db:"losses" json:"losses"`
	Kills         int    `db:"kills" json:"kills"`
	Saves         int    `db:"saves" json:"saves"`
	CorrectChecks int    `db:"correct_checks" json:"correct_checks"`
}

// GetOrCreateUser 按外部标识查找用户，不存在则创建，返回用户ID
func (s *Store) GetOrCreateUser(externalID, name string) (int64, error) {
	var id int64
	err := s.db.Get(&id, "SELECT id FROM users WHERE external_id = ?", externalID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("查询用户失败: %w", err)
	}

	res, err := s.db.Exec(
		"INSERT INTO users (external_id, name, first_seen_at) VALUES (?, ?, ?)",
		externalID, name, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("创建用户失败: %w", err)
	}
	return res.LastInsertId()
}

// AddGame 记录新对局，返回对局ID
func (s *Store) AddGame(sessionID string, specialMode bool) (int64, error) {
	special := 0
	if specialMode {
		special = 1
	}
	res, err := s.db.Exec(
		"INSERT INTO games (session_id, started_at, special_mode) VALUES (?, ?, ?)",
		sessionID, time.Now().Format(time.RFC3339), special,
	)
	if err != nil {
		return 0, fmt.Errorf("记录对局失败: %w", err)
	}
	return res.LastInsertId()
}

// FinishGame 对局结束时写入胜方和总回合数
func (s *Store) FinishGame(gameID int64, winnerSide string, totalRounds int) error {
	_, err := s.db.Exec(
		"UPDATE games SET ended_at = ?, winner_side = ?, total_rounds = ? WHERE id = ?",
		time.Now().Format(time.RFC3339), winnerSide, totalRounds, gameID,
	)
	if err != nil {
		return fmt.Errorf("更新对局失败: %w", err)
	}
	return nil
}

// AddGamePlayer 记录参局玩家，机器人userID传0
func (s *Store) AddGamePlayer(gameID, userID int64, botName, role string, isBot bool) (int64, error) {
	bot := 0
	if isBot {
		bot = 1
	}
	var uid interface{}
	if userID > 0 {
		uid = userID
	}
	res, err := s.db.Exec(
		"INSERT INTO game_players (game_id, user_id, bot_name, role, is_bot) VALUES (?, ?, ?, ?, ?)",
		gameID, uid, botName, role, bot,
	)
	if err != nil {
		return 0, fmt.Errorf("记录参局玩家失败: %w", err)
	}
	return res.LastInsertId()
}

// UpdateGamePlayer 对局结束时回写玩家战绩
func (s *Store) UpdateGamePlayer(playerRowID int64, alive bool, kills, heals, checks int) error {
	aliveInt := 0
	if alive {
		aliveInt = 1
	}
	_, err := s.db.Exec(
		"UPDATE game_players SET is_alive = ?, kills = ?, heals = ?, checks = ? WHERE id = ?",
		aliveInt, kills, heals, checks, playerRowID,
	)
	if err != nil {
		return fmt.Errorf("回写玩家战绩失败: %w", err)
	}
	return nil
}

// AddUserResult 累加用户积分和统计
func (s *Store) AddUserResult(userID int64, points int, won bool, kills, heals, checks int) error {
	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}
	_, err := s.db.Exec(
		`UPDATE users SET
			points = points + ?,
			total_games = total_games + 1,
			wins = wins + ?,
			losses = losses + ?,
			kills = kills + ?,
			saves = saves + ?,
			correct_checks = correct_checks + ?
		WHERE id = ?`,
		points, wins, losses, kills, heals, checks, userID,
	)
	if err != nil {
		return fmt.Errorf("累加用户积分失败: %w", err)
	}
	return nil
}

// UserStats 查询用户统计
func (s *Store) UserStats(externalID string) (*UserRecord, error) {
	var rec UserRecord
	err := s.db.Get(&rec, "SELECT * FROM users WHERE external_id = ?", externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户统计失败: %w", err)
	}
	return &rec, nil
}

// TopPlayers 积分排行榜
func (s *Store) TopPlayers(limit int) ([]UserRecord, error) {
	records := make([]UserRecord, 0, limit)
	err := s.db.Select(&records,
		"SELECT * FROM users ORDER BY points DESC, wins DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("查询排行榜失败: %w", err)
	}
	return records, nil
}
