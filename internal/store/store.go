package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrAccountNotFound is returned when an operation references an account
// that does not exist.
var ErrAccountNotFound = errors.New("store: account not found")

// ErrOrderNotFound is returned when an operation references an order that
// does not exist.
var ErrOrderNotFound = errors.New("store: order not found")

// ErrPositionNotFound is returned when an operation references a position
// that does not exist.
var ErrPositionNotFound = errors.New("store: position not found")

// Store wraps a GORM connection to either Postgres (production, "FOR UPDATE"
// row locking on Accounts) or SQLite (local/dev and tests, where writes are
// already serialized by the driver).
type Store struct {
	db        *gorm.DB
	isPostgres bool
}

// Open connects to databaseURL, choosing the Postgres driver for
// "postgres://"/"postgresql://" DSNs and the SQLite driver (file path)
// otherwise — the same dual-driver split as the reference codebase.
func Open(databaseURL string) (*Store, error) {
	var dialector gorm.Dialector
	isPostgres := strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
	if isPostgres {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %w", err)
	}

	s := &Store{db: db, isPostgres: isPostgres}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&Account{},
		&Order{},
		&Trade{},
		&Position{},
		&PositionHistory{},
		&EquityHistory{},
	)
}

// DB exposes the underlying *gorm.DB for queries and writes that the helpers
// here do not cover, such as the submission service's order inserts and the
// equity recorder's batch insert.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTx runs fn inside a single committed transaction, matching the "one
// transactional boundary per modified order" requirement of the matching
// engine.
func (s *Store) WithTx(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

// LockAccount reads an Account row with a pessimistic "FOR UPDATE" lock on
// Postgres, preventing a lost update between the HTTP order-create path and
// a concurrent engine fill. SQLite has no row-level locking and serializes
// writers at the connection level, so the clause is skipped there.
func (s *Store) LockAccount(tx *gorm.DB, accountID uint) (*Account, error) {
	q := tx
	if s.isPostgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var account Account
	if err := q.First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount inserts a new Account, or returns the existing one for
// userID (idempotent by user_id, matching the POST /accounts contract).
func (s *Store) CreateAccount(userID string, initialBalance decimal.Decimal, leverage int) (*Account, error) {
	var account Account
	err := s.db.Where("user_id = ?", userID).First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = Account{
		UserID:   userID,
		Balance:  initialBalance,
		Leverage: leverage,
	}
	if err := s.db.Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount loads an Account by id.
func (s *Store) GetAccount(accountID uint) (*Account, error) {
	var account Account
	if err := s.db.First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListPositions returns every open Position for an account.
func (s *Store) ListPositions(accountID uint) ([]Position, error) {
	var positions []Position
	err := s.db.Where("account_id = ?", accountID).Find(&positions).Error
	return positions, err
}

// ListAllAccountsWithPositions eagerly loads every account together with
// its open positions, for the Equity Recorder's per-tick scan.
func (s *Store) ListAllAccountsWithPositions() ([]Account, map[uint][]Position, error) {
	var accounts []Account
	if err := s.db.Find(&accounts).Error; err != nil {
		return nil, nil, err
	}

	var positions []Position
	if err := s.db.Find(&positions).Error; err != nil {
		return nil, nil, err
	}

	byAccount := make(map[uint][]Position, len(accounts))
	for _, p := range positions {
		byAccount[p.AccountID] = append(byAccount[p.AccountID], p)
	}
	return accounts, byAccount, nil
}

// OpenOrders returns every order in NEW or PARTIALLY_FILLED status, the set
// the matching engine's order scan considers each tick.
func (s *Store) OpenOrders() ([]Order, error) {
	var orders []Order
	err := s.db.Where("status IN ?", []OrderStatus{StatusNew, StatusPartiallyFilled}).
		Order("id asc").
		Find(&orders).Error
	return orders, err
}

// OpenPositionsWithTPSL returns every position carrying a take-profit or
// stop-loss, the set the TP/SL scan considers each tick.
func (s *Store) OpenPositionsWithTPSL() ([]Position, error) {
	var positions []Position
	err := s.db.Where("take_profit_price IS NOT NULL OR stop_loss_price IS NOT NULL").Find(&positions).Error
	return positions, err
}

// ListOrders returns every order belonging to an account.
func (s *Store) ListOrders(accountID uint) ([]Order, error) {
	var orders []Order
	err := s.db.Where("account_id = ?", accountID).Order("id desc").Find(&orders).Error
	return orders, err
}

// GetOrder loads an order by id.
func (s *Store) GetOrder(orderID uint) (*Order, error) {
	var order Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetPosition loads a position by id.
func (s *Store) GetPosition(positionID uint) (*Position, error) {
	var position Position
	if err := s.db.First(&position, positionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return &position, nil
}

// ListPositionHistory returns closed-position rows for an account, newest
// first.
func (s *Store) ListPositionHistory(accountID uint) ([]PositionHistory, error) {
	var rows []PositionHistory
	err := s.db.Where("account_id = ?", accountID).Order("closed_at desc").Find(&rows).Error
	return rows, err
}

// ListEquityHistory returns equity snapshots for an account, oldest first.
func (s *Store) ListEquityHistory(accountID uint) ([]EquityHistory, error) {
	var rows []EquityHistory
	err := s.db.Where("account_id = ?", accountID).Order("timestamp asc").Find(&rows).Error
	return rows, err
}
