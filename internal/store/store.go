// Package store is the durable ledger store: users, positions, the
// append-only transaction log, shortable entries and equity snapshots, backed
// by gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tradesphere/internal/ledger"
	"tradesphere/internal/models"
)

// Store wraps the database with the ledger's persistence operations.
type Store struct {
	db *gorm.DB
	// pruneZeroPositions deletes a position row when it nets out to zero.
	// Default is to retain the zero row.
	pruneZeroPositions bool
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB, pruneZeroPositions bool) *Store {
	return &Store{db: db, pruneZeroPositions: pruneZeroPositions}
}

// GetUser fetches a user by id. Returns nil when not found.
func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByUsername fetches a user by username. Returns nil when not found.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	return &user, nil
}

// GetUserByEmail fetches a user by email. Returns nil when not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", email, err)
	}
	return &user, nil
}

// CreateUser persists a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUserTier changes a user's tier.
func (s *Store) UpdateUserTier(ctx context.Context, id uint, tier models.Tier) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("tier", tier)
	if res.Error != nil {
		return fmt.Errorf("failed to update tier for user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// GetPosition fetches the position for (user, symbol, market). Returns nil
// when no position exists.
func (s *Store) GetPosition(ctx context.Context, userID uint, symbol string, market models.Market) (*models.Position, error) {
	var pos models.Position
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND market = ?", userID, symbol, market).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s/%s for user %d: %w", symbol, market, userID, err)
	}
	return &pos, nil
}

// ListPositions returns all positions of one user.
func (s *Store) ListPositions(ctx context.Context, userID uint) ([]models.Position, error) {
	var positions []models.Position
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list positions for user %d: %w", userID, err)
	}
	return positions, nil
}

// ListShortPositions returns every open short position across all users, for
// the interest accrual batch.
func (s *Store) ListShortPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	if err := s.db.WithContext(ctx).Where("shares < 0").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list short positions: %w", err)
	}
	return positions, nil
}

// ExecuteTrade commits the outcome of a trade as a unit: the cash delta
// against the user's balance, the new position state, and the transaction
// record. The read-modify-write of the balance happens inside the database
// transaction, so two trades against the same account cannot produce a lost
// update.
func (s *Store) ExecuteTrade(ctx context.Context, userID uint, existing *models.Position, res ledger.TradeResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return fmt.Errorf("failed to load user %d: %w", userID, err)
		}

		user.CashBalance = user.CashBalance.Add(res.CashDelta)
		if err := tx.Save(&user).Error; err != nil {
			return fmt.Errorf("failed to settle cash for user %d: %w", userID, err)
		}

		if existing != nil {
			existing.Shares = res.Position.Shares
			existing.AvgPrice = res.Position.AvgPrice
			existing.BorrowRateAnnual = res.Position.BorrowRateAnnual
			if s.pruneZeroPositions && existing.Shares.IsZero() {
				// Hard delete: a soft-deleted row would keep holding the
				// unique (user, symbol, market) index and block re-opening.
				if err := tx.Unscoped().Delete(existing).Error; err != nil {
					return fmt.Errorf("failed to prune position: %w", err)
				}
			} else if err := tx.Save(existing).Error; err != nil {
				return fmt.Errorf("failed to save position: %w", err)
			}
		} else {
			pos := models.Position{
				UserID:           userID,
				Symbol:           res.Transaction.Symbol,
				Market:           res.Transaction.Market,
				Shares:           res.Position.Shares,
				AvgPrice:         res.Position.AvgPrice,
				BorrowRateAnnual: res.Position.BorrowRateAnnual,
			}
			if err := tx.Create(&pos).Error; err != nil {
				return fmt.Errorf("failed to create position: %w", err)
			}
		}

		record := res.Transaction
		record.UserID = userID
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}

		return nil
	})
}

// ApplyInterestCharge debits one interest charge against its owner's cash and
// stamps the position's accrual day, as a unit. Each charge commits
// independently so a failure does not roll back charges already applied.
func (s *Store) ApplyInterestCharge(ctx context.Context, charge ledger.InterestCharge, day string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, charge.UserID).Error; err != nil {
			return fmt.Errorf("failed to load user %d: %w", charge.UserID, err)
		}

		user.CashBalance = user.CashBalance.Sub(charge.Interest)
		if err := tx.Save(&user).Error; err != nil {
			return fmt.Errorf("failed to debit interest for user %d: %w", charge.UserID, err)
		}

		err := tx.Model(&models.Position{}).
			Where("user_id = ? AND symbol = ? AND market = ?", charge.UserID, charge.Symbol, charge.Market).
			Update("last_interest_day", day).Error
		if err != nil {
			return fmt.Errorf("failed to stamp accrual day: %w", err)
		}
		return nil
	})
}

// GetShortable fetches the shortable entry for a symbol. Returns nil when the
// symbol is not in the universe.
func (s *Store) GetShortable(ctx context.Context, symbol string) (*models.ShortableStock, error) {
	var entry models.ShortableStock
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shortable entry %q: %w", symbol, err)
	}
	return &entry, nil
}

// ListShortable returns the shortable universe, optionally filtered by
// market.
func (s *Store) ListShortable(ctx context.Context, market *models.Market) ([]models.ShortableStock, error) {
	q := s.db.WithContext(ctx)
	if market != nil {
		q = q.Where("market = ?", *market)
	}
	var entries []models.ShortableStock
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list shortable entries: %w", err)
	}
	return entries, nil
}

// UpsertShortable inserts or refreshes one shortable entry by symbol.
// Previously shortable symbols that are not reselected are left untouched.
func (s *Store) UpsertShortable(ctx context.Context, entry models.ShortableStock) error {
	entry.LastUpdated = time.Now().UTC()
	err := s.db.WithContext(ctx).Save(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert shortable entry %q: %w", entry.Symbol, err)
	}
	return nil
}

// ListTransactions returns a user's transaction log, most recent first.
func (s *Store) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %d: %w", userID, err)
	}
	return txs, nil
}

// AppendEquitySnapshot writes one equity snapshot. Snapshots are audit
// records and are never read back into live calculations.
func (s *Store) AppendEquitySnapshot(ctx context.Context, snap *models.EquitySnapshot) error {
	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to append equity snapshot: %w", err)
	}
	return nil
}
