package store

import (
	"errors" // errors.Is for gorm.ErrRecordNotFound mapping
	"time"   // Spin timestamp

	"referral_system/internal/apperr" // Error taxonomy
	"referral_system/internal/domain" // Importing domain models

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Upsert clause for settings
)

// Stores bundles the gorm-backed implementations sharing one DB handle.
type Stores struct {
	Users       UserStore
	Edges       EdgeStore
	Txs         TransactionStore
	Deposits    DepositStore
	Withdrawals WithdrawalStore
	Settings    SettingStore
}

// NewGormStores binds every store interface to db.
func NewGormStores(db *gorm.DB) *Stores {
	return &Stores{
		Users:       &gormUsers{db: db},
		Edges:       &gormEdges{db: db},
		Txs:         &gormTxs{db: db},
		Deposits:    &gormDeposits{db: db},
		Withdrawals: &gormWithdrawals{db: db},
		Settings:    &gormSettings{db: db},
	}
}

// notFound maps gorm's record-not-found onto the apperr taxonomy.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what)
	}
	return err
}

type gormUsers struct{ db *gorm.DB }

func (s *gormUsers) Create(u *domain.User) error { return s.db.Create(u).Error }

func (s *gormUsers) ByID(id uint) (*domain.User, error) {
	var u domain.User
	if err := s.db.First(&u, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *gormUsers) ByUsername(username string) (*domain.User, error) {
	var u domain.User
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *gormUsers) ByReferralCode(code string) (*domain.User, error) {
	var u domain.User
	if err := s.db.Where("referral_code = ?", code).First(&u).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *gormUsers) Count() (int64, error) {
	var n int64
	err := s.db.Model(&domain.User{}).Count(&n).Error
	return n, err
}

func (s *gormUsers) Save(u *domain.User) error { return s.db.Save(u).Error }

func (s *gormUsers) UpdateAchievedLevels(userID uint, levels domain.LevelSet) error {
	return s.db.Model(&domain.User{}).Where("id = ?", userID).
		Update("achieved_levels", levels).Error
}

func (s *gormUsers) UpdateSpinState(userID uint, lastUsed time.Time) error {
	return s.db.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"spin_wheel_last_used": lastUsed,
			"spin_wheel_count":     gorm.Expr("spin_wheel_count + 1"),
		}).Error
}

func (s *gormUsers) UpdateActivationFlags(userID uint, active, paid, verified bool) error {
	return s.db.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"is_active":                     active,
			"registration_deposit_paid":     paid,
			"registration_deposit_verified": verified,
		}).Error
}

type gormEdges struct{ db *gorm.DB }

func (s *gormEdges) Create(e *domain.ReferralEdge) error { return s.db.Create(e).Error }

func (s *gormEdges) ByReferred(referredID uint) (*domain.ReferralEdge, error) {
	var e domain.ReferralEdge
	if err := s.db.Where("referred_id = ?", referredID).First(&e).Error; err != nil {
		return nil, notFound(err, "referral edge")
	}
	return &e, nil
}

func (s *gormEdges) CountByReferrer(referrerID uint) (int64, error) {
	var n int64
	err := s.db.Model(&domain.ReferralEdge{}).Where("referrer_id = ?", referrerID).Count(&n).Error
	return n, err
}

func (s *gormEdges) CountActiveBySide(referrerID uint) (int64, int64, error) {
	var left, right int64
	if err := s.db.Model(&domain.ReferralEdge{}).
		Where("referrer_id = ? AND side = ? AND is_active = ?", referrerID, domain.SideLeft, true).
		Count(&left).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.Model(&domain.ReferralEdge{}).
		Where("referrer_id = ? AND side = ? AND is_active = ?", referrerID, domain.SideRight, true).
		Count(&right).Error; err != nil {
		return 0, 0, err
	}
	return left, right, nil
}

func (s *gormEdges) ListByReferrer(referrerID uint) ([]domain.ReferralEdge, error) {
	var edges []domain.ReferralEdge
	err := s.db.Where("referrer_id = ?", referrerID).Order("created_at asc").Find(&edges).Error
	return edges, err
}

func (s *gormEdges) Save(e *domain.ReferralEdge) error { return s.db.Save(e).Error }

type gormTxs struct{ db *gorm.DB }

func (s *gormTxs) Create(t *domain.Transaction) error { return s.db.Create(t).Error }

func (s *gormTxs) ByID(id uint) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, notFound(err, "transaction")
	}
	return &t, nil
}

func (s *gormTxs) Save(t *domain.Transaction) error { return s.db.Save(t).Error }

func (s *gormTxs) ListByUser(userID uint, offset, limit int) ([]domain.Transaction, int64, error) {
	var total int64
	if err := s.db.Model(&domain.Transaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.Transaction
	err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&txs).Error
	return txs, total, err
}

type gormDeposits struct{ db *gorm.DB }

func (s *gormDeposits) Create(d *domain.Deposit) error { return s.db.Create(d).Error }

func (s *gormDeposits) ByID(id uint) (*domain.Deposit, error) {
	var d domain.Deposit
	if err := s.db.First(&d, id).Error; err != nil {
		return nil, notFound(err, "deposit")
	}
	return &d, nil
}

func (s *gormDeposits) Save(d *domain.Deposit) error { return s.db.Save(d).Error }

type gormWithdrawals struct{ db *gorm.DB }

func (s *gormWithdrawals) Create(w *domain.Withdrawal) error { return s.db.Create(w).Error }

func (s *gormWithdrawals) ByID(id uint) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := s.db.First(&w, id).Error; err != nil {
		return nil, notFound(err, "withdrawal")
	}
	return &w, nil
}

func (s *gormWithdrawals) Save(w *domain.Withdrawal) error { return s.db.Save(w).Error }

type gormSettings struct{ db *gorm.DB }

func (s *gormSettings) FindByKeys(keys []string) ([]domain.Setting, error) {
	var settings []domain.Setting
	err := s.db.Where("`key` IN ?", keys).Find(&settings).Error
	return settings, err
}

func (s *gormSettings) Upsert(key, value, description string) error {
	setting := domain.Setting{Key: key, Value: value, Description: description}
	// Insert or update the value/description in place on key conflict
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(&setting).Error
}
