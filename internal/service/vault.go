package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/package/logger"
	"github.com/vova4o/otpexport/package/passwordhash"
	"github.com/vova4o/otpexport/package/sealer"
)

var (
	// ErrWrongMasterPassword is returned when the master password does not match the stored hash
	ErrWrongMasterPassword = errors.New("wrong master password")
	// ErrVaultLocked is returned when the vault is used before Unlock
	ErrVaultLocked = errors.New("vault is locked")
	// ErrAccountNotFound is returned when no account has the given id
	ErrAccountNotFound = errors.New("account not found")
)

// Storager interface
type Storager interface {
	GetMasterKey(ctx context.Context) (*models.MasterKey, error)
	StoreMasterKey(ctx context.Context, key models.MasterKey) error
	SaveAccounts(ctx context.Context, accounts []models.StoredAccount) error
	ListAccounts(ctx context.Context) ([]models.StoredAccount, error)
	DeleteAccount(ctx context.Context, id string) (bool, error)
}

// Vault keeps extracted accounts with their secrets sealed under the master password
type Vault struct {
	stor   Storager
	logger *logger.Logger

	mu  sync.RWMutex
	key []byte
}

// NewVault creates new vault instance
func NewVault(stor Storager, logger *logger.Logger) *Vault {
	return &Vault{
		stor:   stor,
		logger: logger,
	}
}

// Unlock проверяет или сохраняет мастер-пароль и выводит ключ шифрования.
// It reports true when the password was stored for the first time.
func (v *Vault) Unlock(ctx context.Context, masterPassword string) (bool, error) {
	stored, err := v.stor.GetMasterKey(ctx)
	if err != nil {
		v.logger.Error("Failed to check master password: " + err.Error())
		return false, err
	}

	created := false
	if stored == nil {
		v.logger.Info("Master password not found, storing...")
		hash, err := passwordhash.HashMasterPassword(masterPassword)
		if err != nil {
			v.logger.Error("Failed to hash master password: " + err.Error())
			return false, err
		}
		salt, err := sealer.NewSalt()
		if err != nil {
			v.logger.Error("Failed to create salt: " + err.Error())
			return false, err
		}
		stored = &models.MasterKey{Hash: hash, Salt: salt}
		if err := v.stor.StoreMasterKey(ctx, *stored); err != nil {
			v.logger.Error("Failed to store master password: " + err.Error())
			return false, err
		}
		created = true
	} else if !passwordhash.CheckMasterPassword(masterPassword, stored.Hash) {
		v.logger.Warning("Wrong master password")
		return false, ErrWrongMasterPassword
	}

	key, err := sealer.DeriveKey(masterPassword, stored.Salt)
	if err != nil {
		v.logger.Error("Failed to derive key: " + err.Error())
		return false, err
	}

	v.mu.Lock()
	v.key = key
	v.mu.Unlock()

	v.logger.Info("Vault unlocked")
	return created, nil
}

// Lock forgets the derived key
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.key = nil
}

func (v *Vault) currentKey() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return nil, ErrVaultLocked
	}
	return v.key, nil
}

// Save seals and stores records in order and returns their new ids
func (v *Vault) Save(ctx context.Context, records []models.AccountRecord) ([]string, error) {
	key, err := v.currentKey()
	if err != nil {
		return nil, err
	}

	accounts := make([]models.StoredAccount, 0, len(records))
	ids := make([]string, 0, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("account %d: %w", i+1, err)
		}
		sealed, err := sealer.Seal(rec.Secret, key)
		if err != nil {
			v.logger.Error("Failed to seal secret: " + err.Error())
			return nil, err
		}
		id := uuid.NewString()
		accounts = append(accounts, models.StoredAccount{
			ID:           id,
			Issuer:       rec.Issuer,
			Name:         rec.Name,
			OtpType:      rec.OtpType,
			Algorithm:    rec.Algorithm,
			Digits:       rec.Digits,
			Period:       rec.Period,
			Counter:      rec.Counter,
			SealedSecret: sealed,
		})
		ids = append(ids, id)
	}

	if err := v.stor.SaveAccounts(ctx, accounts); err != nil {
		v.logger.Error("Failed to save accounts: " + err.Error())
		return nil, err
	}
	return ids, nil
}

// List returns the stored accounts with opened secrets, ordered by position
func (v *Vault) List(ctx context.Context) ([]models.VaultAccount, error) {
	key, err := v.currentKey()
	if err != nil {
		return nil, err
	}

	stored, err := v.stor.ListAccounts(ctx)
	if err != nil {
		v.logger.Error("Failed to list accounts: " + err.Error())
		return nil, err
	}

	out := make([]models.VaultAccount, 0, len(stored))
	for _, a := range stored {
		secret, err := sealer.Open(a.SealedSecret, key)
		if err != nil {
			v.logger.Error("Failed to open secret of account " + a.ID + ": " + err.Error())
			return nil, err
		}
		out = append(out, models.VaultAccount{
			ID:        a.ID,
			Position:  a.Position,
			CreatedAt: a.CreatedAt,
			Record: models.AccountRecord{
				Issuer:    a.Issuer,
				Name:      a.Name,
				Secret:    secret,
				OtpType:   a.OtpType,
				Algorithm: a.Algorithm,
				Digits:    a.Digits,
				Period:    a.Period,
				Counter:   a.Counter,
			},
		})
	}
	return out, nil
}

// Delete removes the account with id
func (v *Vault) Delete(ctx context.Context, id string) error {
	if _, err := v.currentKey(); err != nil {
		return err
	}

	ok, err := v.stor.DeleteAccount(ctx, id)
	if err != nil {
		v.logger.Error("Failed to delete account: " + err.Error())
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return nil
}
