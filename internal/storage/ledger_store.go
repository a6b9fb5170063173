package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/models"
)

// PurchaseDateLayout is the accepted purchase date format
const PurchaseDateLayout = "2006-01-02"

// AddEntryInput describes a new purchase lot. Exactly one of the two price
// forms must be set.
type AddEntryInput struct {
	PurchaseDate         string
	AmountGrams          float64
	PurchasePriceEUR     *float64
	PurchasePricePerGram *float64
}

// UpdateEntryInput carries the fields to change; nil fields are left alone
type UpdateEntryInput struct {
	PurchaseDate     *string
	AmountGrams      *float64
	PurchasePriceEUR *float64
}

// LedgerStoreOption customizes a LedgerStore
type LedgerStoreOption func(*LedgerStore)

// WithClock overrides the creation timestamp source
func WithClock(now func() time.Time) LedgerStoreOption {
	return func(s *LedgerStore) { s.now = now }
}

// WithIDGenerator overrides entry id generation
func WithIDGenerator(newID func() (string, error)) LedgerStoreOption {
	return func(s *LedgerStore) { s.newID = newID }
}

// LedgerStore is the system of record for one instance's purchase lots.
// Every mutation rewrites the whole ledger file under the store mutex.
type LedgerStore struct {
	mu             sync.Mutex
	path           string
	entries        []models.Entry
	loadErr        error
	lastPersistErr error

	logger *logging.Logger
	now    func() time.Time
	newID  func() (string, error)
}

// NewLedgerStore loads the ledger at path. A missing or unreadable file
// yields an empty ledger; construction never fails on file content. Use
// LoadError to tell an unreadable file from a missing one.
func NewLedgerStore(path string, logger *logging.Logger, opts ...LedgerStoreOption) *LedgerStore {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &LedgerStore{
		path:    path,
		entries: []models.Entry{},
		logger:  logger.WithFields(map[string]interface{}{"component": "ledger_store", "path": path}),
		now:     time.Now,
		newID:   newEntryID,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load()
	return s
}

func newEntryID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *LedgerStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("no ledger file yet, starting empty")
			return
		}
		s.loadErr = fmt.Errorf("read ledger %s: %w", s.path, err)
		s.logger.WithError(err).Warn("could not read ledger file, starting empty")
		return
	}

	var doc models.LedgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.loadErr = fmt.Errorf("decode ledger %s: %w", s.path, err)
		s.logger.WithError(err).Warn("malformed ledger file, starting empty")
		return
	}

	seen := make(map[string]bool, len(doc.Entries))
	for _, e := range doc.Entries {
		if e.ID == "" || seen[e.ID] {
			s.logger.WithField("entry_id", e.ID).Warn("skipping ledger entry with missing or duplicate id")
			continue
		}
		if !(e.AmountGrams > 0) || !(e.PurchasePriceEUR >= 0) {
			s.logger.WithField("entry_id", e.ID).Warn("skipping ledger entry with invalid amounts")
			continue
		}
		seen[e.ID] = true
		s.entries = append(s.entries, e)
	}

	s.logger.Debugf("loaded %d ledger entries", len(s.entries))
}

// LoadError reports why an existing ledger file could not be loaded. It is
// nil when the file was loaded or did not exist. The next mutation
// overwrites such a file.
func (s *LedgerStore) LoadError() error {
	return s.loadErr
}

// Path returns the ledger file location
func (s *LedgerStore) Path() string {
	return s.path
}

// Add records a new purchase lot
func (s *LedgerStore) Add(in AddEntryInput) (models.Entry, error) {
	total, err := validateAdd(in)
	if err != nil {
		return models.Entry{}, err
	}

	id, err := s.newID()
	if err != nil {
		return models.Entry{}, apperrors.NewInternalError("failed to generate entry id", err)
	}

	entry := models.Entry{
		ID:               id,
		PurchaseDate:     in.PurchaseDate,
		AmountGrams:      in.AmountGrams,
		PurchasePriceEUR: total,
		CreatedAt:        s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.persistLocked("add")

	s.logger.WithField("entry_id", entry.ID).Debug("added ledger entry")
	return entry, nil
}

// Update applies a partial change to an existing entry
func (s *LedgerStore) Update(id string, in UpdateEntryInput) (models.Entry, error) {
	if err := validateUpdate(in); err != nil {
		return models.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Entry{}, apperrors.NewNotFoundError("entry", id)
	}

	if in.PurchaseDate == nil && in.AmountGrams == nil && in.PurchasePriceEUR == nil {
		return s.entries[idx], nil
	}

	entry := s.entries[idx]
	if in.PurchaseDate != nil {
		entry.PurchaseDate = *in.PurchaseDate
	}
	if in.AmountGrams != nil {
		entry.AmountGrams = *in.AmountGrams
	}
	if in.PurchasePriceEUR != nil {
		entry.PurchasePriceEUR = *in.PurchasePriceEUR
	}
	s.entries[idx] = entry
	s.persistLocked("update")

	s.logger.WithField("entry_id", id).Debug("updated ledger entry")
	return entry, nil
}

// Remove deletes the entry with id and reports whether it existed
func (s *LedgerStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}

	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	s.persistLocked("remove")

	s.logger.WithField("entry_id", id).Debug("removed ledger entry")
	return true
}

// Get returns the entry with id
func (s *LedgerStore) Get(id string) (models.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Entry{}, false
	}
	return s.entries[idx], true
}

// List returns a copy of all entries in insertion order
func (s *LedgerStore) List() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries
func (s *LedgerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// TotalGrams sums amount_grams over current entries
func (s *LedgerStore) TotalGrams() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, e := range s.entries {
		total += e.AmountGrams
	}
	return total
}

// TotalInvestmentEUR sums purchase_price_eur over current entries
func (s *LedgerStore) TotalInvestmentEUR() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, e := range s.entries {
		total += e.PurchasePriceEUR
	}
	return total
}

// LastPersistError returns the error from the most recent write, or nil
// once a later write succeeds.
func (s *LedgerStore) LastPersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPersistErr
}

func (s *LedgerStore) indexLocked(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the ledger. A failed write keeps the in-memory
// change and is only logged.
func (s *LedgerStore) persistLocked(op string) {
	if err := writeLedgerFile(s.path, models.LedgerDocument{Entries: s.entries}); err != nil {
		s.lastPersistErr = apperrors.NewPersistenceError(op, err)
		s.logger.WithError(err).WithField("operation", op).
			Warn("failed to persist ledger, continuing in memory")
		return
	}
	s.lastPersistErr = nil
}

// writeLedgerFile replaces path atomically via a synced temp file in the
// same directory.
func writeLedgerFile(path string, doc models.LedgerDocument) (err error) {
	if doc.Entries == nil {
		doc.Entries = []models.Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func validateAdd(in AddEntryInput) (float64, error) {
	if err := validateDate(in.PurchaseDate); err != nil {
		return 0, err
	}
	if err := validateGrams(in.AmountGrams); err != nil {
		return 0, err
	}

	switch {
	case in.PurchasePriceEUR != nil && in.PurchasePricePerGram != nil:
		return 0, apperrors.NewValidationError("purchase_price_eur", "supply either a total or a per-gram price, not both")
	case in.PurchasePriceEUR != nil:
		if err := validatePrice("purchase_price_eur", *in.PurchasePriceEUR); err != nil {
			return 0, err
		}
		return *in.PurchasePriceEUR, nil
	case in.PurchasePricePerGram != nil:
		if err := validatePrice("purchase_price_per_gram", *in.PurchasePricePerGram); err != nil {
			return 0, err
		}
		return *in.PurchasePricePerGram * in.AmountGrams, nil
	default:
		return 0, apperrors.NewValidationError("purchase_price_eur", "a total or per-gram price is required")
	}
}

func validateUpdate(in UpdateEntryInput) error {
	if in.PurchaseDate != nil {
		if err := validateDate(*in.PurchaseDate); err != nil {
			return err
		}
	}
	if in.AmountGrams != nil {
		if err := validateGrams(*in.AmountGrams); err != nil {
			return err
		}
	}
	if in.PurchasePriceEUR != nil {
		if err := validatePrice("purchase_price_eur", *in.PurchasePriceEUR); err != nil {
			return err
		}
	}
	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse(PurchaseDateLayout, date); err != nil {
		return apperrors.NewValidationError("purchase_date", "must be a YYYY-MM-DD date")
	}
	return nil
}

func validateGrams(grams float64) error {
	if math.IsNaN(grams) || math.IsInf(grams, 0) || grams <= 0 {
		return apperrors.NewValidationError("amount_grams", "must be greater than 0")
	}
	return nil
}

func validatePrice(field string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return apperrors.NewValidationError(field, "must be 0 or greater")
	}
	return nil
}
