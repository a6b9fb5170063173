package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func stringPtr(v string) *string  { return &v }

var fixedTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, opts ...LedgerStoreOption) (*LedgerStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gold_portfolio_main.json")
	opts = append([]LedgerStoreOption{WithClock(func() time.Time { return fixedTime })}, opts...)
	return NewLedgerStore(path, logging.Discard(), opts...), path
}

func TestLedgerStore_AddPersists(t *testing.T) {
	store, path := newTestLedger(t)

	entry, err := store.Add(AddEntryInput{
		PurchaseDate:     "2024-01-01",
		AmountGrams:      10,
		PurchasePriceEUR: floatPtr(600),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "2024-01-01", entry.PurchaseDate)
	assert.Equal(t, fixedTime, entry.CreatedAt)
	assert.Equal(t, 10.0, store.TotalGrams())
	assert.Equal(t, 600.0, store.TotalInvestmentEUR())
	assert.NoError(t, store.LastPersistError())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc models.LedgerDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, entry.ID, doc.Entries[0].ID)
}

func TestLedgerStore_AddPerGramPrice(t *testing.T) {
	store, _ := newTestLedger(t)

	entry, err := store.Add(AddEntryInput{
		PurchaseDate:         "2024-02-01",
		AmountGrams:          2.5,
		PurchasePricePerGram: floatPtr(60),
	})
	require.NoError(t, err)
	assert.Equal(t, 150.0, entry.PurchasePriceEUR)
}

func TestLedgerStore_AddValidation(t *testing.T) {
	tests := []struct {
		name  string
		input AddEntryInput
		field string
	}{
		{
			name:  "zero grams",
			input: AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 0, PurchasePriceEUR: floatPtr(1)},
			field: "amount_grams",
		},
		{
			name:  "negative grams",
			input: AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: -1, PurchasePriceEUR: floatPtr(1)},
			field: "amount_grams",
		},
		{
			name:  "NaN grams",
			input: AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: math.NaN(), PurchasePriceEUR: floatPtr(1)},
			field: "amount_grams",
		},
		{
			name:  "negative price",
			input: AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1, PurchasePriceEUR: floatPtr(-5)},
			field: "purchase_price_eur",
		},
		{
			name:  "negative per-gram price",
			input: AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1, PurchasePricePerGram: floatPtr(-5)},
			field: "purchase_price_per_gram",
		},
		{
			name:  "both prices",
			input: AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1, PurchasePriceEUR: floatPtr(5), PurchasePricePerGram: floatPtr(5)},
			field: "purchase_price_eur",
		},
		{
			name:  "no price",
			input: AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1},
			field: "purchase_price_eur",
		},
		{
			name:  "bad date",
			input: AddEntryInput{PurchaseDate: "01/01/2024", AmountGrams: 1, PurchasePriceEUR: floatPtr(5)},
			field: "purchase_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestLedger(t)

			_, err := store.Add(tt.input)
			require.Error(t, err)

			catErr := apperrors.Categorize(err)
			assert.Equal(t, apperrors.CategoryValidation, catErr.Category)
			assert.Equal(t, tt.field, catErr.Details["parameter"])
			assert.Zero(t, store.Len())
		})
	}
}

func TestLedgerStore_Update(t *testing.T) {
	store, path := newTestLedger(t)
	entry, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 10, PurchasePriceEUR: floatPtr(600)})
	require.NoError(t, err)

	updated, err := store.Update(entry.ID, UpdateEntryInput{AmountGrams: floatPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, 12.0, updated.AmountGrams)
	assert.Equal(t, 600.0, updated.PurchasePriceEUR)
	assert.Equal(t, "2024-01-01", updated.PurchaseDate)
	assert.Equal(t, entry.CreatedAt, updated.CreatedAt)

	updated, err = store.Update(entry.ID, UpdateEntryInput{
		PurchaseDate:     stringPtr("2023-12-31"),
		PurchasePriceEUR: floatPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", updated.PurchaseDate)
	assert.Equal(t, 0.0, updated.PurchasePriceEUR)

	unchanged, err := store.Update(entry.ID, UpdateEntryInput{})
	require.NoError(t, err)
	assert.Equal(t, updated, unchanged)

	reloaded := NewLedgerStore(path, logging.Discard())
	got, ok := reloaded.Get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, updated, got)
}

func TestLedgerStore_UpdateRejectsBeforeApplying(t *testing.T) {
	store, _ := newTestLedger(t)
	entry, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 10, PurchasePriceEUR: floatPtr(600)})
	require.NoError(t, err)

	_, err = store.Update(entry.ID, UpdateEntryInput{
		PurchaseDate: stringPtr("2024-02-02"),
		AmountGrams:  floatPtr(-1),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))

	got, _ := store.Get(entry.ID)
	assert.Equal(t, entry, got)
}

func TestLedgerStore_UpdateNotFound(t *testing.T) {
	store, _ := newTestLedger(t)

	_, err := store.Update("missing", UpdateEntryInput{AmountGrams: floatPtr(1)})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))
}

func TestLedgerStore_RemoveNonexistent(t *testing.T) {
	store, _ := newTestLedger(t)
	_, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 10, PurchasePriceEUR: floatPtr(600)})
	require.NoError(t, err)

	assert.False(t, store.Remove("nonexistent"))
	assert.Equal(t, 1, store.Len())
}

func TestLedgerStore_RemovePreservesOrder(t *testing.T) {
	store, _ := newTestLedger(t)

	var ids []string
	for i := 1; i <= 3; i++ {
		e, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: float64(i), PurchasePriceEUR: floatPtr(1)})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	assert.True(t, store.Remove(ids[1]))

	entries := store.List()
	require.Len(t, entries, 2)
	assert.Equal(t, ids[0], entries[0].ID)
	assert.Equal(t, ids[2], entries[1].ID)
}

func TestLedgerStore_ListIsACopy(t *testing.T) {
	store, _ := newTestLedger(t)
	_, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 10, PurchasePriceEUR: floatPtr(600)})
	require.NoError(t, err)

	entries := store.List()
	entries[0].AmountGrams = 999

	assert.Equal(t, 10.0, store.List()[0].AmountGrams)
}

func TestLedgerStore_RoundTrip(t *testing.T) {
	store, path := newTestLedger(t)
	for i := 0; i < 5; i++ {
		_, err := store.Add(AddEntryInput{
			PurchaseDate:     fmt.Sprintf("2024-01-%02d", i+1),
			AmountGrams:      float64(i) + 0.5,
			PurchasePriceEUR: floatPtr(float64(i) * 33.3),
		})
		require.NoError(t, err)
	}

	reloaded := NewLedgerStore(path, logging.Discard())
	assert.Equal(t, store.List(), reloaded.List())

	// saving the reloaded ledger unchanged is idempotent
	require.NoError(t, writeLedgerFile(path, models.LedgerDocument{Entries: reloaded.List()}))
	again := NewLedgerStore(path, logging.Discard())
	assert.Equal(t, store.List(), again.List())
}

func TestLedgerStore_UnreadableFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()

	malformed := filepath.Join(dir, "malformed.json")
	require.NoError(t, os.WriteFile(malformed, []byte(`{"entries": [`), 0o644))

	// a directory at the ledger path cannot be read as a file
	unreadable := filepath.Join(dir, "unreadable.json")
	require.NoError(t, os.Mkdir(unreadable, 0o755))

	for _, path := range []string{malformed, unreadable} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLogger(logging.LevelInfo, logging.FormatText)
			logger.SetOutput(&buf)

			store := NewLedgerStore(path, logger)
			assert.Zero(t, store.Len())
			assert.Error(t, store.LoadError())
			assert.Contains(t, buf.String(), "warn:")
		})
	}
}

func TestLedgerStore_MissingFileWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.LevelWarn, logging.FormatText)
	logger.SetOutput(&buf)

	store := NewLedgerStore(filepath.Join(t.TempDir(), "absent.json"), logger)
	assert.Zero(t, store.Len())
	assert.NoError(t, store.LoadError())
	assert.Contains(t, buf.String(), "no ledger file yet")
}

func TestLedgerStore_LoadSkipsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	content := `{"entries":[
		{"id":"a","purchase_date":"2024-01-01","amount_grams":1,"purchase_price_eur":10,"created_at":"2024-01-01T00:00:00Z"},
		{"id":"a","purchase_date":"2024-01-02","amount_grams":2,"purchase_price_eur":20,"created_at":"2024-01-02T00:00:00Z"},
		{"id":"","purchase_date":"2024-01-03","amount_grams":3,"purchase_price_eur":30,"created_at":"2024-01-03T00:00:00Z"},
		{"id":"b","purchase_date":"2024-01-04","amount_grams":0,"purchase_price_eur":30,"created_at":"2024-01-04T00:00:00Z"},
		{"id":"c","purchase_date":"2024-01-05","amount_grams":5,"purchase_price_eur":50,"created_at":"2024-01-05T00:00:00Z"}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := NewLedgerStore(path, logging.Discard())
	entries := store.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, 1.0, entries[0].AmountGrams)
	assert.Equal(t, "c", entries[1].ID)
}

func TestLedgerStore_PersistFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.LevelInfo, logging.FormatText)
	logger.SetOutput(&buf)

	store := NewLedgerStore(filepath.Join(blocker, "ledger.json"), logger)
	entry, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1, PurchasePriceEUR: floatPtr(50)})
	require.NoError(t, err)

	got, ok := store.Get(entry.ID)
	assert.True(t, ok)
	assert.Equal(t, entry, got)

	persistErr := store.LastPersistError()
	require.Error(t, persistErr)
	assert.True(t, apperrors.IsCategory(persistErr, apperrors.CategoryPersistence))
	assert.Contains(t, buf.String(), "failed to persist ledger")
}

func TestLedgerStore_NoTempFilesLeftBehind(t *testing.T) {
	store, path := newTestLedger(t)
	for i := 0; i < 3; i++ {
		_, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1, PurchasePriceEUR: floatPtr(1)})
		require.NoError(t, err)
	}

	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Base(path), files[0].Name())
}

func TestLedgerStore_UniqueIDs(t *testing.T) {
	store, _ := newTestLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1, PurchasePriceEUR: floatPtr(1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, e := range store.List() {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
	assert.Len(t, seen, 20)
}

func TestLedgerStore_ConcurrentMutationsPersist(t *testing.T) {
	store, path := newTestLedger(t)

	seeded := make([]string, 10)
	for i := range seeded {
		e, err := store.Add(AddEntryInput{PurchaseDate: "2023-06-01", AmountGrams: 1, PurchasePriceEUR: floatPtr(50)})
		require.NoError(t, err)
		seeded[i] = e.ID
	}

	var wg sync.WaitGroup
	for _, id := range seeded {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			assert.True(t, store.Remove(id))
		}(id)
		go func() {
			defer wg.Done()
			_, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 2, PurchasePriceEUR: floatPtr(120)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, store.LastPersistError())
	require.Equal(t, 10, store.Len())
	for _, id := range seeded {
		_, ok := store.Get(id)
		assert.False(t, ok)
	}

	reloaded := NewLedgerStore(path, logging.Discard())
	assert.Equal(t, store.List(), reloaded.List())
	assert.InDelta(t, 20.0, reloaded.TotalGrams(), 1e-9)
	assert.InDelta(t, 1200.0, reloaded.TotalInvestmentEUR(), 1e-9)
}

func TestLedgerStore_IDGeneratorFailure(t *testing.T) {
	store, _ := newTestLedger(t, WithIDGenerator(func() (string, error) {
		return "", fmt.Errorf("entropy exhausted")
	}))

	_, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 1, PurchasePriceEUR: floatPtr(1)})
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

// LedgerOp is one generated mutation against the store
type LedgerOp struct {
	Kind  int
	Grams float64
	Price float64
	Pick  int
}

func TestLedgerStore_TotalsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	parameters.MaxSize = 15
	properties := gopter.NewProperties(parameters)

	dir := t.TempDir()
	run := 0

	opGen := gen.Struct(reflect.TypeOf(LedgerOp{}), map[string]gopter.Gen{
		"Kind":  gen.IntRange(0, 2),
		"Grams": gen.Float64Range(0.01, 1000),
		"Price": gen.Float64Range(0, 100000),
		"Pick":  gen.IntRange(0, 100),
	})

	properties.Property("totals equal sums over present entries", prop.ForAll(
		func(ops []LedgerOp) bool {
			run++
			store := NewLedgerStore(filepath.Join(dir, fmt.Sprintf("ledger_%d.json", run)), logging.Discard())

			var model []models.Entry
			for _, op := range ops {
				switch op.Kind {
				case 0:
					e, err := store.Add(AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: op.Grams, PurchasePriceEUR: floatPtr(op.Price)})
					if err != nil {
						return false
					}
					model = append(model, e)
				case 1:
					if len(model) == 0 {
						continue
					}
					i := op.Pick % len(model)
					e, err := store.Update(model[i].ID, UpdateEntryInput{AmountGrams: floatPtr(op.Grams), PurchasePriceEUR: floatPtr(op.Price)})
					if err != nil {
						return false
					}
					model[i] = e
				case 2:
					if len(model) == 0 {
						continue
					}
					i := op.Pick % len(model)
					if !store.Remove(model[i].ID) {
						return false
					}
					model = append(model[:i], model[i+1:]...)
				}
			}

			var grams, investment float64
			for _, e := range model {
				grams += e.AmountGrams
				investment += e.PurchasePriceEUR
			}

			return store.Len() == len(model) &&
				math.Abs(store.TotalGrams()-grams) < 1e-9 &&
				math.Abs(store.TotalInvestmentEUR()-investment) < 1e-6
		},
		gen.SliceOf(opGen),
	))

	properties.TestingRun(t)
}
