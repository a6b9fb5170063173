package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/storage"
	"github.com/gold-portfolio/internal/types"
)

// Command names as exposed on the administrative surface
const (
	CommandAddEntry        = "add_portfolio_entry"
	CommandRemoveEntry     = "remove_portfolio_entry"
	CommandUpdateEntry     = "update_portfolio_entry"
	CommandListEntries     = "get_portfolio_entries"
	CommandHistoricalPrice = "get_historical_price"
)

// Input types. entry_id names the configured instance, portfolio_entry_id
// names a ledger entry within it.

// AddEntryCommand adds a purchase lot
type AddEntryCommand struct {
	EntryID              string   `json:"entry_id"`
	PurchaseDate         string   `json:"purchase_date"`
	AmountGrams          float64  `json:"amount_grams"`
	PurchasePriceEUR     *float64 `json:"purchase_price_eur,omitempty"`
	PurchasePricePerGram *float64 `json:"purchase_price_per_gram,omitempty"`
}

// RemoveEntryCommand removes a purchase lot
type RemoveEntryCommand struct {
	EntryID          string `json:"entry_id"`
	PortfolioEntryID string `json:"portfolio_entry_id"`
}

// UpdateEntryCommand changes the supplied fields of a purchase lot
type UpdateEntryCommand struct {
	EntryID          string   `json:"entry_id"`
	PortfolioEntryID string   `json:"portfolio_entry_id"`
	PurchaseDate     *string  `json:"purchase_date,omitempty"`
	AmountGrams      *float64 `json:"amount_grams,omitempty"`
	PurchasePriceEUR *float64 `json:"purchase_price_eur,omitempty"`
}

// ListEntriesCommand lists an instance's ledger
type ListEntriesCommand struct {
	EntryID string `json:"entry_id"`
}

// HistoricalPriceCommand looks up the price on a past date
type HistoricalPriceCommand struct {
	EntryID string `json:"entry_id"`
	Date    string `json:"date"`
}

// Output types

// EntriesResponse is the list entries payload
type EntriesResponse struct {
	Entries []models.Entry `json:"entries"`
}

// RemovedResponse is the remove entry payload
type RemovedResponse struct {
	PortfolioEntryID string `json:"portfolio_entry_id"`
	Removed          bool   `json:"removed"`
}

// HistoricalPriceResponse is the historical price payload
type HistoricalPriceResponse struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// CommandResult is the structured outcome of every command. Exactly one of
// Data and Error is set.
type CommandResult struct {
	Success  bool                `json:"success"`
	Data     interface{}         `json:"data,omitempty"`
	Error    *types.ServiceError `json:"error,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Status   int                 `json:"-"`
}

// CommandService executes administrative commands against the registry
type CommandService struct {
	registry *Registry
	logger   *logging.Logger
}

// NewCommandService creates a new command service
func NewCommandService(registry *Registry, logger *logging.Logger) *CommandService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &CommandService{
		registry: registry,
		logger:   logger.WithField("component", "commands"),
	}
}

// AddEntry adds a lot. When neither price form is given the current
// snapshot is used, converted to per-gram.
func (s *CommandService) AddEntry(ctx context.Context, cmd AddEntryCommand) CommandResult {
	return s.run(ctx, CommandAddEntry, cmd.EntryID, func(inst *Instance, logger *logging.Logger) (interface{}, error) {
		in := storage.AddEntryInput{
			PurchaseDate:         cmd.PurchaseDate,
			AmountGrams:          cmd.AmountGrams,
			PurchasePriceEUR:     cmd.PurchasePriceEUR,
			PurchasePricePerGram: cmd.PurchasePricePerGram,
		}

		if in.PurchasePriceEUR == nil && in.PurchasePricePerGram == nil {
			snap, ok := inst.Prices.Current()
			if !ok {
				return nil, apperrors.NewValidationError("purchase_price_eur",
					"no purchase price supplied and no current price is available")
			}
			perGram := PricePerGram(snap.Price)
			in.PurchasePricePerGram = &perGram
			logger.WithField("price_per_gram", round(perGram, perGramPlaces)).
				Warn("no purchase price provided, using current price as fallback")
		}

		entry, err := inst.Ledger.Add(in)
		if err != nil {
			return nil, err
		}
		logger.WithField("portfolio_entry_id", entry.ID).Info("added portfolio entry")
		return entry, nil
	})
}

// RemoveEntry removes a lot; an unknown lot is a not-found error
func (s *CommandService) RemoveEntry(ctx context.Context, cmd RemoveEntryCommand) CommandResult {
	return s.run(ctx, CommandRemoveEntry, cmd.EntryID, func(inst *Instance, logger *logging.Logger) (interface{}, error) {
		if cmd.PortfolioEntryID == "" {
			return nil, apperrors.NewValidationError("portfolio_entry_id", "is required")
		}
		if !inst.Ledger.Remove(cmd.PortfolioEntryID) {
			return nil, apperrors.NewNotFoundError("portfolio entry", cmd.PortfolioEntryID)
		}
		logger.WithField("portfolio_entry_id", cmd.PortfolioEntryID).Info("removed portfolio entry")
		return RemovedResponse{PortfolioEntryID: cmd.PortfolioEntryID, Removed: true}, nil
	})
}

// UpdateEntry changes the supplied fields of a lot
func (s *CommandService) UpdateEntry(ctx context.Context, cmd UpdateEntryCommand) CommandResult {
	return s.run(ctx, CommandUpdateEntry, cmd.EntryID, func(inst *Instance, logger *logging.Logger) (interface{}, error) {
		if cmd.PortfolioEntryID == "" {
			return nil, apperrors.NewValidationError("portfolio_entry_id", "is required")
		}
		entry, err := inst.Ledger.Update(cmd.PortfolioEntryID, storage.UpdateEntryInput{
			PurchaseDate:     cmd.PurchaseDate,
			AmountGrams:      cmd.AmountGrams,
			PurchasePriceEUR: cmd.PurchasePriceEUR,
		})
		if err != nil {
			return nil, err
		}
		logger.WithField("portfolio_entry_id", entry.ID).Info("updated portfolio entry")
		return entry, nil
	})
}

// ListEntries returns the ledger in insertion order
func (s *CommandService) ListEntries(ctx context.Context, cmd ListEntriesCommand) CommandResult {
	return s.run(ctx, CommandListEntries, cmd.EntryID, func(inst *Instance, logger *logging.Logger) (interface{}, error) {
		entries := inst.Ledger.List()
		if entries == nil {
			entries = []models.Entry{}
		}
		logger.Debugf("retrieved %d portfolio entries", len(entries))
		return EntriesResponse{Entries: entries}, nil
	})
}

// HistoricalPrice looks up the per-ounce price on a date without touching
// the current snapshot
func (s *CommandService) HistoricalPrice(ctx context.Context, cmd HistoricalPriceCommand) CommandResult {
	return s.run(ctx, CommandHistoricalPrice, cmd.EntryID, func(inst *Instance, logger *logging.Logger) (interface{}, error) {
		if _, err := time.Parse(storage.PurchaseDateLayout, cmd.Date); err != nil {
			return nil, apperrors.NewValidationError("date", "must be formatted as YYYY-MM-DD")
		}

		price, ok := inst.Prices.HistoricalPrice(ctx, cmd.Date)
		if !ok {
			logger.WithField("date", cmd.Date).Warn("historical price unavailable")
			return nil, apperrors.NewNotFoundError("historical price", cmd.Date)
		}
		logger.WithFields(map[string]interface{}{"date": cmd.Date, "price": price}).Info("historical price retrieved")
		return HistoricalPriceResponse{Date: cmd.Date, Price: price}, nil
	})
}

// run resolves the instance and converts every outcome, panics included,
// into a CommandResult
func (s *CommandService) run(
	_ context.Context,
	command string,
	instanceID string,
	fn func(inst *Instance, logger *logging.Logger) (interface{}, error),
) (result CommandResult) {
	logger := s.logger.WithField("command", command)
	if instanceID != "" {
		logger = logger.WithInstance(instanceID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("command panicked: %v", r)
			result = NewFailedResult(apperrors.NewInternalError("command failed", fmt.Errorf("panic: %v", r)))
		}
	}()

	inst, err := s.registry.Get(instanceID)
	if err != nil {
		logger.WithError(err).Warn("command rejected")
		return NewFailedResult(err)
	}

	data, err := fn(inst, logger)
	if err != nil {
		if apperrors.IsUserError(err) {
			logger.WithError(err).Warn("command rejected")
		} else {
			logger.WithError(err).Error("command failed")
		}
		return NewFailedResult(err)
	}

	result = CommandResult{Success: true, Data: data, Status: http.StatusOK}
	if perr := inst.Ledger.LastPersistError(); perr != nil && command != CommandListEntries && command != CommandHistoricalPrice {
		result.Warnings = append(result.Warnings, "ledger could not be saved, change kept in memory only")
	}
	return result
}

// NewFailedResult converts err into an unsuccessful CommandResult
func NewFailedResult(err error) CommandResult {
	catErr := apperrors.Categorize(err)
	return CommandResult{
		Success: false,
		Error:   catErr.ToServiceError(),
		Status:  catErr.StatusCode,
	}
}
