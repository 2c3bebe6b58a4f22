package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/db"
	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/solana"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handleAddLiquidity returns a handler that deposits into the cached pool.
// POST /api/v1/liquidity/add
func handleAddLiquidity(svc LiquidityService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req liquidity.AddRequest
		if !decodeRequest(w, r, &req, logger) {
			return
		}
		if !checkOptionalPool(w, req.PoolID, logger) {
			return
		}

		op, err := svc.AddLiquidity(r.Context(), req)
		writeOperation(w, op, err, logger)
	})
}

// handleRemoveLiquidity returns a handler that withdraws from the cached pool.
// POST /api/v1/liquidity/remove
func handleRemoveLiquidity(svc LiquidityService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req liquidity.RemoveRequest
		if !decodeRequest(w, r, &req, logger) {
			return
		}
		if !checkOptionalPool(w, req.PoolID, logger) {
			return
		}

		op, err := svc.RemoveLiquidity(r.Context(), req)
		writeOperation(w, op, err, logger)
	})
}

// handleAddRemoveLiquidity returns a handler that deposits and withdraws in
// one transaction.
// POST /api/v1/liquidity/add-remove
func handleAddRemoveLiquidity(svc LiquidityService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req liquidity.AddRemoveRequest
		if !decodeRequest(w, r, &req, logger) {
			return
		}
		if !checkOptionalPool(w, req.PoolID, logger) {
			return
		}

		op, err := svc.AddRemoveLiquidity(r.Context(), req)
		writeOperation(w, op, err, logger)
	})
}

// handleGetPool returns a handler that reads live pool state.
// GET /api/v1/pools/{pool_id}
func handleGetPool(svc LiquidityService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		poolID := r.PathValue("pool_id")
		if err := validateAddress(poolID); err != nil {
			logger.Debug("invalid pool id", "pool_id", poolID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		state, err := svc.PoolState(r.Context(), poolID)
		if err != nil {
			status := statusForError(err)
			logger.Error("failed to fetch pool state", "pool_id", poolID, "status", status, "error", err)
			writeError(w, err.Error(), status)
			return
		}

		writeJSON(w, state, http.StatusOK)
	})
}

// handleListOperations returns a handler that lists journaled operations.
// GET /api/v1/operations?pool_id=ID&limit=N&offset=N
func handleListOperations(store OperationStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "operation journal is not configured", http.StatusServiceUnavailable)
			return
		}

		query := r.URL.Query()
		poolID := query.Get("pool_id")
		if poolID != "" {
			if err := validateAddress(poolID); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		// Parse limit (default 50, max 1000)
		limit := int32(50)
		if limitStr := query.Get("limit"); limitStr != "" {
			var parsedLimit int
			if _, err := fmt.Sscanf(limitStr, "%d", &parsedLimit); err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedLimit < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsedLimit > 1000 {
				writeError(w, "limit cannot exceed 1000", http.StatusBadRequest)
				return
			}
			limit = int32(parsedLimit)
		}

		// Parse offset (default 0)
		offset := int32(0)
		if offsetStr := query.Get("offset"); offsetStr != "" {
			var parsedOffset int
			if _, err := fmt.Sscanf(offsetStr, "%d", &parsedOffset); err != nil {
				writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedOffset < 0 {
				writeError(w, "offset cannot be negative", http.StatusBadRequest)
				return
			}
			offset = int32(parsedOffset)
		}

		ops, err := store.ListOperations(r.Context(), db.ListOperationsParams{
			PoolID: poolID,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			logger.Error("failed to list operations", "pool_id", poolID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("operations listed", "pool_id", poolID, "count", len(ops))

		writeJSON(w, map[string]interface{}{
			"operations": ops,
			"count":      len(ops),
			"limit":      limit,
			"offset":     offset,
		}, http.StatusOK)
	})
}

// handleGetOperation returns a handler that fetches one journaled operation.
// GET /api/v1/operations/{id}
func handleGetOperation(store OperationStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "operation journal is not configured", http.StatusServiceUnavailable)
			return
		}

		id := r.PathValue("id")
		op, err := store.GetOperation(r.Context(), id)
		if errors.Is(err, db.ErrOperationNotFound) {
			writeError(w, "operation not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get operation", "id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, op, http.StatusOK)
	})
}

// decodeRequest reads a size-limited JSON body into dst, writing a 400 on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logger.Debug("failed to decode request", "error", err)
		if strings.Contains(err.Error(), "http: request body too large") {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		if errors.Is(err, io.EOF) {
			writeError(w, "request body is required", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func checkOptionalPool(w http.ResponseWriter, poolID string, logger *slog.Logger) bool {
	if poolID == "" {
		return true
	}
	if err := validateAddress(poolID); err != nil {
		logger.Debug("invalid pool id", "pool_id", poolID, "error", err)
		writeError(w, "invalid pool_id: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeOperation writes the operation report, or maps err to a status.
// Simulation and submission failures are part of a 200 report.
func writeOperation(w http.ResponseWriter, op *liquidity.Operation, err error, logger *slog.Logger) {
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("liquidity operation failed", "status", status, "error", err)
		} else {
			logger.Info("liquidity operation rejected", "status", status, "error", err)
		}
		writeError(w, err.Error(), status)
		return
	}
	writeJSON(w, op, http.StatusOK)
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var delegation *liquidity.DelegationError
	switch {
	case liquidity.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, solana.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, cache.ErrIDMismatch),
		errors.Is(err, cache.ErrMalformed),
		errors.Is(err, cache.ErrRead),
		errors.Is(err, liquidity.ErrPoolMismatch):
		return http.StatusConflict
	case errors.As(err, &delegation),
		errors.Is(err, liquidity.ErrNoInstructions),
		errors.Is(err, liquidity.ErrZeroMultiplier):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates an address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
