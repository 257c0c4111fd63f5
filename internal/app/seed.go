package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/internal/schema"
	"github.com/razikuljoni/crud-express/internal/service"
	"github.com/razikuljoni/crud-express/pkg/validator"
)

// SeedResult counts the outcome of a Seed run.
type SeedResult struct {
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Seed registers every user in r, a JSON array of registration bodies.
// Records are validated with the register schema; invalid records and
// records whose username or email is already taken are skipped.
func Seed(ctx context.Context, users *service.UserService, r io.Reader, logger *slog.Logger) (SeedResult, error) {
	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return SeedResult{}, fmt.Errorf("decode seed file: %w", err)
	}

	var res SeedResult
	for i, record := range records {
		out, err := schema.Validate(schema.RegisterUserID, validator.Input{Body: record})
		if err != nil {
			var verr *validator.ValidationError
			if !errors.As(err, &verr) {
				return res, err
			}
			logger.WarnContext(ctx, "skipping invalid seed record",
				slog.Int("index", i),
				slog.Any("errors", verr.Fields()),
			)
			res.Invalid++
			continue
		}

		var in service.RegisterInput
		if err := validator.Bind(out.Body, &in); err != nil {
			return res, fmt.Errorf("seed record %d: %w", i, err)
		}

		_, err = users.Register(ctx, in)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, domain.ErrDuplicateUsername), errors.Is(err, domain.ErrDuplicateEmail):
			logger.InfoContext(ctx, "skipping existing user",
				slog.Int("index", i),
				slog.String("username", in.Username),
			)
			res.Duplicates++
		default:
			return res, fmt.Errorf("seed record %d: %w", i, err)
		}
	}

	logger.InfoContext(ctx, "seed completed",
		slog.Int("created", res.Created),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("invalid", res.Invalid),
	)
	return res, nil
}
