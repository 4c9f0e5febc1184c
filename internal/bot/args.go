package bot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
)

var errUsage = errors.New("invalid command arguments")

var validate = validator.New()

// targetArgs аргументы /aprobar и /denegar.
type targetArgs struct {
	UserID string `validate:"required,numeric"`
}

// daysArgs аргумент /expiring.
type daysArgs struct {
	Days string `validate:"required,numeric"`
}

// daysRange горизонт отчёта, не больше membership.MaxExpiringDays.
type daysRange struct {
	Days int `validate:"max=3650"`
}

func firstArg(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func parseTarget(raw string) (int64, error) {
	args := targetArgs{UserID: firstArg(raw)}
	if err := validate.Struct(args); err != nil {
		return 0, errors.Join(errUsage, err)
	}
	id, err := strconv.ParseInt(args.UserID, 10, 64)
	if err != nil {
		return 0, errors.Join(errUsage, err)
	}
	return id, nil
}

func parseDays(raw string) (int, error) {
	args := daysArgs{Days: firstArg(raw)}
	if err := validate.Struct(args); err != nil {
		return 0, errors.Join(errUsage, err)
	}
	days, err := strconv.Atoi(args.Days)
	if err != nil {
		return 0, errors.Join(errUsage, err)
	}
	if err := validate.Struct(daysRange{Days: days}); err != nil {
		return 0, errors.Join(errUsage, err)
	}
	return days, nil
}
