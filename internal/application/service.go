package application

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sevewell/enty/internal/config"
	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/Sevewell/enty/internal/logger"
)

const (
	maxClassTitle    = 100
	maxInstanceTitle = 200
	maxDataType      = 50
	minOrderDisplay  = 1
	maxOrderDisplay  = 999
)

// Options carries the deployment switches that shape the model.
type Options struct {
	// LinkageMode is one of config.LinkageAttribute, config.LinkageRelation
	// or config.LinkageBoth.
	LinkageMode string
	// TemporalScoping turns the as-of filters on for list and detail reads.
	TemporalScoping bool
	// Now is the clock used to resolve "today". Defaults to time.Now.
	Now func() time.Time
}

type GraphService struct {
	repo domain.GraphRepository
	log  *logger.Logger
	opts Options
}

func NewGraphService(repo domain.GraphRepository, log *logger.Logger, opts Options) *GraphService {
	if log == nil {
		log = logger.Nop()
	}
	switch opts.LinkageMode {
	case config.LinkageAttribute, config.LinkageRelation, config.LinkageBoth:
	default:
		opts.LinkageMode = config.LinkageBoth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &GraphService{repo: repo, log: log, opts: opts}
}

func (s *GraphService) LinkageMode() string { return s.opts.LinkageMode }

func (s *GraphService) TemporalScoping() bool { return s.opts.TemporalScoping }

// Today is the current calendar date in the service clock.
func (s *GraphService) Today() domain.Date {
	return domain.DateOf(s.opts.Now())
}

// ResolveAsOf parses a view date, falling back to today when raw is blank
// or malformed.
func (s *GraphService) ResolveAsOf(raw string) domain.Date {
	return domain.ParseDateOr(raw, s.Today())
}

func (s *GraphService) attributesEnabled() bool {
	return s.opts.LinkageMode != config.LinkageRelation
}

func (s *GraphService) relationsEnabled() bool {
	return s.opts.LinkageMode != config.LinkageAttribute
}

func (s *GraphService) requireRelations() error {
	if !s.relationsEnabled() {
		return apperrors.Disabled("relations are disabled in attribute linkage mode")
	}
	return nil
}

func cleanTitle(field, raw string, max int) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", apperrors.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(title) > max {
		return "", apperrors.Invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return title, nil
}

func requireID(field string, id uint) error {
	if id == 0 {
		return apperrors.Invalid(field, "is required")
	}
	return nil
}

func validateInterval(in, out *domain.Date) error {
	if !(domain.Interval{In: in, Out: out}).Ordered() {
		return apperrors.Invalid("date_out", "must not be before date_in")
	}
	return nil
}

func (s *GraphService) mustEntity(ctx context.Context, id uint) (domain.Entity, error) {
	if err := requireID("entity_id", id); err != nil {
		return domain.Entity{}, err
	}
	return s.repo.GetEntity(ctx, id)
}
