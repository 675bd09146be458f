package service

import (
	"github.com/dom/wartracker/internal/config"
	"github.com/dom/wartracker/internal/links"
	"github.com/dom/wartracker/internal/repository"
	"go.uber.org/zap"
)

type Services struct {
	Record *RecordService
	Links  *links.Validator
}

func NewServices(repos *repository.Repositories, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	linkValidator := links.NewValidator(cfg.LinkPrefixes()...)

	record, err := NewRecordService(repos.Record, linkValidator, cfg.DefaultGameKind, logger.Named("record"))
	if err != nil {
		return nil, err
	}

	return &Services{
		Record: record,
		Links:  linkValidator,
	}, nil
}
