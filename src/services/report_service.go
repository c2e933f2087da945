package services

import (
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/reports"
)

const ckAangifte = "res_aangifte_company_%d_year_%d"

// ReportService wraps the report generator with caching and is the one
// entry point the HTTP layer uses for jaarrekening and VPB data.
type ReportService interface {
	GenerateReport(companyID int64, year int) (*models.AnnualReport, *models.VPBFiling, error)
	GetReport(companyID int64, year int) (*models.AnnualReport, error)
	GetFiling(companyID int64, year int) (*models.VPBFiling, error)
	GetAangifte(companyID int64, year int) (*reports.Aangifte, error)
}

type reportServiceImpl struct {
	generator   *reports.Generator
	reportCache *cache.Cache
}

func NewReportService(generator *reports.Generator, reportCache *cache.Cache) ReportService {
	return &reportServiceImpl{generator: generator, reportCache: reportCache}
}

func (s *reportServiceImpl) GenerateReport(companyID int64, year int) (*models.AnnualReport, *models.VPBFiling, error) {
	report, filing, err := s.generator.Generate(companyID, year)
	if err != nil {
		return nil, nil, err
	}
	s.reportCache.Delete(fmt.Sprintf(ckAangifte, companyID, year))
	logger.L.Info("Annual report generated", "companyID", companyID, "year", year,
		"taxableProfit", filing.TaxableProfit, "vpb", filing.VPBAmount)
	return report, filing, nil
}

func (s *reportServiceImpl) GetReport(companyID int64, year int) (*models.AnnualReport, error) {
	return s.generator.GetReport(companyID, year)
}

func (s *reportServiceImpl) GetFiling(companyID int64, year int) (*models.VPBFiling, error) {
	return s.generator.GetFiling(companyID, year)
}

func (s *reportServiceImpl) GetAangifte(companyID int64, year int) (*reports.Aangifte, error) {
	cacheKey := fmt.Sprintf(ckAangifte, companyID, year)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if aangifte, ok := cached.(*reports.Aangifte); ok {
			return aangifte, nil
		}
	}

	aangifte, err := s.generator.Aangifte(companyID, year)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, aangifte, cache.DefaultExpiration)
	return aangifte, nil
}
