package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
)

var (
	ErrSprayProgramNotFound = errors.New("spray program not found")
	ErrInvalidSprayTarget   = errors.New("invalid spray target")
	ErrChemicalNotFound     = errors.New("chemical not found")
)

// SprayChemicalInput is one chemical row of a spray submission. Rows with
// a zero chemical id come from blank form lines and are dropped.
type SprayChemicalInput struct {
	ChemicalID          uint
	Target              string
	ConcentrationFactor decimal.Decimal
}

// SprayInput carries the fields of a spray create or update.
type SprayInput struct {
	Name                     string
	GrowthStageID            uint
	WaterSprayRatePerHectare decimal.Decimal
	Chemicals                []SprayChemicalInput
}

// SprayService manages spray programs and the sprays within them.
type SprayService interface {
	ListPrograms(ctx context.Context) ([]models.SprayProgram, error)
	GetProgram(ctx context.Context, id uint) (*models.SprayProgram, error)
	CreateProgram(ctx context.Context, p *models.SprayProgram) error
	UpdateProgram(ctx context.Context, p *models.SprayProgram) error
	DeleteProgram(ctx context.Context, id uint) error

	GetSpray(ctx context.Context, id uint) (*models.Spray, error)
	ListSprays(ctx context.Context, programID uint) ([]models.Spray, error)
	CreateSpray(ctx context.Context, programID uint, input SprayInput) (*models.Spray, error)
	UpdateSpray(ctx context.Context, sprayID uint, input SprayInput) (*models.Spray, error)
	DeleteSpray(ctx context.Context, id uint) error
}

// sprayService is the concrete implementation of SprayService.
type sprayService struct {
	repo      repository.SprayRepository
	chemicals repository.ChemicalRepository
	vineyards repository.VineyardRepository
	log       *logger.Logger
}

// NewSprayService creates a new SprayService.
func NewSprayService(
	repo repository.SprayRepository,
	chemicals repository.ChemicalRepository,
	vineyards repository.VineyardRepository,
	log *logger.Logger,
) SprayService {
	return &sprayService{
		repo:      repo,
		chemicals: chemicals,
		vineyards: vineyards,
		log:       log,
	}
}

func (s *sprayService) ListPrograms(ctx context.Context) ([]models.SprayProgram, error) {
	return s.repo.ListSprayPrograms(ctx)
}

func (s *sprayService) GetProgram(ctx context.Context, id uint) (*models.SprayProgram, error) {
	program, err := s.repo.GetSprayProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrSprayProgramNotFound
	}
	return program, nil
}

func (s *sprayService) CreateProgram(ctx context.Context, p *models.SprayProgram) error {
	if err := s.repo.CreateSprayProgram(ctx, p); err != nil {
		return err
	}

	s.log.Info("Created spray program", map[string]interface{}{
		"program_id": p.ID,
		"name":       p.Name,
		"season":     p.YearStart,
	})
	return nil
}

func (s *sprayService) UpdateProgram(ctx context.Context, p *models.SprayProgram) error {
	existing, err := s.repo.GetSprayProgram(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrSprayProgramNotFound
	}
	return s.repo.SaveSprayProgram(ctx, p)
}

func (s *sprayService) DeleteProgram(ctx context.Context, id uint) error {
	program, err := s.repo.GetSprayProgram(ctx, id)
	if err != nil {
		return err
	}
	if program == nil {
		return ErrSprayProgramNotFound
	}

	if err := s.repo.DeleteSprayProgram(ctx, id); err != nil {
		return err
	}

	s.log.Info("Deleted spray program", map[string]interface{}{
		"program_id":  id,
		"name":        program.Name,
		"spray_count": len(program.Sprays),
	})
	return nil
}

func (s *sprayService) GetSpray(ctx context.Context, id uint) (*models.Spray, error) {
	spray, err := s.repo.GetSpray(ctx, id)
	if err != nil {
		return nil, err
	}
	if spray == nil {
		return nil, ErrSprayNotFound
	}
	return spray, nil
}

func (s *sprayService) ListSprays(ctx context.Context, programID uint) ([]models.Spray, error) {
	program, err := s.repo.GetSprayProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrSprayProgramNotFound
	}
	return s.repo.ListSpraysByProgram(ctx, programID)
}

func (s *sprayService) CreateSpray(ctx context.Context, programID uint, input SprayInput) (*models.Spray, error) {
	program, err := s.repo.GetSprayProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrSprayProgramNotFound
	}

	if err := s.validateGrowthStage(ctx, input.GrowthStageID); err != nil {
		return nil, err
	}

	chems, err := s.buildChemicalRows(ctx, input.Chemicals)
	if err != nil {
		return nil, err
	}

	spray := &models.Spray{
		Name:                     input.Name,
		SprayProgramID:           programID,
		GrowthStageID:            input.GrowthStageID,
		WaterSprayRatePerHectare: input.WaterSprayRatePerHectare,
		SprayChemicals:           chems,
	}
	if err := s.repo.CreateSpray(ctx, spray); err != nil {
		return nil, err
	}

	s.log.Info("Created spray", map[string]interface{}{
		"spray_id":       spray.ID,
		"program_id":     programID,
		"name":           spray.Name,
		"chemical_count": len(chems),
	})

	return s.repo.GetSpray(ctx, spray.ID)
}

func (s *sprayService) UpdateSpray(ctx context.Context, sprayID uint, input SprayInput) (*models.Spray, error) {
	spray, err := s.repo.GetSpray(ctx, sprayID)
	if err != nil {
		return nil, err
	}
	if spray == nil {
		return nil, ErrSprayNotFound
	}

	if err := s.validateGrowthStage(ctx, input.GrowthStageID); err != nil {
		return nil, err
	}

	chems, err := s.buildChemicalRows(ctx, input.Chemicals)
	if err != nil {
		return nil, err
	}

	spray.Name = input.Name
	spray.GrowthStageID = input.GrowthStageID
	spray.WaterSprayRatePerHectare = input.WaterSprayRatePerHectare
	spray.SprayChemicals = nil
	if err := s.repo.SaveSpray(ctx, spray); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceSprayChemicals(ctx, sprayID, chems); err != nil {
		return nil, err
	}

	return s.repo.GetSpray(ctx, sprayID)
}

func (s *sprayService) DeleteSpray(ctx context.Context, id uint) error {
	spray, err := s.repo.GetSpray(ctx, id)
	if err != nil {
		return err
	}
	if spray == nil {
		return ErrSprayNotFound
	}

	if err := s.repo.DeleteSpray(ctx, id); err != nil {
		return err
	}

	s.log.Info("Deleted spray", map[string]interface{}{
		"spray_id": id,
		"name":     spray.Name,
	})
	return nil
}

func (s *sprayService) validateGrowthStage(ctx context.Context, stageID uint) error {
	stage, err := s.vineyards.GetGrowthStage(ctx, stageID)
	if err != nil {
		return err
	}
	if stage == nil {
		return ErrGrowthStageNotFound
	}
	return nil
}

// buildChemicalRows converts submitted rows to model rows, dropping blank
// lines and validating targets and chemical references. A concentration
// factor of zero defaults to 1.
func (s *sprayService) buildChemicalRows(ctx context.Context, inputs []SprayChemicalInput) ([]models.SprayChemical, error) {
	chems := make([]models.SprayChemical, 0, len(inputs))
	for _, in := range inputs {
		if in.ChemicalID == 0 {
			continue
		}

		target, err := models.ParseTarget(in.Target)
		if err != nil {
			return nil, ErrInvalidSprayTarget
		}

		chemical, err := s.chemicals.Get(ctx, in.ChemicalID)
		if err != nil {
			return nil, err
		}
		if chemical == nil {
			return nil, ErrChemicalNotFound
		}

		factor := in.ConcentrationFactor
		if factor.IsZero() {
			factor = decimal.NewFromInt(1)
		}

		chems = append(chems, models.SprayChemical{
			ChemicalID:          in.ChemicalID,
			Target:              target,
			ConcentrationFactor: factor,
		})
	}
	return chems, nil
}
