package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
)

// testEnv bundles the repositories and services under test, backed by an
// in-memory database.
type testEnv struct {
	db        *gorm.DB
	vineyards repository.VineyardRepository
	sprays    repository.SprayRepository
	records   repository.SprayRecordRepository
	chemicals repository.ChemicalRepository
	users     repository.UserRepository

	vineyardSvc VineyardService
	spraySvc    SprayService
	recordSvc   SprayRecordService
	chemicalSvc ChemicalService
	userSvc     UserService
	exportSvc   ExportService
}

// newTestEnv opens an in-memory database, migrates the schema and wires
// the full service stack.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// An in-memory database exists per connection; keep the pool at one.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.WineColour{},
		&models.Variety{},
		&models.Status{},
		&models.Vineyard{},
		&models.ManagementUnit{},
		&models.GrowthStage{},
		&models.ChemicalGroup{},
		&models.Chemical{},
		&models.SprayProgram{},
		&models.Spray{},
		&models.SprayChemical{},
		&models.User{},
		&models.SprayRecord{},
		&models.SprayRecordChemical{},
	)
	require.NoError(t, err, "Failed to migrate schema")

	log := logger.New("test")

	env := &testEnv{
		db:        db,
		vineyards: repository.NewVineyardRepository(db),
		sprays:    repository.NewSprayRepository(db),
		records:   repository.NewSprayRecordRepository(db),
		chemicals: repository.NewChemicalRepository(db),
		users:     repository.NewUserRepository(db),
	}
	env.vineyardSvc = NewVineyardService(env.vineyards, log)
	env.spraySvc = NewSprayService(env.sprays, env.chemicals, env.vineyards, log)
	env.recordSvc = NewSprayRecordService(env.records, env.sprays, env.vineyards, log)
	env.chemicalSvc = NewChemicalService(env.chemicals, env.records, log)
	env.userSvc = NewUserService(env.users, env.records, log)
	env.exportSvc = NewExportService(env.records, env.vineyards, log)

	return env
}

// fixture ids populated by seedVineyard and friends.
type fixture struct {
	vineyard     models.Vineyard
	activeStatus models.Status
	fallowStatus models.Status
	redVariety   models.Variety
	whiteVariety models.Variety
	units        []models.ManagementUnit

	stage    models.GrowthStage
	copper   models.Chemical
	sulphur  models.Chemical
	program  models.SprayProgram
	spray    models.Spray
	operator models.User
}

// seedVineyard creates a vineyard of nine units: four active red, four
// active white, one fallow red.
func seedVineyard(t *testing.T, env *testEnv) *fixture {
	t.Helper()

	fx := &fixture{}

	red := models.WineColour{Name: models.WineColourRed}
	white := models.WineColour{Name: models.WineColourWhite}
	require.NoError(t, env.db.Create(&red).Error)
	require.NoError(t, env.db.Create(&white).Error)

	fx.redVariety = models.Variety{Name: "Shiraz", WineColourID: red.ID}
	fx.whiteVariety = models.Variety{Name: "Riesling", WineColourID: white.ID}
	require.NoError(t, env.db.Create(&fx.redVariety).Error)
	require.NoError(t, env.db.Create(&fx.whiteVariety).Error)

	fx.activeStatus = models.Status{Status: models.StatusActive}
	fx.fallowStatus = models.Status{Status: "Fallow"}
	require.NoError(t, env.db.Create(&fx.activeStatus).Error)
	require.NoError(t, env.db.Create(&fx.fallowStatus).Error)

	fx.vineyard = models.Vineyard{Name: "Amarok"}
	require.NoError(t, env.db.Create(&fx.vineyard).Error)

	type unitSpec struct {
		name    string
		variety uint
		status  uint
	}
	specs := []unitSpec{
		{"Block 1", fx.redVariety.ID, fx.activeStatus.ID},
		{"Block 2", fx.redVariety.ID, fx.activeStatus.ID},
		{"Block 3", fx.redVariety.ID, fx.activeStatus.ID},
		{"Block 4", fx.redVariety.ID, fx.activeStatus.ID},
		{"Block 5", fx.whiteVariety.ID, fx.activeStatus.ID},
		{"Block 6", fx.whiteVariety.ID, fx.activeStatus.ID},
		{"Block 7", fx.whiteVariety.ID, fx.activeStatus.ID},
		{"Block 8", fx.whiteVariety.ID, fx.activeStatus.ID},
		{"Block 9", fx.redVariety.ID, fx.fallowStatus.ID},
	}
	for _, spec := range specs {
		varietyID := spec.variety
		statusID := spec.status
		unit := models.ManagementUnit{
			Name:       spec.name,
			VineyardID: fx.vineyard.ID,
			VarietyID:  &varietyID,
			StatusID:   &statusID,
			Area:       decimal.NewFromFloat(2.5),
		}
		require.NoError(t, env.db.Create(&unit).Error)
		fx.units = append(fx.units, unit)
	}

	return fx
}

// seedSpray adds a growth stage, two chemicals, a program and one spray
// carrying both chemicals.
func seedSpray(t *testing.T, env *testEnv, fx *fixture) {
	t.Helper()

	fx.stage = models.GrowthStage{ELNumber: 18, Description: "14 leaves separated", IsMajor: true}
	require.NoError(t, env.db.Create(&fx.stage).Error)

	fx.copper = models.Chemical{
		Name:        "Copper Hydroxide",
		RatePer100L: decimal.NewFromInt(200),
		RateUnit:    models.MixRateGrams,
	}
	fx.sulphur = models.Chemical{
		Name:        "Wettable Sulphur",
		RatePer100L: decimal.NewFromInt(300),
		RateUnit:    models.MixRateGrams,
	}
	require.NoError(t, env.db.Create(&fx.copper).Error)
	require.NoError(t, env.db.Create(&fx.sulphur).Error)

	fx.program = models.SprayProgram{Name: "2025/26 Standard", YearStart: 2025, YearEnd: 2026}
	require.NoError(t, env.db.Create(&fx.program).Error)

	fx.spray = models.Spray{
		Name:                     "Pre-bloom",
		SprayProgramID:           fx.program.ID,
		GrowthStageID:            fx.stage.ID,
		WaterSprayRatePerHectare: decimal.NewFromInt(500),
		SprayChemicals: []models.SprayChemical{
			{ChemicalID: fx.copper.ID, Target: models.TargetDownyMildew, ConcentrationFactor: decimal.NewFromInt(1)},
			{ChemicalID: fx.sulphur.ID, Target: models.TargetPowderyMildew, ConcentrationFactor: decimal.NewFromFloat(1.5)},
		},
	}
	require.NoError(t, env.db.Create(&fx.spray).Error)
}

// seedOperator registers an operator-role user for completions.
func seedOperator(t *testing.T, env *testEnv, fx *fixture) {
	t.Helper()

	fx.operator = models.User{
		Name:  "Sam Fletcher",
		Email: "sam@amarok.example",
		Role:  models.RoleOperator,
	}
	require.NoError(t, fx.operator.SetPassword("spray-and-pray"))
	require.NoError(t, env.db.Create(&fx.operator).Error)
	fx.operator.LastLogin = time.Time{}
}

// batchNumbers builds a complete batch map for the seeded spray.
func (fx *fixture) batchNumbers() map[uint]string {
	return map[uint]string{
		fx.copper.ID:  "CU-2025-014",
		fx.sulphur.ID: "WS-2025-081",
	}
}
