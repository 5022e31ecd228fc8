package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wrenfield/vintrack/api/internal/config"
	"github.com/wrenfield/vintrack/api/internal/database"
	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/middleware"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
	"github.com/wrenfield/vintrack/api/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testServer bundles a router over an in-memory database with every
// handler mounted. Auth middleware is left off so handlers can be
// exercised directly.
type testServer struct {
	router *gin.Engine
	db     *database.Database

	operator models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:  "sqlite",
		Path:    ":memory:",
		PoolMin: 1,
		// An in-memory database exists per connection; keep the pool at one.
		PoolMax: 1,
	}
	db, err := database.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	log := logger.New("test")

	vineyardRepo := repository.NewVineyardRepository(db.DB)
	sprayRepo := repository.NewSprayRepository(db.DB)
	recordRepo := repository.NewSprayRecordRepository(db.DB)
	chemicalRepo := repository.NewChemicalRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	vineyardSvc := services.NewVineyardService(vineyardRepo, log)
	spraySvc := services.NewSprayService(sprayRepo, chemicalRepo, vineyardRepo, log)
	recordSvc := services.NewSprayRecordService(recordRepo, sprayRepo, vineyardRepo, log)
	chemicalSvc := services.NewChemicalService(chemicalRepo, recordRepo, log)
	userSvc := services.NewUserService(userRepo, recordRepo, log)
	exportSvc := services.NewExportService(recordRepo, vineyardRepo, log)

	vineyardHandler := NewVineyardHandler(vineyardSvc)
	sprayHandler := NewSprayHandler(spraySvc, recordSvc)
	recordHandler := NewSprayRecordHandler(recordSvc, exportSvc)
	chemicalHandler := NewChemicalHandler(chemicalSvc)
	userHandler := NewUserHandler(userSvc)
	healthHandler := NewHealthHandler(db, "test")

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/vineyards", vineyardHandler.List)
		v1.GET("/vineyards/:id", vineyardHandler.Get)
		v1.POST("/vineyards", vineyardHandler.Create)
		v1.PUT("/vineyards/:id", vineyardHandler.Update)
		v1.DELETE("/vineyards/:id", vineyardHandler.Delete)
		v1.GET("/vineyards/:id/spray-status", recordHandler.Status)
		v1.GET("/vineyards/:id/spray-diary", recordHandler.ExportDiary)

		v1.GET("/management-units", vineyardHandler.ListUnits)
		v1.GET("/management-units/:id", vineyardHandler.GetUnit)

		v1.POST("/spray-programs", sprayHandler.CreateProgram)
		v1.GET("/spray-programs", sprayHandler.ListPrograms)
		v1.POST("/spray-programs/:id/sprays", sprayHandler.CreateSpray)
		v1.GET("/sprays/:id", sprayHandler.GetSpray)
		v1.POST("/sprays/:id/apply", sprayHandler.Apply)
		v1.POST("/sprays/:id/complete", recordHandler.Complete)
		v1.GET("/sprays/:id/records", recordHandler.ListForSpray)

		v1.GET("/spray-records/:id", recordHandler.Get)
		v1.POST("/spray-records/:id/notes", recordHandler.AddNote)

		v1.POST("/chemicals", chemicalHandler.Create)
		v1.GET("/chemicals", chemicalHandler.List)

		v1.GET("/users/operators", userHandler.ListOperators)
	}

	server := &testServer{router: router, db: db}

	server.operator = models.User{
		Name:  "Sam Fletcher",
		Email: "sam@amarok.example",
		Role:  models.RoleOperator,
	}
	require.NoError(t, server.operator.SetPassword("spray-and-pray"))
	require.NoError(t, db.DB.Create(&server.operator).Error)

	return server
}

// do issues a JSON request against the test router.
func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into out.
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// seedWorld creates a vineyard with two active units, a growth stage, a
// chemical, a program and a spray, directly through the database.
type world struct {
	vineyard models.Vineyard
	units    []models.ManagementUnit
	stage    models.GrowthStage
	copper   models.Chemical
	program  models.SprayProgram
	spray    models.Spray
}

func (s *testServer) seedWorld(t *testing.T) *world {
	t.Helper()
	db := s.db.DB

	w := &world{}

	red := models.WineColour{Name: models.WineColourRed}
	require.NoError(t, db.Create(&red).Error)
	variety := models.Variety{Name: "Shiraz", WineColourID: red.ID}
	require.NoError(t, db.Create(&variety).Error)
	active := models.Status{Status: models.StatusActive}
	require.NoError(t, db.Create(&active).Error)

	w.vineyard = models.Vineyard{Name: "Amarok"}
	require.NoError(t, db.Create(&w.vineyard).Error)

	for _, name := range []string{"Block 1", "Block 2"} {
		varietyID := variety.ID
		statusID := active.ID
		unit := models.ManagementUnit{
			Name:       name,
			VineyardID: w.vineyard.ID,
			VarietyID:  &varietyID,
			StatusID:   &statusID,
		}
		require.NoError(t, db.Create(&unit).Error)
		w.units = append(w.units, unit)
	}

	w.stage = models.GrowthStage{ELNumber: 18, Description: "14 leaves separated"}
	require.NoError(t, db.Create(&w.stage).Error)

	w.copper = models.Chemical{
		Name:        "Copper Hydroxide",
		RatePer100L: decimal.NewFromInt(200),
		RateUnit:    models.MixRateGrams,
	}
	require.NoError(t, db.Create(&w.copper).Error)

	w.program = models.SprayProgram{Name: "2025/26 Standard", YearStart: 2025, YearEnd: 2026}
	require.NoError(t, db.Create(&w.program).Error)

	w.spray = models.Spray{
		Name:           "Pre-bloom",
		SprayProgramID: w.program.ID,
		GrowthStageID:  w.stage.ID,
		SprayChemicals: []models.SprayChemical{
			{ChemicalID: w.copper.ID, Target: models.TargetDownyMildew, ConcentrationFactor: decimal.NewFromInt(1)},
		},
	}
	require.NoError(t, db.Create(&w.spray).Error)

	return w
}
