package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cheems/transit/internal/models"
	pkglogger "github.com/cheems/transit/pkg/logger"
	"github.com/jszwec/csvutil"
)

// ImportVehicleLookup resolves the plates referenced by an import file.
type ImportVehicleLookup interface {
	ListByPlates(ctx context.Context, plates []string) ([]*models.Vehicle, error)
}

// ImportRouteCreator persists one route atomically.
type ImportRouteCreator interface {
	Create(ctx context.Context, route *models.Route) (*models.Route, error)
}

var templateExample = models.ImportRow{
	RouteName:     "Ruta Centro",
	Origin:        "Terminal Norte",
	Destination:   "Plaza Central",
	ScheduledTime: "08:30",
	VehiclePlate:  "ABC123",
}

// RouteImportService loads routes from CSV files. Each row is validated and
// committed on its own; a bad row never undoes the rows before it.
type RouteImportService struct {
	vehicles    ImportVehicleLookup
	routes      ImportRouteCreator
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	columns     []string
}

func NewRouteImportService(vehicles ImportVehicleLookup, routes ImportRouteCreator, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *RouteImportService {
	columns, err := csvutil.Header(models.ImportRow{}, "csv")
	if err != nil {
		panic(fmt.Sprintf("import row header: %v", err))
	}

	return &RouteImportService{
		vehicles:    vehicles,
		routes:      routes,
		logger:      logger,
		auditLogger: auditLogger,
		columns:     columns,
	}
}

// Columns returns the required header names in template order.
func (s *RouteImportService) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Template returns a CSV header plus one example row.
func (s *RouteImportService) Template() ([]byte, error) {
	return csvutil.Marshal([]models.ImportRow{templateExample})
}

type parsedRow struct {
	index      int
	row        models.ImportRow
	fieldCount int
	expected   int
	badCount   bool
}

// ImportRoutes reads a CSV file and creates one route per valid row.
//
// It returns *models.InvalidFileError when the file cannot be read as CSV,
// lacks a required column or has no data rows; *models.BatchFailedError when
// every row failed; otherwise the report of created routes and row errors.
func (s *RouteImportService) ImportRoutes(ctx context.Context, r io.Reader, actorID string) (*models.ImportReport, error) {
	rows, err := s.parse(r)
	if err != nil {
		return nil, err
	}

	vehicles, err := s.lookupVehicles(ctx, rows)
	if err != nil {
		s.logger.Error("failed to resolve import vehicles", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	report := &models.ImportReport{
		Created: []models.ImportedRoute{},
		Errors:  []models.RowError{},
	}

	for _, pr := range rows {
		created, rowErr := s.importRow(ctx, pr, vehicles)
		if rowErr != nil {
			report.Errors = append(report.Errors, *rowErr)
			continue
		}
		report.Created = append(report.Created, *created)
	}

	s.logger.Info("route import finished",
		slog.Int("rows", len(rows)),
		slog.Int("created", len(report.Created)),
		slog.Int("failed", len(report.Errors)))

	if s.auditLogger != nil {
		s.auditLogger.LogAccountAction(ctx, pkglogger.EventRoutesImported, actorID, "", map[string]string{
			"created": strconv.Itoa(len(report.Created)),
			"failed":  strconv.Itoa(len(report.Errors)),
		})
	}

	if len(report.Created) == 0 {
		return report, &models.BatchFailedError{Report: report}
	}
	return report, nil
}

func (s *RouteImportService) parse(r io.Reader) ([]parsedRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &models.InvalidFileError{Reason: "could not read file"}
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		return nil, &models.InvalidFileError{Reason: "file is not UTF-8 text"}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &models.InvalidFileError{Reason: "file is empty"}
	}
	if err != nil {
		return nil, &models.InvalidFileError{Reason: "malformed CSV: " + err.Error()}
	}

	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	if missing := missingColumns(header, s.columns); len(missing) > 0 {
		return nil, &models.InvalidFileError{Reason: "missing columns: " + strings.Join(missing, ", ")}
	}

	dec, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, &models.InvalidFileError{Reason: "invalid header: " + err.Error()}
	}

	var rows []parsedRow
	for index := 1; ; index++ {
		var row models.ImportRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}

		pr := parsedRow{index: index, row: row, fieldCount: len(dec.Record()), expected: len(header)}
		switch {
		case err == nil:
		case errors.Is(err, csvutil.ErrFieldCount):
			pr.badCount = true
		default:
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &models.InvalidFileError{Reason: "malformed CSV: " + parseErr.Error()}
			}
			return nil, &models.InvalidFileError{Reason: err.Error()}
		}
		rows = append(rows, pr)
	}

	if len(rows) == 0 {
		return nil, &models.InvalidFileError{Reason: "file has no data rows"}
	}
	return rows, nil
}

func (s *RouteImportService) lookupVehicles(ctx context.Context, rows []parsedRow) (map[string]*models.Vehicle, error) {
	seen := make(map[string]struct{}, len(rows))
	plates := make([]string, 0, len(rows))
	for _, pr := range rows {
		plate := strings.TrimSpace(pr.row.VehiclePlate)
		if plate == "" {
			continue
		}
		if _, ok := seen[plate]; !ok {
			seen[plate] = struct{}{}
			plates = append(plates, plate)
		}
	}

	byPlate := make(map[string]*models.Vehicle, len(plates))
	if len(plates) == 0 {
		return byPlate, nil
	}

	vehicles, err := s.vehicles.ListByPlates(ctx, plates)
	if err != nil {
		return nil, err
	}
	for _, v := range vehicles {
		byPlate[v.Plate] = v
	}
	return byPlate, nil
}

// importRow validates in a fixed order: required fields, vehicle, time.
func (s *RouteImportService) importRow(ctx context.Context, pr parsedRow, vehicles map[string]*models.Vehicle) (*models.ImportedRoute, *models.RowError) {
	fail := func(format string, args ...any) (*models.ImportedRoute, *models.RowError) {
		return nil, &models.RowError{Row: pr.index, Message: fmt.Sprintf(format, args...)}
	}

	if pr.badCount {
		return fail("row has %d fields, header has %d", pr.fieldCount, pr.expected)
	}

	values := map[string]string{
		"nombre_ruta":    strings.TrimSpace(pr.row.RouteName),
		"origen":         strings.TrimSpace(pr.row.Origin),
		"destino":        strings.TrimSpace(pr.row.Destination),
		"horario":        strings.TrimSpace(pr.row.ScheduledTime),
		"placa_vehiculo": strings.TrimSpace(pr.row.VehiclePlate),
	}
	for _, col := range s.columns {
		if values[col] == "" {
			return fail("field %s required", col)
		}
	}
	for _, col := range []string{"nombre_ruta", "origen", "destino"} {
		if utf8.RuneCountInString(values[col]) > models.MaxRouteTextLength {
			return fail("field %s exceeds %d characters", col, models.MaxRouteTextLength)
		}
	}

	plate := values["placa_vehiculo"]
	vehicle, ok := vehicles[plate]
	if !ok {
		return fail("vehicle with plate %s does not exist", plate)
	}

	scheduled, err := models.ParseTimeOfDay(values["horario"])
	if err != nil {
		return fail("invalid time format")
	}

	route, err := s.routes.Create(ctx, &models.Route{
		Name:          values["nombre_ruta"],
		Origin:        values["origen"],
		Destination:   values["destino"],
		ScheduledTime: scheduled,
		VehicleID:     vehicle.ID,
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fail("vehicle with plate %s does not exist", plate)
		}
		s.logger.Error("failed to create imported route",
			slog.Int("row", pr.index),
			slog.Any("error", err))
		return fail("could not save route")
	}

	return &models.ImportedRoute{
		Row:           pr.index,
		RouteID:       route.ID,
		Name:          route.Name,
		Origin:        route.Origin,
		Destination:   route.Destination,
		ScheduledTime: route.ScheduledTime.String(),
		VehiclePlate:  plate,
	}, nil
}

func missingColumns(header, required []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
