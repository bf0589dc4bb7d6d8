package models

// ImportRow is one data line of a route import file. The csv tags are the
// column names shared by the importer and the downloadable template.
type ImportRow struct {
	RouteName     string `csv:"nombre_ruta"`
	Origin        string `csv:"origen"`
	Destination   string `csv:"destino"`
	ScheduledTime string `csv:"horario"`
	VehiclePlate  string `csv:"placa_vehiculo"`
}

// ImportedRoute summarizes a route created from one import row.
type ImportedRoute struct {
	Row           int    `json:"row"`
	RouteID       string `json:"id"`
	Name          string `json:"name"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	ScheduledTime string `json:"scheduledTime"`
	VehiclePlate  string `json:"vehiclePlate"`
}

// RowError is a failure isolated to one import row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return e.Message
}

// ImportReport aggregates the outcome of one import call.
type ImportReport struct {
	Created []ImportedRoute `json:"createdRoutes"`
	Errors  []RowError      `json:"errors"`
}

// Partial reports whether some rows succeeded and some failed.
func (r *ImportReport) Partial() bool {
	return len(r.Created) > 0 && len(r.Errors) > 0
}
