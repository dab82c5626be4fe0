package models

// ScopeLevel - уровень штаба
type ScopeLevel string

const (
	ScopeCity     ScopeLevel = "city"
	ScopeProvince ScopeLevel = "province"
)

// Headquarters - точка диспетчеризации. Справочные данные, только чтение.
type Headquarters struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	ScopeLevel       ScopeLevel `json:"scope_level"`
	CityCode         string     `json:"city_code"`
	Location         Point      `json:"location"`
	CoverageRadiusKm *float64   `json:"coverage_radius_km,omitempty"`
	DepartmentCodes  []string   `json:"department_codes"`
	Active           bool       `json:"active"`
}

// DispatchDecision - результат выбора ближайшего штаба
type DispatchDecision struct {
	Headquarters Headquarters `json:"headquarters"`
	DistanceKm   float64      `json:"distance_km"`
	Departments  []string     `json:"departments,omitempty"`
}
