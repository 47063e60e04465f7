package mapper

import "strings"

// Delifast city ids for the UAE emirates
const (
	CityDubai        = "1"
	CityAbuDhabi     = "2"
	CitySharjah      = "3"
	CityAjman        = "4"
	CityUmmAlQuwain  = "5"
	CityRasAlKhaimah = "6"
	CityFujairah     = "7"
)

// provinceCities is keyed by Shopify province_code (ISO 3166-2:AE suffix)
var provinceCities = map[string]string{
	"DU": CityDubai,
	"AZ": CityAbuDhabi,
	"SH": CitySharjah,
	"AJ": CityAjman,
	"UQ": CityUmmAlQuwain,
	"RK": CityRasAlKhaimah,
	"FU": CityFujairah,
}

// provinceNames covers payloads that only carry the province name
var provinceNames = map[string]string{
	"dubai":          CityDubai,
	"abu dhabi":      CityAbuDhabi,
	"sharjah":        CitySharjah,
	"ajman":          CityAjman,
	"umm al quwain":  CityUmmAlQuwain,
	"umm al-quwain":  CityUmmAlQuwain,
	"ras al khaimah": CityRasAlKhaimah,
	"ras al-khaimah": CityRasAlKhaimah,
	"fujairah":       CityFujairah,
}

// ResolveCity maps a province code (or name) to a Delifast city id.
// Unknown or empty input yields defaultCityID.
func ResolveCity(provinceCode, defaultCityID string) string {
	p := strings.TrimSpace(provinceCode)
	if p == "" {
		return defaultCityID
	}
	// "AE-DU" style codes
	code := strings.ToUpper(strings.TrimPrefix(strings.ToUpper(p), "AE-"))
	if id, ok := provinceCities[code]; ok {
		return id
	}
	if id, ok := provinceNames[strings.ToLower(p)]; ok {
		return id
	}
	return defaultCityID
}
