package lookup

import (
	"strings"

	"geoprobe/internal/domain"
)

const missingSentinel = "-"

func isMissing(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed == "" || trimmed == missingSentinel
}

func isCountryMissing(name, code string) bool {
	return isMissing(name) || isMissing(code) || strings.TrimSpace(code) == domain.CountryCodeUnknown
}

// recordFromPayload normalizes the extracted fields. Country and ISP are
// judged independently; the record always carries the requested ip.
func recordFromPayload(ip string, p payload) domain.IPRecord {
	record := domain.IPRecord{
		IP:          ip,
		CountryName: p.countryName,
		CountryCode: p.countryCode,
		ISP:         p.isp,
		Status:      domain.StatusOK,
	}

	if isCountryMissing(p.countryName, p.countryCode) {
		record.CountryName = domain.TextDataNotAvailable
		record.CountryCode = domain.CountryCodeUnknown
		record.CountryNameKey = domain.KeyDataNotAvailable
		record.Status = domain.StatusPartialDataMissing
	}

	if isMissing(p.isp) {
		record.ISP = domain.TextDataNotAvailable
		record.ISPKey = domain.KeyDataNotAvailable
		record.Status = domain.StatusPartialDataMissing
	}

	return record
}
