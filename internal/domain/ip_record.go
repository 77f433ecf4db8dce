package domain

// RecordStatus classifies how an IPRecord was produced.
type RecordStatus string

const (
	StatusOK                 RecordStatus = "ok"
	StatusPartialDataMissing RecordStatus = "partial_data_missing"
	StatusNetworkError       RecordStatus = "network_error"
	StatusServiceUnavailable RecordStatus = "service_unavailable"
	StatusMalformedResponse  RecordStatus = "malformed_response"
)

// Message keys for placeholder fields. The display layer maps them to localized text.
const (
	KeyDataNotAvailable   = "status.dataNotAvailable"
	KeyNetworkError       = "status.networkError"
	KeyServiceUnavailable = "status.serviceUnavailable"
	KeyAPIServiceFail     = "status.apiServiceFail"
	KeyAPIConnectFail     = "status.apiConnectFail"
	KeyMalformedResponse  = "status.malformedResponse"
)

// Placeholder values written into a record when the upstream data is unusable.
const (
	TextDataNotAvailable   = "Data Not Available"
	TextNetworkError       = "Network Error"
	TextServiceUnavailable = "Service Unavailable"
	TextAPIServiceFail     = "Could not reach API service"
	TextAPIConnectFail     = "Failed to connect to API"
	TextInvalidResponse    = "Invalid API Response"
)

// Sentinel country codes.
const (
	CountryCodeUnknown   = "XX"
	CountryCodeError     = "ER"
	CountryCodeMalformed = "??"
)

// IPRecord is the resolved geolocation result for a single address.
// CountryNameKey and ISPKey are set only when the paired field holds a placeholder.
type IPRecord struct {
	IP             string       `json:"ip"`
	CountryName    string       `json:"countryName"`
	CountryCode    string       `json:"countryCode"`
	ISP            string       `json:"isp"`
	CountryNameKey string       `json:"countryNameKey,omitempty"`
	ISPKey         string       `json:"ispKey,omitempty"`
	Status         RecordStatus `json:"status"`
}

func (r IPRecord) HasPlaceholders() bool {
	return r.CountryNameKey != "" || r.ISPKey != ""
}

// IsComplete reports whether every field carries genuine upstream data.
func (r IPRecord) IsComplete() bool {
	return r.Status == StatusOK && !r.HasPlaceholders()
}

func NetworkErrorRecord(ip string) IPRecord {
	return IPRecord{
		IP:             ip,
		CountryName:    TextNetworkError,
		CountryNameKey: KeyNetworkError,
		ISP:            TextAPIServiceFail,
		ISPKey:         KeyAPIServiceFail,
		CountryCode:    CountryCodeError,
		Status:         StatusNetworkError,
	}
}

func ServiceUnavailableRecord(ip string) IPRecord {
	return IPRecord{
		IP:             ip,
		CountryName:    TextServiceUnavailable,
		CountryNameKey: KeyServiceUnavailable,
		ISP:            TextAPIConnectFail,
		ISPKey:         KeyAPIConnectFail,
		CountryCode:    CountryCodeError,
		Status:         StatusServiceUnavailable,
	}
}

func MalformedResponseRecord(ip string) IPRecord {
	return IPRecord{
		IP:             ip,
		CountryName:    TextDataNotAvailable,
		CountryNameKey: KeyDataNotAvailable,
		ISP:            TextInvalidResponse,
		ISPKey:         KeyMalformedResponse,
		CountryCode:    CountryCodeMalformed,
		Status:         StatusMalformedResponse,
	}
}
