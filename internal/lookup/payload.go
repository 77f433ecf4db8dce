package lookup

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type payloadKind int

const (
	payloadUnrecognized payloadKind = iota
	payloadJSON
	payloadDelimited
)

func (k payloadKind) String() string {
	switch k {
	case payloadJSON:
		return "json"
	case payloadDelimited:
		return "delimited"
	default:
		return "unrecognized"
	}
}

const (
	successResponseCode = "200"
	fieldDelimiter      = ";"
	minDelimitedFields  = 4
)

// payload is the decoded lookup body. Only the fields of a recognized kind are meaningful.
type payload struct {
	kind        payloadKind
	ip          string
	countryName string
	countryCode string
	isp         string
}

type jsonResponse struct {
	ResponseCode json.RawMessage `json:"response_code"`
	IP           looseString     `json:"ip"`
	CountryName  looseString     `json:"country_name"`
	CountryCode2 looseString     `json:"country_code2"`
	ISP          looseString     `json:"isp"`
}

// looseString accepts JSON strings and numbers; anything else decodes to "".
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return err
		}
		*s = looseString(data)
	default:
		*s = ""
	}
	return nil
}

// decodePayload tries the JSON encoding first and falls back to the
// semicolon-delimited one.
func decodePayload(body string) payload {
	if p, ok := decodeJSONPayload(body); ok {
		return p
	}
	if p, ok := decodeDelimitedPayload(body); ok {
		return p
	}
	return payload{kind: payloadUnrecognized}
}

func decodeJSONPayload(body string) (payload, bool) {
	var resp jsonResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return payload{}, false
	}
	if !isSuccessCode(resp.ResponseCode) || resp.IP == "" {
		return payload{}, false
	}

	countryCode := string(resp.CountryCode2)
	if countryCode == "" {
		countryCode = "XX"
	}

	return payload{
		kind:        payloadJSON,
		ip:          string(resp.IP),
		countryName: string(resp.CountryName),
		countryCode: countryCode,
		isp:         string(resp.ISP),
	}, true
}

// isSuccessCode accepts only the string "200"; a numeric 200 is not a success.
func isSuccessCode(raw json.RawMessage) bool {
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return false
	}
	return code == successResponseCode
}

// decodeDelimitedPayload reads "ip;code;name;isp". The ISP may itself contain
// the delimiter, so every field after the third is joined back together.
func decodeDelimitedPayload(body string) (payload, bool) {
	parts := strings.Split(strings.TrimRight(body, "\r\n"), fieldDelimiter)
	if len(parts) < minDelimitedFields {
		return payload{}, false
	}

	return payload{
		kind:        payloadDelimited,
		ip:          parts[0],
		countryCode: parts[1],
		countryName: parts[2],
		isp:         strings.Join(parts[3:], fieldDelimiter),
	}, true
}
