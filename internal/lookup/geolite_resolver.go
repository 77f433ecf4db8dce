package lookup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"geoprobe/internal/domain"
)

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

type asnReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
}

// GeoLiteResolver answers lookups from local MaxMind GeoLite2 Country and ASN
// databases. The ASN organization stands in for the ISP.
type GeoLiteResolver struct {
	mu      sync.RWMutex
	country countryReader
	asn     asnReader
	closers []*geoip2.Reader
}

func OpenGeoLiteResolver(countryPath, asnPath string) (*GeoLiteResolver, error) {
	r := &GeoLiteResolver{}
	if err := r.Reload(countryPath, asnPath); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload opens the databases at the given paths and swaps them in. The old
// readers are closed once in-flight lookups finish. On error nothing changes.
func (r *GeoLiteResolver) Reload(countryPath, asnPath string) error {
	countryDB, err := geoip2.Open(countryPath)
	if err != nil {
		return fmt.Errorf("lookup: open geolite country db: %w", err)
	}

	asnDB, err := geoip2.Open(asnPath)
	if err != nil {
		_ = countryDB.Close()
		return fmt.Errorf("lookup: open geolite asn db: %w", err)
	}

	r.mu.Lock()
	old := r.closers
	r.country = countryDB
	r.asn = asnDB
	r.closers = []*geoip2.Reader{countryDB, asnDB}
	r.mu.Unlock()

	return closeReaders(old)
}

func (r *GeoLiteResolver) Close() error {
	r.mu.Lock()
	old := r.closers
	r.closers = nil
	r.country = nil
	r.asn = nil
	r.mu.Unlock()

	return closeReaders(old)
}

func closeReaders(readers []*geoip2.Reader) error {
	var errs []error
	for _, reader := range readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *GeoLiteResolver) Resolve(_ context.Context, ip string) domain.IPRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.country == nil {
		log.Error("GeoLite databases unavailable", "ip", ip)
		return domain.ServiceUnavailableRecord(ip)
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		log.Warn("GeoLite lookup skipped for invalid address", "ip", ip)
		return domain.MalformedResponseRecord(ip)
	}

	countryRecord, err := r.country.Country(parsed)
	if err != nil {
		log.Warn("GeoLite country lookup failed", "ip", ip, "error", err)
		return domain.MalformedResponseRecord(ip)
	}

	var isp string
	if r.asn != nil {
		asnRecord, err := r.asn.ASN(parsed)
		if err != nil {
			log.Warn("GeoLite ASN lookup failed", "ip", ip, "error", err)
		} else {
			isp = asnRecord.AutonomousSystemOrganization
		}
	}

	return recordFromPayload(ip, payload{
		ip:          ip,
		countryName: countryRecord.Country.Names["en"],
		countryCode: countryRecord.Country.IsoCode,
		isp:         isp,
	})
}
