package lookup

import (
	"context"
	"fmt"

	"geoprobe/internal/config"
	"geoprobe/internal/domain"
)

// Resolver turns one address into a record. Implementations never fail:
// every problem is reported through placeholder fields on the record.
type Resolver interface {
	Resolve(ctx context.Context, ip string) domain.IPRecord
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, ip string) domain.IPRecord

func (f ResolverFunc) Resolve(ctx context.Context, ip string) domain.IPRecord {
	return f(ctx, ip)
}

// New builds the resolver selected by cfg.Provider. Resolvers holding open
// files also implement io.Closer.
func New(cfg config.LookupConfig) (Resolver, error) {
	switch cfg.Provider {
	case config.ProviderHTTP, "":
		resolver, err := NewHTTPResolver(cfg)
		if err != nil {
			return nil, err
		}
		return resolver, nil
	case config.ProviderGeoLite:
		resolver, err := OpenGeoLiteResolver(cfg.GeoLiteCountryPath, cfg.GeoLiteASNPath)
		if err != nil {
			return nil, err
		}
		return resolver, nil
	default:
		return nil, fmt.Errorf("lookup: unsupported provider %q", cfg.Provider)
	}
}
