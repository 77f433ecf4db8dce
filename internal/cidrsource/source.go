package cidrsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"geoprobe/internal/config"
	"geoprobe/internal/generator"
	"geoprobe/internal/support"
)

var (
	ErrNoAddressSource   = generator.ErrNoAddressSource
	ErrMalformedDocument = errors.New("cidrsource: malformed CIDR ranges document")
)

// Source supplies the CIDR blocks random addresses are drawn from.
type Source interface {
	Load(ctx context.Context) ([]string, error)
}

// Document is the wire format shared by every source: {"ranges": [...]}.
type Document struct {
	Ranges []string `json:"ranges"`
}

// ParseDocument decodes a ranges document and keeps the valid, distinct IPv4
// blocks in their original order.
func ParseDocument(data []byte) ([]string, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return NormalizeRanges(doc.Ranges)
}

// NormalizeRanges trims, validates and de-duplicates blocks. Invalid entries are
// dropped with a warning; an empty result is ErrNoAddressSource.
func NormalizeRanges(ranges []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ranges))
	valid := make([]string, 0, len(ranges))

	for _, raw := range ranges {
		cidr := strings.TrimSpace(raw)
		if _, err := generator.ParseBlock(cidr); err != nil {
			log.Warn("Skipping invalid CIDR range", "range", raw, "error", err)
			continue
		}
		if _, dup := seen[cidr]; dup {
			continue
		}
		seen[cidr] = struct{}{}
		valid = append(valid, cidr)
	}

	if len(valid) == 0 {
		return nil, ErrNoAddressSource
	}
	return valid, nil
}

// StaticSource serves a fixed list.
type StaticSource []string

func (s StaticSource) Load(context.Context) ([]string, error) {
	return NormalizeRanges(s)
}

type sharedSource struct {
	source Source
	group  singleflight.Group
}

// Shared collapses concurrent loads into one call to the wrapped source.
// Nothing is kept once the load returns. The shared load runs detached from
// any single caller's cancellation; a cancelled caller stops waiting alone.
func Shared(source Source) Source {
	return &sharedSource{source: source}
}

func (s *sharedSource) Load(ctx context.Context) ([]string, error) {
	ch := s.group.DoChan("load", func() (interface{}, error) {
		return s.source.Load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]string)), nil
	}
}

// New builds the source selected by cfg.Kind.
func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceFile, "":
		return FileSource{Path: cfg.Path}, nil
	case config.SourceHTTP:
		return &HTTPSource{URL: cfg.URL}, nil
	case config.SourceRedis:
		client, err := support.GetRedisClient()
		if err != nil {
			return nil, err
		}
		return &RedisSource{Client: client, Key: cfg.RedisKey}, nil
	case config.SourceDatabase:
		return DatabaseSource{}, nil
	default:
		return nil, fmt.Errorf("cidrsource: unsupported source kind %q", cfg.Kind)
	}
}
