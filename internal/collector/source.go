package collector

import (
	"context"
	"time"
)

// RawPayload is an undecoded response body from a remote API.
type RawPayload []byte

// Source is one remote data API. Implementations only know how to call the
// API and flatten its response; retries, circuit breaking, timestamp
// normalization and validation are handled by the Orchestrator.
type Source interface {
	// Name identifies the source in logs, metrics and the registry.
	Name() string
	// Fetch performs the remote call for the window [start, end).
	Fetch(ctx context.Context, start, end time.Time) (RawPayload, error)
	// Parse flattens a payload into timestamp -> value pairs.
	Parse(raw RawPayload, start, end time.Time) (map[string]any, error)
	// Metadata returns static descriptive fields for the dataset.
	Metadata(start, end time.Time) map[string]any
}

// HostSource is implemented by sources that want to share a concurrency
// limit with other sources calling the same remote host.
type HostSource interface {
	Host() string
}

// HostOf returns the host a source calls, or its name when it does not say.
func HostOf(s Source) string {
	if hs, ok := s.(HostSource); ok && hs.Host() != "" {
		return hs.Host()
	}
	return s.Name()
}

// SourceFuncs builds a Source from plain functions. Nil MetadataFunc yields
// no extra metadata.
type SourceFuncs struct {
	SourceName   string
	FetchFunc    func(ctx context.Context, start, end time.Time) (RawPayload, error)
	ParseFunc    func(raw RawPayload, start, end time.Time) (map[string]any, error)
	MetadataFunc func(start, end time.Time) map[string]any
}

func (f SourceFuncs) Name() string {
	return f.SourceName
}

func (f SourceFuncs) Fetch(ctx context.Context, start, end time.Time) (RawPayload, error) {
	return f.FetchFunc(ctx, start, end)
}

func (f SourceFuncs) Parse(raw RawPayload, start, end time.Time) (map[string]any, error) {
	return f.ParseFunc(raw, start, end)
}

func (f SourceFuncs) Metadata(start, end time.Time) map[string]any {
	if f.MetadataFunc == nil {
		return nil
	}
	return f.MetadataFunc(start, end)
}
