package pia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"piawg/internal/transport"
)

// FetchRegions downloads the server list and returns the WireGuard-capable
// regions sorted by name. Indexes into the result are only meaningful for
// this snapshot.
func (c *Client) FetchRegions(ctx context.Context) ([]Region, error) {
	raw, err := c.transport.Send(ctx, transport.Request{
		URL:    c.endpoints.ServerListURL,
		Method: http.MethodGet,
	})
	if err != nil {
		return nil, CatalogError{Msg: "fetch server list", Err: err}
	}

	regions, err := ParseRegions(raw)
	if err != nil {
		return nil, err
	}
	c.log.WithField("regions", len(regions)).Debug("server list loaded")
	return regions, nil
}

// ParseRegions decodes a server list response. The JSON document is
// followed by an opaque signature block, so everything after the last
// closing brace is discarded before decoding.
func ParseRegions(raw []byte) ([]Region, error) {
	end := bytes.LastIndexByte(raw, '}')
	if end < 0 {
		return nil, CatalogError{Msg: "server list contains no JSON document"}
	}

	var list serverList
	if err := json.Unmarshal(raw[:end+1], &list); err != nil {
		return nil, CatalogError{Msg: "decode server list", Err: err}
	}

	regions := FilterWireGuard(list.Regions)
	SortRegions(regions)
	return regions, nil
}

// FilterWireGuard drops regions without WireGuard servers.
func FilterWireGuard(regions []Region) []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.HasWireGuard() {
			out = append(out, r)
		}
	}
	return out
}

// SortRegions orders regions by display name using locale-aware collation.
func SortRegions(regions []Region) {
	col := collate.New(language.English)
	sort.SliceStable(regions, func(i, j int) bool {
		return col.CompareString(regions[i].Name, regions[j].Name) < 0
	})
}

// FindRegion resolves a selection key: a decimal index into regions, or a
// region id (case-insensitive).
func FindRegion(regions []Region, key string) (Region, int, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Region{}, -1, fmt.Errorf("%w: no region selected", ErrRegionNotFound)
	}
	if idx, err := strconv.Atoi(key); err == nil {
		if idx < 0 || idx >= len(regions) {
			return Region{}, -1, fmt.Errorf("%w: index %d out of range (0-%d)", ErrRegionNotFound, idx, len(regions)-1)
		}
		return regions[idx], idx, nil
	}
	for i, r := range regions {
		if strings.EqualFold(r.ID, key) {
			return r, i, nil
		}
	}
	return Region{}, -1, fmt.Errorf("%w: %q", ErrRegionNotFound, key)
}
