package timezone

type coord struct {
	lat, lon float64
}

// zoneCache memoizes Locator results per exact coordinate pair. Empty results
// are cached too: a point outside every zone stays outside for the batch.
type zoneCache struct {
	inner   Locator
	entries map[coord]string

	hits   int
	misses int
}

func newZoneCache(inner Locator) *zoneCache {
	return &zoneCache{
		inner:   inner,
		entries: make(map[coord]string),
	}
}

func (c *zoneCache) lookup(lat, lon float64) string {
	key := coord{lat: lat, lon: lon}
	if tz, ok := c.entries[key]; ok {
		c.hits++
		return tz
	}
	c.misses++
	// tzf takes longitude first.
	tz := c.inner.GetTimezoneName(lon, lat)
	c.entries[key] = tz
	return tz
}

func (c *zoneCache) reset() {
	clear(c.entries)
	c.hits = 0
	c.misses = 0
}
