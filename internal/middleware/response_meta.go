package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-platform-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"

	// CacheHeader tells clients whether an analytics payload came from Redis.
	CacheHeader = "X-Cache"
)

type responseMeta struct {
	started time.Time
	values  map[string]interface{}
}

// WithResponseMeta starts the per-request meta that handlers attach to envelopes.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{started: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from cache, in the meta
// and as the X-Cache header.
func SetCacheHit(c *gin.Context, hit bool) {
	m := metaOf(c)
	if m == nil {
		m = &responseMeta{started: time.Now(), values: map[string]interface{}{}}
		c.Set(responseMetaKey, m)
	}
	m.values[cacheHitKey] = hit
	if hit {
		c.Header(CacheHeader, "HIT")
	} else {
		c.Header(CacheHeader, "MISS")
	}
}

// ExtractMeta snapshots the meta for the response being written: stored values
// plus the request id and the elapsed time so far. It is nil until WithResponseMeta
// or SetCacheHit has run.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	m := metaOf(c)
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m.values)+2)
	for k, v := range m.values {
		out[k] = v
	}
	out["processing_time_ms"] = time.Since(m.started).Milliseconds()
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	return out
}

func metaOf(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if m, ok := v.(*responseMeta); ok {
			return m
		}
	}
	return nil
}
